package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"

	"drillagg/internal/infrastructure"
	"drillagg/pkg/contracts/domain"
)

// Order selects the enumeration order of a listing
type Order string

const (
	// OrderName sorts by file name
	OrderName Order = "name"
	// OrderModTime sorts oldest first, ties broken by name
	OrderModTime Order = "modtime"
)

// lockPrefix marks the owner files spreadsheet editors leave next to open
// workbooks.
const lockPrefix = "~$"

// sniffLen is enough for filetype to recognise a zip container
const sniffLen = 262

// DefaultExtensions are the workbook extensions listed when none are configured
var DefaultExtensions = []string{".xlsx", ".xlsm"}

// ListerOptions configures a Lister
type ListerOptions struct {
	Extensions []string
	Order      Order
	// VerifyContent drops files whose leading bytes are not a zip
	// container, the envelope of every .xlsx workbook.
	VerifyContent bool
}

// Lister enumerates workbook documents in a directory
type Lister struct {
	opts   ListerOptions
	logger *slog.Logger
}

// NewLister creates a lister
func NewLister(opts ListerOptions, logger *slog.Logger) *Lister {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.Order == "" {
		opts.Order = OrderName
	}
	return &Lister{
		opts:   opts,
		logger: logger.With(slog.String("component", "lister")),
	}
}

// List returns the workbooks directly inside dir. Subdirectories are not
// descended into.
func (l *Lister) List(ctx context.Context, dir string) ([]domain.DocumentRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	refs := []domain.DocumentRef{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !l.accepts(entry.Name()) {
			continue
		}

		// Stat follows symlinks so linked workbooks are listed.
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			l.logger.WarnContext(ctx, "Skipping unreadable entry",
				slog.String("name", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		if l.opts.VerifyContent {
			if ok, err := IsWorkbookContainer(path); !ok {
				reason := "not a zip container"
				if err != nil {
					reason = err.Error()
				}
				l.logger.WarnContext(ctx, "Skipping file that is not a workbook",
					slog.String("path", path),
					slog.String("reason", reason))
				continue
			}
		}

		refs = append(refs, domain.DocumentRef{
			Path:    path,
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sortRefs(refs, l.opts.Order)

	l.logger.DebugContext(ctx, "Directory listed",
		slog.String("dir", dir),
		slog.Int("documents", len(refs)),
		slog.String("order", string(l.opts.Order)))

	return refs, nil
}

func (l *Lister) accepts(name string) bool {
	if strings.HasPrefix(name, lockPrefix) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range l.opts.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

func sortRefs(refs []domain.DocumentRef, order Order) {
	if order == OrderModTime {
		sort.SliceStable(refs, func(i, j int) bool {
			if refs[i].ModTime.Equal(refs[j].ModTime) {
				return refs[i].Name < refs[j].Name
			}
			return refs[i].ModTime.Before(refs[j].ModTime)
		})
		return
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Name < refs[j].Name
	})
}

// IsWorkbookContainer sniffs the leading bytes of path
func IsWorkbookContainer(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false, err
	}
	head = head[:n]

	return filetype.IsArchive(head) || filetype.IsDocument(head), nil
}
