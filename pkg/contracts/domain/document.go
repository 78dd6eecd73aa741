package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentRef identifies one spreadsheet found by a directory listing
type DocumentRef struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Label is the file name without its extension
func (d DocumentRef) Label() string {
	return DocumentLabel(d.Path)
}

// DocumentLabel derives the document label from a path
func DocumentLabel(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Document is the decoded row view of one workbook. It is only held while
// its rows are being consumed.
type Document struct {
	Path  string
	Label string
	Sheet string
	Rows  []Row
}

// CellAt returns the cell at an absolute position, empty when absent
func (d *Document) CellAt(row, col int) Cell {
	if d == nil || row < 0 || row >= len(d.Rows) {
		return Cell{Kind: CellEmpty}
	}
	return d.Rows[row].At(col)
}
