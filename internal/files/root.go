package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Root resolves caller-supplied paths against a base directory. An empty
// base accepts any path.
type Root struct {
	base string
}

// NewRoot creates a root confined to base
func NewRoot(base string) *Root {
	if base != "" {
		base = filepath.Clean(base)
	}
	return &Root{base: base}
}

// Base returns the confining directory
func (r *Root) Base() string {
	return r.base
}

// Resolve joins relative paths onto the base and rejects paths that
// escape it. Symlinks in the existing part of the path are resolved
// before the check, so a link inside the base cannot point outside it.
func (r *Root) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}
	if r.base == "" {
		return filepath.Clean(path), nil
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(r.base, full)
	}
	full = filepath.Clean(full)

	if !within(r.base, full) {
		return "", fmt.Errorf("path %s is outside %s", path, r.base)
	}

	base, err := evalExisting(r.base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", r.base, err)
	}
	target, err := evalExisting(full)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if !within(base, target) {
		return "", fmt.Errorf("path %s resolves outside %s", path, r.base)
	}
	return full, nil
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// evalExisting resolves symlinks in the longest existing prefix of path
// and appends the remainder unchanged. Output files need not exist yet.
func evalExisting(path string) (string, error) {
	rest := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(current), rest)
		current = parent
	}
}

// EnsureParent creates the parent directory of a file path
func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
