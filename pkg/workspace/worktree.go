package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirWorktree is a repo.Worktree over an OS directory. Paths matched by
// .solvcignore, and the .solvc and .git directories, are not listed.
type DirWorktree struct {
	root string

	mu     sync.Mutex
	ignore *Ignore
}

// NewDirWorktree returns a worktree rooted at root. The ignore file is
// read lazily on the first List.
func NewDirWorktree(root string) *DirWorktree {
	return &DirWorktree{root: root}
}

// Root returns the worktree directory.
func (d *DirWorktree) Root() string {
	return d.root
}

func (d *DirWorktree) abs(p string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("worktree path %q outside %s", p, d.root)
	}
	return filepath.Join(d.root, clean), nil
}

func (d *DirWorktree) ReadFile(p string) ([]byte, error) {
	full, err := d.abs(p)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// WriteFile creates parent directories as needed and writes data with
// mode 0644.
func (d *DirWorktree) WriteFile(p string, data []byte) error {
	full, err := d.abs(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

// Remove deletes p and then any parent directories left empty, up to the
// root.
func (d *DirWorktree) Remove(p string) error {
	full, err := d.abs(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	for dir := filepath.Dir(full); dir != d.root && strings.HasPrefix(dir, d.root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// List walks the directory and returns every regular file that is not
// ignored, sorted.
func (d *DirWorktree) List() ([]string, error) {
	ig, err := d.ignoreRules()
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(d.root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == d.root {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if ig.Match(rel) {
			if e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if e.Type().IsRegular() {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list worktree: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (d *DirWorktree) ignoreRules() (*Ignore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ignore == nil {
		ig, err := LoadIgnore(d.root)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", IgnoreFile, err)
		}
		d.ignore = ig
	}
	return d.ignore, nil
}
