package repo

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/odvcencio/solvc/pkg/object"
)

// Worktree is the editable file tree a repository stages from and checks
// out into. Paths are slash-separated and relative to the tree root.
type Worktree interface {
	// ReadFile returns the content of path, or an error matching
	// fs.ErrNotExist when it does not exist.
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	// Remove deletes path. Removing a missing path is not an error.
	Remove(path string) error
	// List returns every file path, sorted.
	List() ([]string, error)
}

// MemoryWorktree is an in-memory Worktree for embedding hosts such as an
// editor session. It is safe for concurrent use.
type MemoryWorktree struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryWorktree returns an empty MemoryWorktree.
func NewMemoryWorktree() *MemoryWorktree {
	return &MemoryWorktree{files: make(map[string][]byte)}
}

func (m *MemoryWorktree) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.files[p]
	m.mu.RUnlock()
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryWorktree) WriteFile(p string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	m.mu.Lock()
	m.files[p] = buf
	m.mu.Unlock()
	return nil
}

func (m *MemoryWorktree) Remove(p string) error {
	m.mu.Lock()
	delete(m.files, p)
	m.mu.Unlock()
	return nil
}

func (m *MemoryWorktree) List() ([]string, error) {
	m.mu.RLock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

// NormalizePath converts p to the canonical slash-separated, relative form
// used as a tree key. It rejects empty paths, paths that escape the root,
// and paths containing control characters.
func NormalizePath(p string) (string, error) {
	orig := p
	if object.HasControlChars(p) {
		return "", fmt.Errorf("%w: %q contains a control character", ErrInvalidPath, orig)
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, orig)
	}
	for _, seg := range strings.Split(strings.ReplaceAll(orig, "\\", "/"), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q escapes the repository root", ErrInvalidPath, orig)
		}
	}
	return p, nil
}

func normalizePaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		np, err := NormalizePath(p)
		if err != nil {
			return nil, err
		}
		if seen[np] {
			continue
		}
		seen[np] = true
		out = append(out, np)
	}
	return out, nil
}
