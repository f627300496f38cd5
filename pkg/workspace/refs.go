package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/odvcencio/solvc/pkg/object"
)

const (
	headsPrefix = "refs/heads/"

	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// refLockWait is a variable so tests can shorten it.
var refLockWait = refLockWaitLimit

// readHead returns the branch HEAD points at.
func (w *Workspace) readHead() (string, error) {
	data, err := os.ReadFile(w.path("HEAD"))
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	content := strings.TrimSpace(string(data))
	ref, ok := strings.CutPrefix(content, "ref: ")
	if !ok || !strings.HasPrefix(ref, headsPrefix) {
		return "", fmt.Errorf("read HEAD: unsupported content %q", content)
	}
	return strings.TrimPrefix(ref, headsPrefix), nil
}

func (w *Workspace) writeHead(branch string) error {
	if err := writeFileAtomic(w.path("HEAD"), []byte("ref: "+headsPrefix+branch+"\n")); err != nil {
		return fmt.Errorf("write HEAD: %w", err)
	}
	return nil
}

func (w *Workspace) refPath(branch string) string {
	return w.path("refs", "heads", filepath.FromSlash(branch))
}

// ReadRef returns the head of branch, or "" when the ref does not exist.
func (w *Workspace) ReadRef(branch string) (object.Hash, error) {
	h, err := readRefHash(w.refPath(branch))
	if err != nil {
		return "", fmt.Errorf("read ref %q: %w", branch, err)
	}
	return h, nil
}

// listRefs returns every branch with a ref file, keyed by name.
func (w *Workspace) listRefs() (map[string]object.Hash, error) {
	root := w.path("refs", "heads")
	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".lock") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		h, err := readRefHash(p)
		if err != nil {
			return err
		}
		if h != "" {
			refs[filepath.ToSlash(rel)] = h
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// updateRefCAS points branch at h using lockfile + rename. The update only
// succeeds when the current value equals expected; "" expects the ref to
// be absent. An empty h deletes the ref.
func (w *Workspace) updateRefCAS(branch string, h, expected object.Hash) error {
	refPath := w.refPath(branch)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", branch, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", branch, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	current, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", branch, err)
	}
	if current != expected {
		return fmt.Errorf("update ref %q: %w (expected %q, found %q)", branch, ErrRefConflict, expected, current)
	}

	if h == "" {
		if err := os.Remove(refPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("update ref %q: remove: %w", branch, err)
		}
		return nil
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", branch, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", branch, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", branch, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", branch, err)
	}
	cleanupLock = false
	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWait)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
