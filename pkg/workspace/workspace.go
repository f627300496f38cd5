// Package workspace persists a repository under a .solvc/ directory next
// to the Solidity sources it tracks.
//
// Layout:
//
//	.solvc/
//	  HEAD                    ref: refs/heads/<current branch>
//	  config.toml
//	  objects/ab/cdef...      disk backend (or badger/ for the badger backend)
//	  refs/heads/<branch>     branch head hash
//	  logs/refs/heads/<branch> reflog lines
//	  index/<branch>.json     pending staged changes
//	  mergerequests.yaml
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/solvc/pkg/object"
)

// DirName is the name of the metadata directory at the workspace root.
const DirName = ".solvc"

var (
	ErrExists      = errors.New("workspace already exists")
	ErrNotFound    = errors.New("not a solvc workspace (or any parent up to /)")
	ErrRefConflict = errors.New("ref compare-and-swap mismatch")
)

// Workspace is an opened .solvc directory. It is not safe for concurrent
// use by multiple goroutines; ref updates are safe across processes.
type Workspace struct {
	Root   string // directory holding the tracked files
	Dir    string // Root/.solvc
	Config *Config

	log    *logrus.Logger
	store  *object.Store
	closer io.Closer

	// heads and reflogLen describe the on-disk state as of the last Load
	// or Save. Save uses them as compare-and-swap expectations.
	heads     map[string]object.Hash
	reflogLen map[string]int
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger handed to the workspace and the repositories
// it loads.
func WithLogger(l *logrus.Logger) Option {
	return func(w *Workspace) { w.log = l }
}

// Init creates a workspace at root and writes cfg (or DefaultConfig) to
// config.toml. It fails with ErrExists when root already has a .solvc
// directory.
func Init(root string, cfg *Config, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	dir := filepath.Join(abs, DirName)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("init: %w at %s", ErrExists, dir)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	dirs := []string{
		filepath.Join(dir, "refs", "heads"),
		filepath.Join(dir, "logs", "refs", "heads"),
		filepath.Join(dir, "index"),
	}
	if cfg.Storage.Backend == BackendDisk {
		dirs = append(dirs, filepath.Join(dir, "objects"))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}
	if err := WriteConfig(filepath.Join(dir, configFile), cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	w := newWorkspace(abs, dir, cfg, opts)
	if err := w.writeHead(cfg.Core.DefaultBranch); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := w.openStore(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	w.log.WithFields(logrus.Fields{"root": abs, "backend": cfg.Storage.Backend}).Debug("workspace initialized")
	return w, nil
}

// Open searches upward from start for a .solvc directory and opens it.
func Open(start string, opts ...Option) (*Workspace, error) {
	root, err := Find(start)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	dir := filepath.Join(root, DirName)
	cfg, err := ReadConfig(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	w := newWorkspace(root, dir, cfg, opts)
	if err := w.openStore(); err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return w, nil
}

// Find returns the nearest directory at or above start that contains a
// .solvc directory.
func Find(start string) (string, error) {
	cur, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	for {
		info, err := os.Stat(filepath.Join(cur, DirName))
		if err == nil && info.IsDir() {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", ErrNotFound
		}
		cur = parent
	}
}

func newWorkspace(root, dir string, cfg *Config, opts []Option) *Workspace {
	w := &Workspace{
		Root:      root,
		Dir:       dir,
		Config:    cfg,
		heads:     make(map[string]object.Hash),
		reflogLen: make(map[string]int),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logrus.New()
		w.log.SetOutput(io.Discard)
	}
	return w
}

// Store returns the workspace's object store.
func (w *Workspace) Store() *object.Store {
	return w.store
}

// Close releases the object store. The workspace must not be used after.
func (w *Workspace) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// SaveConfig writes w.Config back to config.toml.
func (w *Workspace) SaveConfig() error {
	if err := w.Config.validate(); err != nil {
		return err
	}
	return WriteConfig(filepath.Join(w.Dir, configFile), w.Config)
}

func (w *Workspace) path(elem ...string) string {
	return filepath.Join(append([]string{w.Dir}, elem...)...)
}
