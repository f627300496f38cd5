package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/solvc/pkg/object"
	"github.com/odvcencio/solvc/pkg/repo"
)

var alice = object.Author{Name: "Alice", Email: "alice@example.com"}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// initWorkspace creates a workspace holding files and seeds it with an
// initial commit of them.
func initWorkspace(t *testing.T, cfg *Config, files map[string]string) (*Workspace, *repo.Repository) {
	t.Helper()
	root := t.TempDir()
	for p, content := range files {
		writeFile(t, root, p, content)
	}
	w, err := Init(root, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	r, err := w.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	seed := make(map[string][]byte, len(files))
	for p, content := range files {
		seed[p] = []byte(content)
	}
	if _, err := r.Initialize(seed, alice); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := w.Save(r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return w, r
}

func TestInitCreatesLayout(t *testing.T) {
	root := t.TempDir()
	w, err := Init(root, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer w.Close()

	for _, p := range []string{"HEAD", "config.toml", "objects", "refs/heads", "logs/refs/heads", "index"} {
		if _, err := os.Stat(filepath.Join(root, DirName, filepath.FromSlash(p))); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}
	head, err := os.ReadFile(filepath.Join(root, DirName, "HEAD"))
	if err != nil {
		t.Fatalf("read HEAD: %v", err)
	}
	if string(head) != "ref: refs/heads/main\n" {
		t.Errorf("HEAD = %q", head)
	}

	if _, err := Init(root, nil); !errors.Is(err, ErrExists) {
		t.Errorf("second Init: err = %v, want ErrExists", err)
	}
}

func TestInitRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = "s3"
	if _, err := Init(t.TempDir(), cfg); err == nil {
		t.Fatal("Init accepted an unknown backend")
	}
}

func TestOpenSearchesUpward(t *testing.T) {
	root := t.TempDir()
	w, err := Init(root, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	w.Close()

	sub := filepath.Join(root, "contracts", "tokens")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	opened, err := Open(sub)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer opened.Close()

	want, _ := filepath.Abs(root)
	if opened.Root != want {
		t.Errorf("Root = %q, want %q", opened.Root, want)
	}
	if opened.Config.Core.DefaultBranch != "main" {
		t.Errorf("config not loaded: %+v", opened.Config)
	}
}

func TestOpenOutsideWorkspace(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open: err = %v, want ErrNotFound", err)
	}
}

func TestLoadFreshWorkspace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Core.DefaultBranch = "trunk"
	w, err := Init(t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer w.Close()

	r, err := w.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Initialized() {
		t.Error("fresh workspace loaded as initialized")
	}
	if r.CurrentBranch() != "trunk" {
		t.Errorf("CurrentBranch = %q", r.CurrentBranch())
	}
}
