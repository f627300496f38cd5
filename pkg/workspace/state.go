package workspace

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/solvc/pkg/object"
	"github.com/odvcencio/solvc/pkg/repo"
)

const mergeRequestsFile = "mergerequests.yaml"

type mergeRequestList struct {
	MergeRequests []*repo.MergeRequest `yaml:"merge_requests"`
}

func (w *Workspace) openStore() error {
	switch w.Config.Storage.Backend {
	case BackendBadger:
		b, err := object.OpenBadgerBackend(w.path("badger"))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		w.store = object.NewStore(b)
		w.closer = b
	default:
		w.store = object.NewDiskStore(w.Dir, w.Config.Storage.Compress)
	}
	return nil
}

// Load reads the workspace state and restores a repository over the
// workspace's object store and a DirWorktree at Root. Options given here
// are applied after the workspace defaults.
func (w *Workspace) Load(opts ...repo.Option) (*repo.Repository, error) {
	current, err := w.readHead()
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	refs, err := w.listRefs()
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	indexes, err := w.readIndexes()
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	mrs, err := w.readMergeRequests()
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	reflog, err := w.readReflogs()
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	snap := &repo.Snapshot{
		CurrentBranch: current,
		Branches:      refs,
		Indexes:       indexes,
		MergeRequests: mrs,
		Reflog:        reflog,
	}
	base := []repo.Option{
		repo.WithStore(w.store),
		repo.WithWorktree(NewDirWorktree(w.Root)),
		repo.WithLogger(w.log),
		repo.WithDefaultBranch(w.Config.Core.DefaultBranch),
		repo.WithMergeOptions(repo.MergeOptions{ResolveLines: w.Config.Merge.ResolveLines}),
	}
	r, err := repo.Restore(snap, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	w.heads = refs
	w.reflogLen = make(map[string]int, len(reflog))
	for name, entries := range reflog {
		w.reflogLen[name] = len(entries)
	}
	w.log.WithFields(logrus.Fields{
		"branch":         current,
		"branches":       len(refs),
		"merge_requests": len(mrs),
	}).Debug("workspace loaded")
	return r, nil
}

// Save persists the repository's branches, HEAD, indexes, merge requests
// and new reflog entries. Each ref is updated with compare-and-swap
// against the value last loaded or saved, so a concurrent writer causes
// ErrRefConflict instead of a lost update. Objects are not written here;
// the repository writes them through the store as it creates them.
func (w *Workspace) Save(r *repo.Repository) error {
	snap := r.Snapshot()

	names := make(map[string]bool, len(snap.Branches)+len(w.heads))
	for name := range snap.Branches {
		names[name] = true
	}
	for name := range w.heads {
		names[name] = true
	}
	for _, name := range sortedKeys(names) {
		want, have := snap.Branches[name], w.heads[name]
		if want == have {
			continue
		}
		if err := w.updateRefCAS(name, want, have); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		if want == "" {
			delete(w.heads, name)
		} else {
			w.heads[name] = want
		}
	}

	for _, name := range sortedKeys(snap.Reflog) {
		entries := snap.Reflog[name]
		n := w.reflogLen[name]
		if len(entries) <= n {
			continue
		}
		if err := w.appendReflog(name, entries[n:]); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		w.reflogLen[name] = len(entries)
	}

	if err := w.writeHead(snap.CurrentBranch); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := w.writeIndexes(snap.Indexes); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := w.writeMergeRequests(snap.MergeRequests); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	w.log.WithField("branch", snap.CurrentBranch).Debug("workspace saved")
	return nil
}

func (w *Workspace) indexPath(branch string) string {
	return w.path("index", filepath.FromSlash(branch)+".json")
}

func (w *Workspace) readIndexes() (map[string]*repo.Index, error) {
	root := w.path("index")
	out := make(map[string]*repo.Index)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".json") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		var idx repo.Index
		if err := json.Unmarshal(data, &idx); err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		out[strings.TrimSuffix(filepath.ToSlash(rel), ".json")] = &idx
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read indexes: %w", err)
	}
	return out, nil
}

// writeIndexes writes one file per non-empty index and removes the files
// of branches whose index is now empty.
func (w *Workspace) writeIndexes(indexes map[string]*repo.Index) error {
	existing, err := w.readIndexes()
	if err != nil {
		return err
	}
	for name := range existing {
		if _, keep := indexes[name]; keep {
			continue
		}
		if err := os.Remove(w.indexPath(name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove index %q: %w", name, err)
		}
	}
	for _, name := range sortedKeys(indexes) {
		data, err := json.MarshalIndent(indexes[name], "", "  ")
		if err != nil {
			return fmt.Errorf("write index %q: marshal: %w", name, err)
		}
		if err := writeFileAtomic(w.indexPath(name), data); err != nil {
			return fmt.Errorf("write index %q: %w", name, err)
		}
	}
	return nil
}

func (w *Workspace) readMergeRequests() ([]*repo.MergeRequest, error) {
	data, err := os.ReadFile(w.path(mergeRequestsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read merge requests: %w", err)
	}
	var list mergeRequestList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("read merge requests: unmarshal: %w", err)
	}
	return list.MergeRequests, nil
}

func (w *Workspace) writeMergeRequests(mrs []*repo.MergeRequest) error {
	if len(mrs) == 0 {
		if err := os.Remove(w.path(mergeRequestsFile)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("write merge requests: %w", err)
		}
		return nil
	}
	data, err := yaml.Marshal(mergeRequestList{MergeRequests: mrs})
	if err != nil {
		return fmt.Errorf("write merge requests: marshal: %w", err)
	}
	if err := writeFileAtomic(w.path(mergeRequestsFile), data); err != nil {
		return fmt.Errorf("write merge requests: %w", err)
	}
	return nil
}
