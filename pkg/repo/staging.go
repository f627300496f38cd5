package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/solvc/pkg/object"
)

// IndexEntry is one pending change. Deletes carry no blob.
type IndexEntry struct {
	Path     string            `json:"path"`
	Op       object.ChangeType `json:"op"`
	BlobHash object.Hash       `json:"blob_hash,omitempty"`
}

// Index is the staging area of one branch: path -> pending change.
type Index struct {
	Entries map[string]*IndexEntry `json:"entries"`
}

func newIndex() *Index {
	return &Index{Entries: make(map[string]*IndexEntry)}
}

// Len returns the number of staged paths.
func (idx *Index) Len() int {
	return len(idx.Entries)
}

// Sorted returns copies of the entries ordered by path.
func (idx *Index) Sorted() []IndexEntry {
	out := make([]IndexEntry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (idx *Index) clone() *Index {
	c := newIndex()
	for p, e := range idx.Entries {
		cp := *e
		c.Entries[p] = &cp
	}
	return c
}

// applyTo overlays the pending changes on a flat tree.
func (idx *Index) applyTo(files map[string]object.Hash) {
	for p, e := range idx.Entries {
		if e.Op == object.ChangeDelete {
			delete(files, p)
			continue
		}
		files[p] = e.BlobHash
	}
}

// Add records the current worktree content of each path in the current
// branch's index. A path missing from the worktree but present in the
// branch head is staged as a deletion. Staging content identical to the
// head drops any pending entry for the path. Either every path is staged
// or none is.
func (r *Repository) Add(paths ...string) error {
	r.lock()
	defer r.unlock()

	clean, err := normalizePaths(paths)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if len(clean) == 0 {
		return nil
	}
	contents := make(map[string][]byte, len(clean))
	for _, p := range clean {
		data, err := r.worktree.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				contents[p] = nil
				continue
			}
			return fmt.Errorf("add: read %s: %w", p, err)
		}
		if data == nil {
			data = []byte{}
		}
		contents[p] = data
	}
	if err := r.stage(clean, contents); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

// StageContent writes content to path in the worktree and stages it.
func (r *Repository) StageContent(p string, content []byte) error {
	r.lock()
	defer r.unlock()

	np, err := NormalizePath(p)
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	if content == nil {
		content = []byte{}
	}
	plan, err := r.planStage([]string{np}, map[string][]byte{np: content})
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	if err := r.worktree.WriteFile(np, content); err != nil {
		return fmt.Errorf("stage: write %s: %w", np, err)
	}
	if err := r.applyStage(plan); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	return nil
}

// Remove stages the deletion of each path and removes it from the
// worktree.
func (r *Repository) Remove(paths ...string) error {
	r.lock()
	defer r.unlock()

	clean, err := normalizePaths(paths)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	contents := make(map[string][]byte, len(clean))
	for _, p := range clean {
		contents[p] = nil
	}
	plan, err := r.planStage(clean, contents)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	for _, p := range clean {
		if err := r.worktree.Remove(p); err != nil {
			return fmt.Errorf("remove: %s: %w", p, err)
		}
	}
	if err := r.applyStage(plan); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// AddAll stages every path whose worktree content differs from the
// current branch's index or head, including deletions.
func (r *Repository) AddAll() ([]string, error) {
	r.lock()
	defer r.unlock()

	entries, err := r.status()
	if err != nil {
		return nil, fmt.Errorf("add all: %w", err)
	}
	var paths []string
	contents := make(map[string][]byte)
	for _, e := range entries {
		if e.Worktree == WorktreeClean {
			continue
		}
		paths = append(paths, e.Path)
		if e.Worktree == WorktreeDeleted {
			contents[e.Path] = nil
			continue
		}
		data, err := r.worktree.ReadFile(e.Path)
		if err != nil {
			return nil, fmt.Errorf("add all: read %s: %w", e.Path, err)
		}
		if data == nil {
			data = []byte{}
		}
		contents[e.Path] = data
	}
	if len(paths) == 0 {
		return nil, nil
	}
	if err := r.stage(paths, contents); err != nil {
		return nil, fmt.Errorf("add all: %w", err)
	}
	return paths, nil
}

// stagePlan is a validated index update that has not been applied yet.
type stagePlan struct {
	paths   []string
	blobs   map[object.Hash][]byte
	pending map[string]*IndexEntry // a nil entry drops the path
}

// stage applies content to the current index; nil content means delete.
func (r *Repository) stage(paths []string, contents map[string][]byte) error {
	plan, err := r.planStage(paths, contents)
	if err != nil {
		return err
	}
	return r.applyStage(plan)
}

// planStage validates every path and computes the index update without
// changing anything.
func (r *Repository) planStage(paths []string, contents map[string][]byte) (*stagePlan, error) {
	head, err := r.commitFiles(r.branches[r.current])
	if err != nil {
		return nil, err
	}
	idx := r.index(r.current)

	for _, p := range paths {
		np, err := NormalizePath(p)
		if err != nil {
			return nil, err
		}
		if np != p {
			return nil, fmt.Errorf("%w: %q is not in canonical form", ErrInvalidPath, p)
		}
		if contents[p] != nil {
			continue
		}
		if _, inHead := head[p]; inHead {
			continue
		}
		if _, staged := idx.Entries[p]; staged {
			continue
		}
		return nil, &NotFoundError{Kind: "path", ID: p}
	}

	plan := &stagePlan{
		paths:   paths,
		blobs:   make(map[object.Hash][]byte),
		pending: make(map[string]*IndexEntry, len(paths)),
	}
	for _, p := range paths {
		data := contents[p]
		headHash, inHead := head[p]
		if data == nil {
			if inHead {
				plan.pending[p] = &IndexEntry{Path: p, Op: object.ChangeDelete}
			} else {
				plan.pending[p] = nil
			}
			continue
		}
		h := object.HashObject(object.TypeBlob, data)
		plan.blobs[h] = data
		switch {
		case !inHead:
			plan.pending[p] = &IndexEntry{Path: p, Op: object.ChangeAdd, BlobHash: h}
		case headHash == h:
			plan.pending[p] = nil
		default:
			plan.pending[p] = &IndexEntry{Path: p, Op: object.ChangeModify, BlobHash: h}
		}
	}

	// The staged tree must stay writable: no path may be both a file and
	// the directory of another file.
	result := make(map[string]object.Hash, len(head))
	for p, h := range head {
		result[p] = h
	}
	idx.applyTo(result)
	touched := make(map[string]bool, len(paths))
	for p, e := range plan.pending {
		touched[p] = true
		switch {
		case e == nil:
			if h, inHead := head[p]; inHead {
				result[p] = h
			} else {
				delete(result, p)
			}
		case e.Op == object.ChangeDelete:
			delete(result, p)
		default:
			result[p] = e.BlobHash
		}
	}
	for _, c := range fileDirClashes(result) {
		if touched[c.File] || touched[c.Nested] {
			return nil, fmt.Errorf("%w: %q is a file and the parent of %q", ErrInvalidPath, c.File, c.Nested)
		}
	}
	return plan, nil
}

// applyStage writes the planned blobs, then updates the index.
func (r *Repository) applyStage(plan *stagePlan) error {
	for _, data := range plan.blobs {
		if _, err := r.store.WriteBlob(&object.Blob{Data: data}); err != nil {
			return fmt.Errorf("write blob: %w", err)
		}
	}
	idx := r.index(r.current)
	for p, e := range plan.pending {
		if e == nil {
			delete(idx.Entries, p)
			continue
		}
		idx.Entries[p] = e
	}

	r.log.WithFields(logrus.Fields{"branch": r.current, "paths": plan.paths}).Debug("staged")
	r.emit(EventFilesStaged, FilesPayload{Paths: append([]string(nil), plan.paths...)})
	return nil
}

// Unstage drops pending entries for paths without touching content.
// Paths that are not staged are ignored.
func (r *Repository) Unstage(paths ...string) error {
	r.lock()
	defer r.unlock()

	clean, err := normalizePaths(paths)
	if err != nil {
		return fmt.Errorf("unstage: %w", err)
	}
	idx := r.index(r.current)
	var affected []string
	for _, p := range clean {
		if _, ok := idx.Entries[p]; ok {
			delete(idx.Entries, p)
			affected = append(affected, p)
		}
	}
	if len(affected) == 0 {
		return nil
	}
	r.log.WithFields(logrus.Fields{"branch": r.current, "paths": affected}).Debug("unstaged")
	r.emit(EventFilesUnstaged, FilesPayload{Paths: affected})
	return nil
}

// Staged returns the current branch's pending entries ordered by path.
func (r *Repository) Staged() []IndexEntry {
	r.lock()
	defer r.unlock()
	return r.index(r.current).Sorted()
}
