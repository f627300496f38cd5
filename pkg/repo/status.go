package repo

import (
	"fmt"
	"sort"

	"github.com/odvcencio/solvc/pkg/object"
)

// IndexState compares the index with the branch head.
type IndexState string

const (
	IndexClean    IndexState = ""
	IndexAdded    IndexState = "added"
	IndexModified IndexState = "modified"
	IndexDeleted  IndexState = "deleted"
)

// WorktreeState compares the worktree with the index, or with the branch
// head for unstaged paths.
type WorktreeState string

const (
	WorktreeClean     WorktreeState = ""
	WorktreeModified  WorktreeState = "modified"
	WorktreeDeleted   WorktreeState = "deleted"
	WorktreeUntracked WorktreeState = "untracked"
)

// StatusEntry records the state of one path that is not clean.
type StatusEntry struct {
	Path     string
	Index    IndexState
	Worktree WorktreeState
}

// Status computes the state of every path that differs between the
// current branch head, its index, and the worktree.
//
//  1. Index state comes from the pending entry for the path, if any.
//  2. Worktree state compares the worktree file with the head tree with
//     the index applied.
//  3. Entries are sorted by path; clean paths are omitted.
func (r *Repository) Status() ([]StatusEntry, error) {
	r.lock()
	defer r.unlock()
	return r.status()
}

func (r *Repository) status() ([]StatusEntry, error) {
	staged, err := r.stagedFiles(r.current)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	work, err := r.worktree.List()
	if err != nil {
		return nil, fmt.Errorf("status: list worktree: %w", err)
	}
	idx := r.index(r.current)

	paths := make(map[string]struct{}, len(staged)+len(work))
	for p := range staged {
		paths[p] = struct{}{}
	}
	for p := range idx.Entries {
		paths[p] = struct{}{}
	}
	for _, p := range work {
		paths[p] = struct{}{}
	}

	var out []StatusEntry
	for p := range paths {
		e := StatusEntry{Path: p}
		if ie, ok := idx.Entries[p]; ok {
			switch ie.Op {
			case object.ChangeAdd:
				e.Index = IndexAdded
			case object.ChangeModify:
				e.Index = IndexModified
			case object.ChangeDelete:
				e.Index = IndexDeleted
			}
		}

		wh, err := r.worktreeHash(p)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		sh, tracked := staged[p]
		switch {
		case !tracked && wh != "":
			e.Worktree = WorktreeUntracked
		case tracked && wh == "":
			e.Worktree = WorktreeDeleted
		case tracked && wh != sh:
			e.Worktree = WorktreeModified
		}

		if e.Index != IndexClean || e.Worktree != WorktreeClean {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
