package repo

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/odvcencio/solvc/pkg/diff"
	"github.com/odvcencio/solvc/pkg/object"
)

// Diff returns the line diff of path. With an empty commitID it compares
// the current branch head with the index's pending content; otherwise it
// compares the commit with its first parent. The result is nil when path
// exists on neither side and empty when both sides are identical.
func (r *Repository) Diff(path string, commitID object.Hash) (*diff.FileDiff, error) {
	r.lock()
	defer r.unlock()

	p, err := NormalizePath(path)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	var before, after map[string]object.Hash
	if commitID == "" {
		if before, err = r.commitFiles(r.branches[r.current]); err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		if after, err = r.stagedFiles(r.current); err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	} else {
		obj, err := r.readCommit(commitID)
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		var parent object.Hash
		if len(obj.Parents) > 0 {
			parent = obj.Parents[0]
		}
		if before, err = r.commitFiles(parent); err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		if after, err = r.store.ReadFlatTree(obj.TreeHash); err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	}

	oldV, err := r.version(before, p)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	newV, err := r.version(after, p)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return diff.Files(p, oldV, newV), nil
}

// DiffWorktree returns the line diff of path between the index (or head,
// when the path is not staged) and the worktree.
func (r *Repository) DiffWorktree(path string) (*diff.FileDiff, error) {
	r.lock()
	defer r.unlock()

	p, err := NormalizePath(path)
	if err != nil {
		return nil, fmt.Errorf("diff worktree: %w", err)
	}
	staged, err := r.stagedFiles(r.current)
	if err != nil {
		return nil, fmt.Errorf("diff worktree: %w", err)
	}
	oldV, err := r.version(staged, p)
	if err != nil {
		return nil, fmt.Errorf("diff worktree: %w", err)
	}
	var newV *diff.Version
	data, err := r.worktree.ReadFile(p)
	switch {
	case err == nil:
		newV = &diff.Version{Data: data}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("diff worktree: %w", err)
	}
	return diff.Files(p, oldV, newV), nil
}

// DiffCommits lists the paths that differ between two commits. An empty
// from compares against the empty tree.
func (r *Repository) DiffCommits(from, to object.Hash) ([]diff.PathChange, error) {
	r.lock()
	defer r.unlock()

	before, err := r.commitFiles(from)
	if err != nil {
		return nil, fmt.Errorf("diff commits: %w", err)
	}
	after, err := r.commitFiles(to)
	if err != nil {
		return nil, fmt.Errorf("diff commits: %w", err)
	}
	return diff.Trees(before, after), nil
}

func (r *Repository) version(files map[string]object.Hash, p string) (*diff.Version, error) {
	h, ok := files[p]
	if !ok {
		return nil, nil
	}
	data, err := r.readBlob(h)
	if err != nil {
		return nil, err
	}
	return &diff.Version{Data: data}, nil
}
