package repo

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/solvc/pkg/diff"
	"github.com/odvcencio/solvc/pkg/object"
)

// InitialCommitMessage is the message of the commit Initialize creates.
const InitialCommitMessage = "Initial commit"

// Initialize seeds an empty repository with a root commit holding files
// on the default branch and writes the files into the worktree. It may be
// called once.
func (r *Repository) Initialize(files map[string][]byte, author object.Author) (*Commit, error) {
	r.lock()
	defer r.unlock()

	if len(r.branches) > 0 {
		return nil, fmt.Errorf("initialize: %w", ErrAlreadyInitialized)
	}

	tree := make(map[string]object.Hash, len(files))
	contents := make(map[string][]byte, len(files))
	for p, data := range files {
		np, err := NormalizePath(p)
		if err != nil {
			return nil, fmt.Errorf("initialize: %w", err)
		}
		h, err := r.store.WriteBlob(&object.Blob{Data: data})
		if err != nil {
			return nil, fmt.Errorf("initialize: write blob %s: %w", np, err)
		}
		tree[np] = h
		contents[np] = data
	}
	if clashes := fileDirClashes(tree); len(clashes) > 0 {
		return nil, fmt.Errorf("initialize: %w: %q is a file and the parent of %q", ErrInvalidPath, clashes[0].File, clashes[0].Nested)
	}

	changes := diff.Trees(nil, tree)
	id, obj, err := r.writeCommit(tree, nil, author, InitialCommitMessage, changes, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	view, err := r.commitView(id, obj)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	for p, data := range contents {
		if err := r.worktree.WriteFile(p, data); err != nil {
			return nil, fmt.Errorf("initialize: write worktree %s: %w", p, err)
		}
	}

	branch := r.defBranch
	r.current = branch
	r.moveBranch(branch, id, "initialize")
	r.indexes[branch] = newIndex()
	r.log.WithFields(logrus.Fields{
		"branch": branch,
		"commit": id.Short(),
		"files":  len(tree),
	}).Info("repository initialized")
	r.emit(EventRepositoryInitialized, RepositoryInitializedPayload{CommitID: id})
	return view, nil
}
