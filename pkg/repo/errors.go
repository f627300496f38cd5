package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/solvc/pkg/object"
)

var (
	ErrEmptyCommit                = errors.New("nothing to commit")
	ErrEmptyMessage               = errors.New("commit message is empty")
	ErrNoCommonAncestorResolvable = errors.New("no common ancestor resolvable")
	ErrBranchExists               = errors.New("branch already exists")
	ErrInvalidBranchName          = errors.New("invalid branch name")
	ErrInvalidPath                = errors.New("invalid path")
	ErrNotInitialized             = errors.New("repository not initialized")
	ErrAlreadyInitialized         = errors.New("repository already initialized")
	ErrDeleteCurrentBranch        = errors.New("cannot delete the current branch")
	ErrSameBranch                 = errors.New("source and target branch are the same")
	ErrDirtyWorktree              = errors.New("worktree has uncommitted changes")
	ErrEmptyTitle                 = errors.New("merge request title is empty")
	ErrMergeRequestNotOpen        = errors.New("merge request is not open")
	ErrInvalidReview              = errors.New("invalid review")
	ErrCorrupt                    = errors.New("repository is corrupt")
)

// NotFoundError reports an unknown blob, tree, commit, path, or merge
// request. It matches object.ErrNotFound under errors.Is.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return object.ErrNotFound
}

// BranchNotFoundError reports a branch name that does not exist.
type BranchNotFoundError struct {
	Name string
}

func (e *BranchNotFoundError) Error() string {
	return fmt.Sprintf("branch %q not found", e.Name)
}

// Conflict describes one path that was changed differently on both sides
// of a merge, or a file that the other side needs as a directory. A nil
// side means the path is absent there as a file.
type Conflict struct {
	Path   string
	Base   []byte
	Ours   []byte // target branch
	Theirs []byte // source branch

	// Marked is a rendering of the conflict with <<<<<<< ======= >>>>>>>
	// markers, suitable for a manual resolution editor.
	Marked []byte
}

// MergeConflictError is returned when a merge cannot complete. Nothing in
// the repository is changed when it is returned.
type MergeConflictError struct {
	Source    string
	Target    string
	Conflicts []Conflict // sorted by path
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge %s into %s: %d conflicting path(s): %s",
		e.Source, e.Target, len(e.Conflicts), strings.Join(e.Paths(), ", "))
}

// Paths returns the conflicting paths.
func (e *MergeConflictError) Paths() []string {
	out := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		out[i] = c.Path
	}
	return out
}

// InvalidStateTransitionError reports an illegal merge request status
// change.
type InvalidStateTransitionError struct {
	ID   string
	From MergeRequestStatus
	To   MergeRequestStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("merge request %s: invalid transition %s -> %s", e.ID, e.From, e.To)
}
