package repo

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/solvc/pkg/diff"
	"github.com/odvcencio/solvc/pkg/object"
)

// Change is a path-level change of a commit relative to its first parent,
// with the blob contents resolved.
type Change struct {
	Type       object.ChangeType
	Path       string
	Content    []byte // nil for deletes
	OldContent []byte // nil for adds
}

// Commit is the resolved view of a commit object.
type Commit struct {
	ID        object.Hash
	TreeID    object.Hash
	ParentIDs []object.Hash
	Author    object.Author
	Message   string
	Timestamp time.Time
	Changes   []Change
	Signature string
}

// Summary returns the first line of the message.
func (c *Commit) Summary() string {
	summary, _, _ := strings.Cut(c.Message, "\n")
	return summary
}

// Commit snapshots the current branch's head tree with its index applied
// into a new commit, advances the branch, and clears the index. The index
// may be empty only for the first commit of a repository.
func (r *Repository) Commit(message string, author object.Author) (*Commit, error) {
	return r.CommitWithSigner(message, author, nil)
}

// CommitWithSigner is Commit, signing the commit payload when signer is
// not nil.
func (r *Repository) CommitWithSigner(message string, author object.Author, signer object.CommitSigner) (*Commit, error) {
	r.lock()
	defer r.unlock()

	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("commit: %w", ErrEmptyMessage)
	}
	if err := author.Validate(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	branch := r.current
	parent := r.branches[branch]
	idx := r.index(branch)
	if idx.Len() == 0 && parent != "" {
		return nil, fmt.Errorf("commit: %w", ErrEmptyCommit)
	}

	before, err := r.commitFiles(parent)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	after := make(map[string]object.Hash, len(before))
	for p, h := range before {
		after[p] = h
	}
	idx.applyTo(after)

	changes := diff.Trees(before, after)
	if len(changes) == 0 && parent != "" {
		return nil, fmt.Errorf("commit: %w", ErrEmptyCommit)
	}

	var parents []object.Hash
	if parent != "" {
		parents = []object.Hash{parent}
	}
	id, obj, err := r.writeCommit(after, parents, author, message, changes, signer)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	reason := "commit: " + firstLine(message)
	if parent == "" {
		reason = "commit (initial): " + firstLine(message)
	}
	view, err := r.commitView(id, obj)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	r.moveBranch(branch, id, reason)
	r.indexes[branch] = newIndex()
	r.log.WithFields(logrus.Fields{
		"branch":  branch,
		"commit":  id.Short(),
		"changes": len(changes),
	}).Info("commit created")
	r.emit(EventCommitCreated, CommitCreatedPayload{Commit: view})
	return view, nil
}

// writeCommit stores the tree and commit objects. Nothing else is changed.
func (r *Repository) writeCommit(files map[string]object.Hash, parents []object.Hash, author object.Author, message string, changes []diff.PathChange, signer object.CommitSigner) (object.Hash, *object.CommitObj, error) {
	treeHash, err := r.store.WriteFlatTree(files)
	if err != nil {
		return "", nil, fmt.Errorf("write tree: %w", err)
	}
	obj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Timestamp: r.timestamp().Unix(),
		Message:   message,
		Changes:   changeEntries(changes),
	}
	if signer != nil {
		sig, err := signer(object.CommitSigningPayload(obj))
		if err != nil {
			return "", nil, fmt.Errorf("sign commit: %w", err)
		}
		obj.Signature = sig
	}
	id, err := r.store.WriteCommit(obj)
	if err != nil {
		return "", nil, fmt.Errorf("write commit: %w", err)
	}
	return id, obj, nil
}

func changeEntries(changes []diff.PathChange) []object.ChangeEntry {
	if len(changes) == 0 {
		return nil
	}
	out := make([]object.ChangeEntry, len(changes))
	for i, c := range changes {
		out[i] = object.ChangeEntry{Type: c.Type, Path: c.Path, BlobHash: c.NewHash, OldBlobHash: c.OldHash}
	}
	return out
}

// GetCommit returns the commit with the given id.
func (r *Repository) GetCommit(id object.Hash) (*Commit, error) {
	r.lock()
	defer r.unlock()

	obj, err := r.readCommit(id)
	if err != nil {
		return nil, fmt.Errorf("get commit: %w", err)
	}
	return r.commitView(id, obj)
}

// VerifyCommit checks the signature of a commit with verify.
func (r *Repository) VerifyCommit(id object.Hash, verify object.CommitVerifier) error {
	r.lock()
	defer r.unlock()

	obj, err := r.readCommit(id)
	if err != nil {
		return fmt.Errorf("verify commit: %w", err)
	}
	if obj.Signature == "" {
		return fmt.Errorf("verify commit %s: commit is not signed", id.Short())
	}
	if err := verify(object.CommitSigningPayload(obj), obj.Signature); err != nil {
		return fmt.Errorf("verify commit %s: %w", id.Short(), err)
	}
	return nil
}

func (r *Repository) commitView(id object.Hash, obj *object.CommitObj) (*Commit, error) {
	c := &Commit{
		ID:        id,
		TreeID:    obj.TreeHash,
		ParentIDs: append([]object.Hash(nil), obj.Parents...),
		Author:    obj.Author,
		Message:   obj.Message,
		Timestamp: time.Unix(obj.Timestamp, 0).UTC(),
		Signature: obj.Signature,
	}
	for _, ce := range obj.Changes {
		ch := Change{Type: ce.Type, Path: ce.Path}
		if ce.BlobHash != "" {
			data, err := r.readBlob(ce.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("commit %s change %s: %w", id.Short(), ce.Path, err)
			}
			ch.Content = data
		}
		if ce.OldBlobHash != "" {
			data, err := r.readBlob(ce.OldBlobHash)
			if err != nil {
				return nil, fmt.Errorf("commit %s change %s: %w", id.Short(), ce.Path, err)
			}
			ch.OldContent = data
		}
		c.Changes = append(c.Changes, ch)
	}
	return c, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
