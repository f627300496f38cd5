package repo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/solvc/pkg/object"
)

// Snapshot is the mutable state of a repository. Objects are not part of
// it; they live in the object store. A persistence adapter saves a
// Snapshot after the objects it references have been written.
type Snapshot struct {
	CurrentBranch string
	Branches      map[string]object.Hash
	Indexes       map[string]*Index
	MergeRequests []*MergeRequest
	Reflog        map[string][]ReflogEntry
}

// Snapshot returns a deep copy of the repository's mutable state.
func (r *Repository) Snapshot() *Snapshot {
	r.lock()
	defer r.unlock()

	s := &Snapshot{
		CurrentBranch: r.current,
		Branches:      make(map[string]object.Hash, len(r.branches)),
		Indexes:       make(map[string]*Index, len(r.indexes)),
		MergeRequests: r.listMergeRequests(""),
		Reflog:        make(map[string][]ReflogEntry, len(r.reflog)),
	}
	for name, head := range r.branches {
		s.Branches[name] = head
	}
	for name, idx := range r.indexes {
		if idx.Len() > 0 {
			s.Indexes[name] = idx.clone()
		}
	}
	for name, log := range r.reflog {
		s.Reflog[name] = append([]ReflogEntry(nil), log...)
	}
	return s
}

// Restore rebuilds a repository from a snapshot over the store given with
// WithStore. Every branch head must resolve to a commit in that store.
// The worktree is not touched.
func Restore(s *Snapshot, opts ...Option) (*Repository, error) {
	r := New(opts...)
	if s == nil {
		return r, nil
	}

	for name, head := range s.Branches {
		if err := validateBranchName(name); err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
		if _, err := r.readCommit(head); err != nil {
			return nil, fmt.Errorf("restore: branch %q: %w", name, err)
		}
		r.branches[name] = head
	}
	if s.CurrentBranch != "" {
		r.current = s.CurrentBranch
	}
	if len(r.branches) > 0 {
		if _, ok := r.branches[r.current]; !ok {
			return nil, fmt.Errorf("restore: current branch: %w", &BranchNotFoundError{Name: r.current})
		}
	}

	for name, idx := range s.Indexes {
		if idx == nil {
			continue
		}
		c := idx.clone()
		for p, e := range c.Entries {
			if e.Path == "" {
				e.Path = p
			}
			if e.Op != object.ChangeDelete && !r.store.Has(e.BlobHash) {
				return nil, fmt.Errorf("restore: index %q path %s: %w", name, p, &NotFoundError{Kind: "blob", ID: string(e.BlobHash)})
			}
		}
		r.indexes[name] = c
	}
	for _, mr := range s.MergeRequests {
		if mr == nil || mr.ID == "" {
			continue
		}
		r.mergeRequests[mr.ID] = mr.clone()
	}
	for name, log := range s.Reflog {
		r.reflog[name] = append([]ReflogEntry(nil), log...)
	}
	return r, nil
}

// Verify walks every object reachable from the branch heads and the
// staged blobs, and fails with ErrCorrupt if any is missing.
func (r *Repository) Verify() (*object.Reachability, error) {
	r.lock()
	defer r.unlock()

	var roots []object.Hash
	names := make([]string, 0, len(r.branches))
	for name := range r.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		roots = append(roots, r.branches[name])
	}
	for _, idx := range r.indexes {
		for _, e := range idx.Entries {
			if e.BlobHash != "" {
				roots = append(roots, e.BlobHash)
			}
		}
	}

	res, err := r.store.Walk(roots)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if len(res.Missing) > 0 {
		missing := make([]string, len(res.Missing))
		for i, h := range res.Missing {
			missing[i] = h.Short()
		}
		return res, fmt.Errorf("verify: %w: %d missing object(s): %s", ErrCorrupt, len(res.Missing), strings.Join(missing, ", "))
	}
	return res, nil
}
