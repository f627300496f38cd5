package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/odvcencio/solvc/pkg/diff"
	"github.com/odvcencio/solvc/pkg/object"
)

// checkoutPlan is the set of worktree updates that turn one snapshot into
// another. Paths not changed between the snapshots are left alone.
type checkoutPlan struct {
	writes  map[string]object.Hash
	removes []string
}

// planCheckout computes the worktree updates from -> to. It fails with
// ErrDirtyWorktree when a path it would touch has local changes relative
// to from, so that no uncommitted work is overwritten.
func (r *Repository) planCheckout(from, to map[string]object.Hash) (*checkoutPlan, error) {
	plan := &checkoutPlan{writes: make(map[string]object.Hash)}
	var dirty []string
	for _, c := range diff.Trees(from, to) {
		state, err := r.worktreeHash(c.Path)
		if err != nil {
			return nil, err
		}
		if state != from[c.Path] {
			dirty = append(dirty, c.Path)
			continue
		}
		if c.Type == object.ChangeDelete {
			plan.removes = append(plan.removes, c.Path)
		} else {
			plan.writes[c.Path] = c.NewHash
		}
	}
	if len(dirty) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDirtyWorktree, strings.Join(dirty, ", "))
	}
	return plan, nil
}

func (r *Repository) applyCheckout(plan *checkoutPlan) error {
	for p, h := range plan.writes {
		data, err := r.readBlob(h)
		if err != nil {
			return fmt.Errorf("checkout %s: %w", p, err)
		}
		if err := r.worktree.WriteFile(p, data); err != nil {
			return fmt.Errorf("checkout %s: %w", p, err)
		}
	}
	for _, p := range plan.removes {
		if err := r.worktree.Remove(p); err != nil {
			return fmt.Errorf("checkout remove %s: %w", p, err)
		}
	}
	return nil
}

// worktreeHash returns the blob id of the worktree content at p, or ""
// when p does not exist.
func (r *Repository) worktreeHash(p string) (object.Hash, error) {
	data, err := r.worktree.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read worktree %s: %w", p, err)
	}
	return object.HashObject(object.TypeBlob, data), nil
}
