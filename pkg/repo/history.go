package repo

import (
	"fmt"

	"github.com/odvcencio/solvc/pkg/object"
)

// History walks the first-parent chain from the tip of branch to the root
// and returns the commits newest first. Second and later parents of merge
// commits are not expanded; see FullHistory. An empty branch means the
// current branch, which has no history before its first commit.
func (r *Repository) History(branch string) ([]*Commit, error) {
	r.lock()
	defer r.unlock()

	tip, err := r.branchTip(branch)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	var out []*Commit
	seen := make(map[object.Hash]bool)
	for cur := tip; cur != ""; {
		if seen[cur] {
			return nil, fmt.Errorf("history: %w: parent cycle at %s", ErrCorrupt, cur.Short())
		}
		seen[cur] = true
		obj, err := r.readCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		view, err := r.commitView(cur, obj)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		out = append(out, view)
		if len(obj.Parents) == 0 {
			break
		}
		cur = obj.Parents[0]
	}
	return out, nil
}

// FullHistory returns every commit reachable from the tip of branch over
// all parent edges, children before parents. Among commits whose children
// have all been emitted, the newest (by timestamp, then id) comes first.
func (r *Repository) FullHistory(branch string) ([]*Commit, error) {
	r.lock()
	defer r.unlock()

	tip, err := r.branchTip(branch)
	if err != nil {
		return nil, fmt.Errorf("full history: %w", err)
	}
	if tip == "" {
		return nil, nil
	}
	ids, objs, err := r.topoOrder([]object.Hash{tip}, nil)
	if err != nil {
		return nil, fmt.Errorf("full history: %w", err)
	}
	out := make([]*Commit, 0, len(ids))
	for _, id := range ids {
		view, err := r.commitView(id, objs[id])
		if err != nil {
			return nil, fmt.Errorf("full history: %w", err)
		}
		out = append(out, view)
	}
	return out, nil
}

func (r *Repository) branchTip(branch string) (object.Hash, error) {
	if branch == "" {
		return r.branches[r.current], nil
	}
	tip, ok := r.branches[branch]
	if !ok {
		return "", &BranchNotFoundError{Name: branch}
	}
	return tip, nil
}

// topoOrder collects the commits reachable from tips, excluding those
// reachable from any hash in exclude, and orders them children first.
func (r *Repository) topoOrder(tips []object.Hash, exclude map[object.Hash]bool) ([]object.Hash, map[object.Hash]*object.CommitObj, error) {
	objs := make(map[object.Hash]*object.CommitObj)
	stack := append([]object.Hash(nil), tips...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := objs[h]; ok || exclude[h] {
			continue
		}
		obj, err := r.readCommit(h)
		if err != nil {
			return nil, nil, err
		}
		objs[h] = obj
		stack = append(stack, obj.Parents...)
	}

	children := make(map[object.Hash]int, len(objs))
	for _, obj := range objs {
		for _, p := range uniqueParents(obj.Parents) {
			if _, ok := objs[p]; ok {
				children[p]++
			}
		}
	}

	var ready commitQueue[int64]
	for h, obj := range objs {
		if children[h] == 0 {
			ready.Push(h, obj.Timestamp)
		}
	}
	order := make([]object.Hash, 0, len(objs))
	for ready.Len() > 0 {
		item := ready.Pop()
		order = append(order, item.hash)
		for _, p := range uniqueParents(objs[item.hash].Parents) {
			if _, ok := objs[p]; !ok {
				continue
			}
			children[p]--
			if children[p] == 0 {
				ready.Push(p, objs[p].Timestamp)
			}
		}
	}
	if len(order) != len(objs) {
		return nil, nil, fmt.Errorf("%w: commit graph contains a cycle", ErrCorrupt)
	}
	return order, objs, nil
}

func uniqueParents(parents []object.Hash) []object.Hash {
	if len(parents) < 2 {
		return parents
	}
	seen := make(map[object.Hash]bool, len(parents))
	out := make([]object.Hash, 0, len(parents))
	for _, p := range parents {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
