package repo

import (
	"fmt"

	"github.com/odvcencio/solvc/pkg/object"
)

const (
	maxMergeBaseBFSSteps = 1_000_000
	maxMergeBaseBFSDepth = 1_000_000
)

// These vars allow tests to tighten safety limits without affecting
// production defaults.
var (
	mergeBaseBFSStepsLimit = maxMergeBaseBFSSteps
	mergeBaseBFSDepthLimit = maxMergeBaseBFSDepth
)

type mergeBaseTraversalQueueItem struct {
	hash  object.Hash
	depth int
}

func mergeBaseTraversalLimits() (maxSteps int, maxDepth int) {
	maxSteps = normalizeMergeBaseTraversalLimit(mergeBaseBFSStepsLimit, maxMergeBaseBFSSteps)
	maxDepth = normalizeMergeBaseTraversalLimit(mergeBaseBFSDepthLimit, maxMergeBaseBFSDepth)
	return maxSteps, maxDepth
}

func normalizeMergeBaseTraversalLimit(limit, hardMax int) int {
	// Test hooks may only tighten the hard bounds.
	if limit <= 0 || limit > hardMax {
		return hardMax
	}
	return limit
}

func mergeBaseStepsLimitError(limit int) error {
	return fmt.Errorf("%w: traversal exceeded maximum steps (%d)", ErrNoCommonAncestorResolvable, limit)
}

func mergeBaseDepthLimitError(limit int) error {
	return fmt.Errorf("%w: traversal exceeded maximum depth (%d)", ErrNoCommonAncestorResolvable, limit)
}

// MergeBase returns the best common ancestor of two commits, or "" when
// their histories are disjoint.
func (r *Repository) MergeBase(a, b object.Hash) (object.Hash, error) {
	r.lock()
	defer r.unlock()

	base, _, err := r.findMergeBase(a, b)
	if err != nil {
		return "", fmt.Errorf("merge base: %w", err)
	}
	return base, nil
}

// IsAncestor reports whether ancestor is reachable from descendant over
// parent edges. A commit is its own ancestor.
func (r *Repository) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	r.lock()
	defer r.unlock()

	state := r.getMergeTraversalState()
	genA, err := state.generation(r.store, ancestor)
	if err != nil {
		return false, fmt.Errorf("is ancestor: %w", err)
	}
	genD, err := state.generation(r.store, descendant)
	if err != nil {
		return false, fmt.Errorf("is ancestor: %w", err)
	}
	ok, err := r.isAncestorWithGeneration(state, ancestor, descendant, genA, genD)
	if err != nil {
		return false, fmt.Errorf("is ancestor: %w", err)
	}
	return ok, nil
}

// findMergeBase finds a common ancestor of two commits over all parent
// edges. It uses cached generation numbers for pruning, fast ancestor
// checks for linear histories, and a memoized pair cache for repeated
// queries. When several best candidates exist (criss-cross histories) the
// one with the highest generation wins, ties going to the smaller hash.
func (r *Repository) findMergeBase(a, b object.Hash) (object.Hash, bool, error) {
	if a == "" || b == "" {
		return "", false, nil
	}
	if a == b {
		return a, true, nil
	}

	state := r.getMergeTraversalState()
	if cached, ok := state.loadMergeBase(a, b); ok {
		return cached.base, cached.found, nil
	}

	genA, err := state.generation(r.store, a)
	if err != nil {
		return "", false, err
	}
	genB, err := state.generation(r.store, b)
	if err != nil {
		return "", false, err
	}

	// Fast path: one side already contains the other. Check the lower
	// generation first; it is the only one that can be the ancestor
	// unless both are equal.
	first, second := a, b
	genFirst, genSecond := genA, genB
	if genA > genB {
		first, second = b, a
		genFirst, genSecond = genB, genA
	}
	isAncestor, err := r.isAncestorWithGeneration(state, first, second, genFirst, genSecond)
	if err != nil {
		return "", false, err
	}
	if isAncestor {
		state.storeMergeBase(a, b, first, true)
		return first, true, nil
	}
	isAncestor, err = r.isAncestorWithGeneration(state, second, first, genSecond, genFirst)
	if err != nil {
		return "", false, err
	}
	if isAncestor {
		state.storeMergeBase(a, b, second, true)
		return second, true, nil
	}

	base, found, err := r.findMergeBaseWithPruning(state, a, b, genA, genB)
	if err != nil {
		return "", false, err
	}
	state.storeMergeBase(a, b, base, found)
	return base, found, nil
}

func (r *Repository) isAncestorWithGeneration(state *mergeBaseTraversalState, ancestor, descendant object.Hash, ancestorGeneration, descendantGeneration uint64) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	if ancestorGeneration >= descendantGeneration {
		return false, nil
	}

	maxSteps, maxDepth := mergeBaseTraversalLimits()
	visited := map[object.Hash]struct{}{descendant: {}}
	queue := []mergeBaseTraversalQueueItem{{hash: descendant, depth: 0}}
	steps := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		steps++
		if steps > maxSteps {
			return false, mergeBaseStepsLimitError(maxSteps)
		}

		cur := item.hash
		if cur == ancestor {
			return true, nil
		}

		curGeneration, err := state.generation(r.store, cur)
		if err != nil {
			return false, err
		}
		if curGeneration <= ancestorGeneration {
			continue
		}

		commit, err := state.readCommit(r.store, cur)
		if err != nil {
			return false, err
		}
		for _, p := range commit.Parents {
			if p == "" {
				continue
			}
			if _, seen := visited[p]; seen {
				continue
			}
			parentGeneration, err := state.generation(r.store, p)
			if err != nil {
				return false, err
			}
			if parentGeneration < ancestorGeneration {
				continue
			}
			childDepth := item.depth + 1
			if childDepth > maxDepth {
				return false, mergeBaseDepthLimitError(maxDepth)
			}
			visited[p] = struct{}{}
			queue = append(queue, mergeBaseTraversalQueueItem{hash: p, depth: childDepth})
		}
	}

	return false, nil
}

// findMergeBaseWithPruning walks both histories highest generation first.
// A commit seen from both sides is a candidate; once both frontiers drop
// below the best candidate's generation nothing better can appear.
func (r *Repository) findMergeBaseWithPruning(state *mergeBaseTraversalState, a, b object.Hash, genA, genB uint64) (object.Hash, bool, error) {
	maxSteps, maxDepth := mergeBaseTraversalLimits()

	sides := [2]*mergeBaseSide{
		newMergeBaseSide(a, genA),
		newMergeBaseSide(b, genB),
	}

	best := object.Hash("")
	var bestGeneration uint64
	steps := 0

	for sides[0].queue.Len() > 0 || sides[1].queue.Len() > 0 {
		topA, okA := sides[0].queue.Peek()
		topB, okB := sides[1].queue.Peek()
		if best != "" && (!okA || topA.rank < bestGeneration) && (!okB || topB.rank < bestGeneration) {
			break
		}

		// Advance the side whose frontier is higher.
		cur := 1
		switch {
		case !okB:
			cur = 0
		case !okA:
			cur = 1
		case topA.rank > topB.rank:
			cur = 0
		case topA.rank == topB.rank && topA.hash <= topB.hash:
			cur = 0
		}
		this, other := sides[cur], sides[1-cur]
		item := this.queue.Pop()

		steps++
		if steps > maxSteps {
			return "", false, mergeBaseStepsLimitError(maxSteps)
		}
		if best != "" && item.rank < bestGeneration {
			continue
		}

		itemDepth := this.depth[item.hash]
		if itemDepth > maxDepth {
			return "", false, mergeBaseDepthLimitError(maxDepth)
		}
		if _, seen := other.depth[item.hash]; seen {
			best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, item.hash, item.rank)
		}

		commit, err := state.readCommit(r.store, item.hash)
		if err != nil {
			return "", false, err
		}
		for _, p := range commit.Parents {
			if p == "" {
				continue
			}
			parentGeneration, err := state.generation(r.store, p)
			if err != nil {
				return "", false, err
			}
			if best != "" && parentGeneration < bestGeneration {
				continue
			}
			childDepth := itemDepth + 1
			if childDepth > maxDepth {
				return "", false, mergeBaseDepthLimitError(maxDepth)
			}
			if _, seen := this.depth[p]; seen {
				continue
			}
			this.depth[p] = childDepth
			this.queue.Push(p, parentGeneration)
			if _, seen := other.depth[p]; seen {
				best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, p, parentGeneration)
			}
		}
	}

	return best, best != "", nil
}

// mergeBaseSide is one side of the two-frontier walk. depth doubles as the
// visited set.
type mergeBaseSide struct {
	queue commitQueue[uint64]
	depth map[object.Hash]int
}

func newMergeBaseSide(start object.Hash, generation uint64) *mergeBaseSide {
	s := &mergeBaseSide{depth: map[object.Hash]int{start: 0}}
	s.queue.Push(start, generation)
	return s
}

func chooseBetterMergeBase(best object.Hash, bestGeneration uint64, candidate object.Hash, candidateGeneration uint64) (object.Hash, uint64) {
	if best == "" {
		return candidate, candidateGeneration
	}
	if candidateGeneration > bestGeneration {
		return candidate, candidateGeneration
	}
	if candidateGeneration < bestGeneration {
		return best, bestGeneration
	}
	if candidate < best {
		return candidate, candidateGeneration
	}
	return best, bestGeneration
}
