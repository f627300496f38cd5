package repo

import (
	"fmt"
	"sync"

	"github.com/odvcencio/solvc/pkg/object"
)

type mergeBaseCacheKey struct {
	left  object.Hash
	right object.Hash
}

type mergeBaseCacheEntry struct {
	base  object.Hash
	found bool
}

// mergeBaseTraversalState memoizes commit reads, generation numbers, and
// merge-base answers. Commits are immutable, so entries never go stale.
type mergeBaseTraversalState struct {
	mu sync.RWMutex

	commits     map[object.Hash]*object.CommitObj
	generations map[object.Hash]uint64
	mergeBases  map[mergeBaseCacheKey]mergeBaseCacheEntry
}

func newMergeBaseTraversalState() *mergeBaseTraversalState {
	return &mergeBaseTraversalState{
		commits:     make(map[object.Hash]*object.CommitObj),
		generations: make(map[object.Hash]uint64),
		mergeBases:  make(map[mergeBaseCacheKey]mergeBaseCacheEntry),
	}
}

func canonicalMergeBaseCacheKey(a, b object.Hash) mergeBaseCacheKey {
	if a <= b {
		return mergeBaseCacheKey{left: a, right: b}
	}
	return mergeBaseCacheKey{left: b, right: a}
}

func (s *mergeBaseTraversalState) loadMergeBase(a, b object.Hash) (mergeBaseCacheEntry, bool) {
	key := canonicalMergeBaseCacheKey(a, b)
	s.mu.RLock()
	entry, ok := s.mergeBases[key]
	s.mu.RUnlock()
	return entry, ok
}

func (s *mergeBaseTraversalState) storeMergeBase(a, b, base object.Hash, found bool) {
	key := canonicalMergeBaseCacheKey(a, b)
	s.mu.Lock()
	s.mergeBases[key] = mergeBaseCacheEntry{base: base, found: found}
	s.mu.Unlock()
}

func (s *mergeBaseTraversalState) mergeBaseCacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mergeBases)
}

func (s *mergeBaseTraversalState) readCommit(store *object.Store, h object.Hash) (*object.CommitObj, error) {
	s.mu.RLock()
	cached, ok := s.commits[h]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	commit, err := store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("%w: read commit %s: %w", ErrNoCommonAncestorResolvable, h.Short(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, exists := s.commits[h]; exists {
		return existing, nil
	}
	s.commits[h] = commit
	return commit, nil
}

func (s *mergeBaseTraversalState) loadGeneration(h object.Hash) (uint64, bool) {
	s.mu.RLock()
	g, ok := s.generations[h]
	s.mu.RUnlock()
	return g, ok
}

func (s *mergeBaseTraversalState) storeGeneration(h object.Hash, g uint64) {
	s.mu.Lock()
	s.generations[h] = g
	s.mu.Unlock()
}

func (s *mergeBaseTraversalState) generationCacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.generations)
}

// generation returns 1 + the maximum generation of h's parents (roots are
// 1). It walks with an explicit stack so deep histories cannot exhaust the
// goroutine stack, and reports a cycle in a corrupt graph as an error.
func (s *mergeBaseTraversalState) generation(store *object.Store, h object.Hash) (uint64, error) {
	if h == "" {
		return 0, nil
	}
	if g, ok := s.loadGeneration(h); ok {
		return g, nil
	}

	type frame struct {
		hash    object.Hash
		parents []object.Hash
		next    int
		max     uint64
	}
	onStack := map[object.Hash]bool{h: true}
	commit, err := s.readCommit(store, h)
	if err != nil {
		return 0, err
	}
	stack := []*frame{{hash: h, parents: commit.Parents}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.parents) {
			g := top.max + 1
			s.storeGeneration(top.hash, g)
			delete(onStack, top.hash)
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.max = max(parent.max, g)
			}
			continue
		}

		p := top.parents[top.next]
		top.next++
		if p == "" {
			continue
		}
		if g, ok := s.loadGeneration(p); ok {
			top.max = max(top.max, g)
			continue
		}
		if onStack[p] {
			return 0, fmt.Errorf("%w: commit graph cycle detected at %s", ErrNoCommonAncestorResolvable, p.Short())
		}
		pc, err := s.readCommit(store, p)
		if err != nil {
			return 0, err
		}
		onStack[p] = true
		stack = append(stack, &frame{hash: p, parents: pc.Parents})
	}

	g, _ := s.loadGeneration(h)
	return g, nil
}
