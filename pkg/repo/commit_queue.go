package repo

import (
	"cmp"
	"container/heap"

	"github.com/odvcencio/solvc/pkg/object"
)

// queuedCommit is a commit waiting in a commitQueue. rank is the
// generation number during merge-base search and the commit timestamp in
// history walks.
type queuedCommit[K cmp.Ordered] struct {
	hash object.Hash
	rank K
}

// commitQueue pops the highest-ranked commit first; equal ranks pop the
// smaller hash first so every walk is deterministic. The zero value is an
// empty queue.
type commitQueue[K cmp.Ordered] struct {
	items commitHeap[K]
}

func (q *commitQueue[K]) Len() int { return len(q.items) }

func (q *commitQueue[K]) Push(hash object.Hash, rank K) {
	heap.Push(&q.items, queuedCommit[K]{hash: hash, rank: rank})
}

func (q *commitQueue[K]) Pop() queuedCommit[K] {
	return heap.Pop(&q.items).(queuedCommit[K])
}

// Peek returns the next commit without removing it.
func (q *commitQueue[K]) Peek() (queuedCommit[K], bool) {
	if len(q.items) == 0 {
		return queuedCommit[K]{}, false
	}
	return q.items[0], true
}

type commitHeap[K cmp.Ordered] []queuedCommit[K]

func (h commitHeap[K]) Len() int { return len(h) }

func (h commitHeap[K]) Less(i, j int) bool {
	if h[i].rank == h[j].rank {
		return h[i].hash < h[j].hash
	}
	return h[i].rank > h[j].rank
}

func (h commitHeap[K]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *commitHeap[K]) Push(x any) { *h = append(*h, x.(queuedCommit[K])) }

func (h *commitHeap[K]) Pop() any {
	last := len(*h) - 1
	item := (*h)[last]
	*h = (*h)[:last]
	return item
}
