package repo

import (
	"strings"
	"testing"

	"github.com/odvcencio/solvc/pkg/object"
)

func TestCommitQueueOrder(t *testing.T) {
	h := func(c string) object.Hash { return object.Hash(strings.Repeat(c, 64)) }

	var q commitQueue[int64]
	if _, ok := q.Peek(); ok {
		t.Fatal("Peek on empty queue reported an item")
	}
	q.Push(h("c"), 10)
	q.Push(h("a"), 5)
	q.Push(h("b"), 10)
	q.Push(h("d"), -1)

	want := []object.Hash{h("b"), h("c"), h("a"), h("d")}
	for i, w := range want {
		top, ok := q.Peek()
		if !ok || top.hash != w {
			t.Fatalf("Peek %d = %v (ok=%v), want %s", i, top.hash.Short(), ok, w.Short())
		}
		if got := q.Pop(); got.hash != w {
			t.Fatalf("Pop %d = %s, want %s", i, got.hash.Short(), w.Short())
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after draining", q.Len())
	}
}
