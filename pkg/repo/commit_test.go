package repo

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/odvcencio/solvc/pkg/object"
)

func TestCommitRequiresMessage(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	if err := r.StageContent("A.sol", []byte("contract A { uint x; }")); err != nil {
		t.Fatalf("StageContent: %v", err)
	}
	if _, err := r.Commit("  \n", alice); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if len(r.Staged()) != 1 {
		t.Error("failed commit cleared the index")
	}
}

func TestCommitEmptyIndex(t *testing.T) {
	r, root := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	if _, err := r.Commit("nothing", alice); !errors.Is(err, ErrEmptyCommit) {
		t.Fatalf("err = %v, want ErrEmptyCommit", err)
	}
	if headOf(t, r, "main") != root.ID {
		t.Error("failed commit moved the branch")
	}
}

func TestCommitResolvesChanges(t *testing.T) {
	r, root := initRepo(t, map[string]string{"A.sol": "contract A {}", "B.sol": "contract B {}"})
	if err := r.StageContent("A.sol", []byte("contract A { uint x; }")); err != nil {
		t.Fatalf("StageContent: %v", err)
	}
	if err := r.StageContent("C.sol", []byte("contract C {}")); err != nil {
		t.Fatalf("StageContent: %v", err)
	}
	if err := r.Remove("B.sol"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	c, err := r.Commit("reshape\n\nlonger body", alice)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if c.Summary() != "reshape" {
		t.Errorf("Summary = %q", c.Summary())
	}
	if c.Author != alice {
		t.Errorf("Author = %+v", c.Author)
	}
	if !c.Timestamp.After(root.Timestamp) {
		t.Errorf("Timestamp %v not after %v", c.Timestamp, root.Timestamp)
	}
	if len(r.Staged()) != 0 {
		t.Error("index not cleared after commit")
	}

	byPath := make(map[string]Change)
	for _, ch := range c.Changes {
		byPath[ch.Path] = ch
	}
	if len(byPath) != 3 {
		t.Fatalf("Changes = %+v", c.Changes)
	}
	if a := byPath["A.sol"]; a.Type != object.ChangeModify || string(a.OldContent) != "contract A {}" || string(a.Content) != "contract A { uint x; }" {
		t.Errorf("A.sol change = %+v", a)
	}
	if b := byPath["B.sol"]; b.Type != object.ChangeDelete || b.Content != nil || string(b.OldContent) != "contract B {}" {
		t.Errorf("B.sol change = %+v", b)
	}
	if cc := byPath["C.sol"]; cc.Type != object.ChangeAdd || cc.OldContent != nil {
		t.Errorf("C.sol change = %+v", cc)
	}

	tree, err := r.GetTree(c.TreeID)
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	if len(tree) != 2 || tree["B.sol"] != "" {
		t.Errorf("tree = %v", tree)
	}
}

func TestFirstCommitWithoutInitialize(t *testing.T) {
	r := newTestRepo(t)
	if err := r.StageContent("A.sol", []byte("contract A {}")); err != nil {
		t.Fatalf("StageContent: %v", err)
	}
	c, err := r.Commit("first", alice)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(c.ParentIDs) != 0 {
		t.Errorf("ParentIDs = %v", c.ParentIDs)
	}
	if headOf(t, r, DefaultBranch) != c.ID {
		t.Error("default branch not created")
	}
	if entries := r.Reflog("", 0); len(entries) != 1 || !strings.HasPrefix(entries[0].Reason, "commit (initial)") {
		t.Errorf("reflog = %+v", entries)
	}
}

func TestCommitIdentityIsContentAddressed(t *testing.T) {
	build := func() object.Hash {
		r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}"})
		return commitFile(t, r, "A.sol", "contract A { uint x; }", "add field").ID
	}
	if a, b := build(), build(); a != b {
		t.Errorf("identical histories produced different ids %s %s", a.Short(), b.Short())
	}
}

func digestSigner(payload []byte) (string, error) {
	sum := sha256.Sum256(payload)
	return "digest:" + hex.EncodeToString(sum[:]), nil
}

func digestVerifier(payload []byte, sig string) error {
	want, _ := digestSigner(payload)
	if sig != want {
		return errors.New("signature mismatch")
	}
	return nil
}

func TestCommitWithSigner(t *testing.T) {
	r, root := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	if err := r.StageContent("A.sol", []byte("contract A { uint x; }")); err != nil {
		t.Fatalf("StageContent: %v", err)
	}
	c, err := r.CommitWithSigner("signed", alice, digestSigner)
	if err != nil {
		t.Fatalf("CommitWithSigner: %v", err)
	}
	if !strings.HasPrefix(c.Signature, "digest:") {
		t.Fatalf("Signature = %q", c.Signature)
	}
	if err := r.VerifyCommit(c.ID, digestVerifier); err != nil {
		t.Errorf("VerifyCommit: %v", err)
	}
	if err := r.VerifyCommit(root.ID, digestVerifier); err == nil {
		t.Error("VerifyCommit accepted an unsigned commit")
	}

	failing := func([]byte) (string, error) { return "", errors.New("no key") }
	if err := r.StageContent("A.sol", []byte("contract A { uint y; }")); err != nil {
		t.Fatalf("StageContent: %v", err)
	}
	if _, err := r.CommitWithSigner("unsigned", alice, failing); err == nil {
		t.Fatal("expected signer error")
	}
	if headOf(t, r, "main") != c.ID {
		t.Error("failed signing moved the branch")
	}
}

func TestGetCommitNotFound(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	_, err := r.GetCommit(object.Hash(strings.Repeat("f", 64)))
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "commit" {
		t.Fatalf("err = %v, want commit NotFoundError", err)
	}
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func TestHistoryIsLinear(t *testing.T) {
	r, root := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	c1 := commitFile(t, r, "A.sol", "contract A { uint x; }", "one")
	c2 := commitFile(t, r, "A.sol", "contract A { uint x; uint y; }", "two")

	hist, err := r.History("main")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []object.Hash{c2.ID, c1.ID, root.ID}
	if len(hist) != len(want) {
		t.Fatalf("History has %d commits, want %d", len(hist), len(want))
	}
	for i, c := range hist {
		if c.ID != want[i] {
			t.Errorf("History[%d] = %s, want %s", i, c.ID.Short(), want[i].Short())
		}
		if i+1 < len(hist) && (len(c.ParentIDs) == 0 || c.ParentIDs[0] != hist[i+1].ID) {
			t.Errorf("History[%d] first parent does not link to History[%d]", i, i+1)
		}
	}
	if len(hist[len(hist)-1].ParentIDs) != 0 {
		t.Error("history does not end at a root commit")
	}
}

func TestHistoryUnknownBranch(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	_, err := r.History("nope")
	var bnf *BranchNotFoundError
	if !errors.As(err, &bnf) {
		t.Fatalf("err = %v, want BranchNotFoundError", err)
	}
}

func TestHistoryBeforeFirstCommit(t *testing.T) {
	r := newTestRepo(t)
	hist, err := r.History("")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("History = %v, want empty", hist)
	}
}

func TestFullHistoryFollowsMergeParents(t *testing.T) {
	r, root := initRepo(t, map[string]string{"A.sol": "contract A {}", "B.sol": "contract B {}"})
	if _, err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	mainC := commitFile(t, r, "A.sol", "contract A { uint a; }", "main change")
	switchTo(t, r, "feature")
	featC := commitFile(t, r, "B.sol", "contract B { uint b; }", "feature change")
	switchTo(t, r, "main")

	res, err := r.Merge("feature", "")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	first, err := r.History("main")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(first) != 3 {
		t.Errorf("first-parent history has %d commits, want 3", len(first))
	}

	full, err := r.FullHistory("main")
	if err != nil {
		t.Fatalf("FullHistory: %v", err)
	}
	// featC is newer than mainC, so it comes first among the merge parents.
	want := []object.Hash{res.Head, featC.ID, mainC.ID, root.ID}
	if len(full) != len(want) {
		t.Fatalf("FullHistory has %d commits, want %d", len(full), len(want))
	}
	for i := range want {
		if full[i].ID != want[i] {
			t.Errorf("FullHistory[%d] = %s (%s), want %s", i, full[i].ID.Short(), full[i].Summary(), want[i].Short())
		}
	}
}

func TestCommitIsImmutable(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}\n"})
	c := commitFile(t, r, "A.sol", "contract A { uint x; }\n", "add x")

	treeBefore, err := r.GetTree(c.TreeID)
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	d, err := r.Diff("A.sol", c.ID)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	diffBefore := d.String()

	// Later staging and commits on the same paths.
	if err := r.StageContent("A.sol", []byte("contract A { uint y; }\n")); err != nil {
		t.Fatalf("StageContent: %v", err)
	}
	commitFile(t, r, "B.sol", "contract B {}\n", "add B")
	if err := r.Remove("A.sol"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	treeAfter, err := r.GetTree(c.TreeID)
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	if len(treeAfter) != len(treeBefore) {
		t.Fatalf("tree changed: %v -> %v", treeBefore, treeAfter)
	}
	for p, h := range treeBefore {
		if treeAfter[p] != h {
			t.Errorf("tree entry %s changed: %s -> %s", p, h.Short(), treeAfter[p].Short())
		}
	}
	d, err = r.Diff("A.sol", c.ID)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if got := d.String(); got != diffBefore {
		t.Errorf("diff of committed path changed:\n%s\nwant:\n%s", got, diffBefore)
	}
	again, err := r.GetCommit(c.ID)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if string(again.Changes[0].Content) != "contract A { uint x; }\n" {
		t.Errorf("change content = %q", again.Changes[0].Content)
	}
}

func TestCommitRejectsMultilineAuthor(t *testing.T) {
	r, root := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	if err := r.StageContent("B.sol", []byte("contract B {}")); err != nil {
		t.Fatalf("StageContent: %v", err)
	}

	for _, author := range []object.Author{
		{Name: "Mallory\nparent " + strings.Repeat("0", 64)},
		{Name: "Mallory", Email: "m@example.com\r"},
		{Name: "Mallory", ID: "u-1\nu-2"},
	} {
		_, err := r.Commit("add B", author)
		if !errors.Is(err, object.ErrInvalidHeader) {
			t.Errorf("Commit(%q): err = %v, want ErrInvalidHeader", author, err)
		}
	}
	if headOf(t, r, "main") != root.ID {
		t.Error("rejected commit moved main")
	}
	if got := stagedOps(r)["B.sol"]; got != object.ChangeAdd {
		t.Errorf("index lost B.sol: op = %q", got)
	}
}
