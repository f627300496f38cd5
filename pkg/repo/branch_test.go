package repo

import (
	"errors"
	"testing"
)

func TestCreateBranch(t *testing.T) {
	r, root := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	c1 := commitFile(t, r, "A.sol", "contract A { uint x; }", "one")

	fromCurrent, err := r.CreateBranch("feature", "")
	if err != nil {
		t.Fatalf("CreateBranch(current): %v", err)
	}
	if fromCurrent.Head != c1.ID {
		t.Errorf("feature head = %s, want %s", fromCurrent.Head.Short(), c1.ID.Short())
	}

	fromCommit, err := r.CreateBranch("release/v1", string(root.ID))
	if err != nil {
		t.Fatalf("CreateBranch(commit): %v", err)
	}
	if fromCommit.Head != root.ID {
		t.Errorf("release head = %s, want %s", fromCommit.Head.Short(), root.ID.Short())
	}

	fromBranch, err := r.CreateBranch("hotfix", "release/v1")
	if err != nil {
		t.Fatalf("CreateBranch(branch): %v", err)
	}
	if fromBranch.Head != root.ID {
		t.Errorf("hotfix head = %s", fromBranch.Head.Short())
	}

	names := []string{}
	for _, b := range r.ListBranches() {
		names = append(names, b.Name)
	}
	want := []string{"feature", "hotfix", "main", "release/v1"}
	if len(names) != len(want) {
		t.Fatalf("ListBranches = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ListBranches[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if r.CurrentBranch() != "main" {
		t.Error("CreateBranch switched branches")
	}
}

func TestCreateBranchErrors(t *testing.T) {
	empty := newTestRepo(t)
	if _, err := empty.CreateBranch("feature", ""); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("uninitialized: err = %v, want ErrNotInitialized", err)
	}

	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	if _, err := r.CreateBranch("main", ""); !errors.Is(err, ErrBranchExists) {
		t.Errorf("duplicate: err = %v, want ErrBranchExists", err)
	}
	var bnf *BranchNotFoundError
	if _, err := r.CreateBranch("feature", "nope"); !errors.As(err, &bnf) {
		t.Errorf("unknown start point: err = %v, want BranchNotFoundError", err)
	}
}

func TestValidateBranchName(t *testing.T) {
	valid := []string{"main", "feature/erc20", "v1.2", "fix-123", "user_name"}
	for _, name := range valid {
		if err := validateBranchName(name); err != nil {
			t.Errorf("validateBranchName(%q): %v", name, err)
		}
	}
	invalid := []string{"", "-x", "/x", "x/", "a..b", "a//b", "x.lock", "x.", "has space", "a~b", "a^b", "a:b", "a?b", "a*b", "a[b", `a\b`, "tab\there"}
	for _, name := range invalid {
		if err := validateBranchName(name); !errors.Is(err, ErrInvalidBranchName) {
			t.Errorf("validateBranchName(%q) = %v, want ErrInvalidBranchName", name, err)
		}
	}
}

func TestSwitchBranchChecksOutTree(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}", "Old.sol": "contract Old {}"})
	if _, err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	switchTo(t, r, "feature")
	commitFile(t, r, "New.sol", "contract New {}", "add New")
	if err := r.Remove("Old.sol"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.Commit("drop Old", alice); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	events := recordEvents(r)
	switchTo(t, r, "main")
	if got := readWorktree(t, r, "Old.sol"); got != "contract Old {}" {
		t.Errorf("Old.sol = %q", got)
	}
	if _, err := r.Worktree().ReadFile("New.sol"); err == nil {
		t.Error("New.sol survived the switch to main")
	}
	if got := events(); len(got) != 1 || got[0] != EventBranchSwitched {
		t.Errorf("events = %v", got)
	}

	switchTo(t, r, "feature")
	if got := readWorktree(t, r, "New.sol"); got != "contract New {}" {
		t.Errorf("New.sol = %q", got)
	}
}

func TestSwitchBranchKeepsUnrelatedLocalEdits(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}", "B.sol": "contract B {}"})
	if _, err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	switchTo(t, r, "feature")
	commitFile(t, r, "A.sol", "contract A { uint x; }", "feature edit")

	if err := r.Worktree().WriteFile("B.sol", []byte("contract B { /* wip */ }")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	switchTo(t, r, "main")
	if got := readWorktree(t, r, "B.sol"); got != "contract B { /* wip */ }" {
		t.Errorf("local edit lost: %q", got)
	}
}

func TestSwitchBranchRefusesDirtyWorktree(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	if _, err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	switchTo(t, r, "feature")
	commitFile(t, r, "A.sol", "contract A { uint x; }", "feature edit")

	if err := r.Worktree().WriteFile("A.sol", []byte("contract A { /* wip */ }")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := r.SwitchBranch("main"); !errors.Is(err, ErrDirtyWorktree) {
		t.Fatalf("err = %v, want ErrDirtyWorktree", err)
	}
	if r.CurrentBranch() != "feature" {
		t.Error("failed switch changed the current branch")
	}
	if got := readWorktree(t, r, "A.sol"); got != "contract A { /* wip */ }" {
		t.Errorf("failed switch overwrote local work: %q", got)
	}
}

func TestSwitchBranchUnknown(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	var bnf *BranchNotFoundError
	if err := r.SwitchBranch("nope"); !errors.As(err, &bnf) || bnf.Name != "nope" {
		t.Fatalf("err = %v, want BranchNotFoundError", err)
	}
}

func TestDeleteBranch(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	if _, err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	if err := r.DeleteBranch("main"); !errors.Is(err, ErrDeleteCurrentBranch) {
		t.Errorf("delete current: err = %v, want ErrDeleteCurrentBranch", err)
	}
	if err := r.DeleteBranch("feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if _, err := r.Branch("feature"); err == nil {
		t.Error("feature still exists")
	}
	var bnf *BranchNotFoundError
	if err := r.DeleteBranch("feature"); !errors.As(err, &bnf) {
		t.Errorf("delete missing: err = %v, want BranchNotFoundError", err)
	}

	log := r.Reflog("feature", 0)
	if len(log) != 2 || log[0].NewHash != "" || log[0].Reason != "branch: deleted" {
		t.Errorf("reflog = %+v", log)
	}
}
