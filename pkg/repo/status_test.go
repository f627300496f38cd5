package repo

import "testing"

func statusMap(t *testing.T, r *Repository) map[string]StatusEntry {
	t.Helper()
	entries, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	out := make(map[string]StatusEntry, len(entries))
	for i, e := range entries {
		if i > 0 && entries[i-1].Path >= e.Path {
			t.Errorf("Status not sorted: %q before %q", entries[i-1].Path, e.Path)
		}
		out[e.Path] = e
	}
	return out
}

func TestStatusCleanAfterInitialize(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}", "lib/B.sol": "library B {}"})
	if got := statusMap(t, r); len(got) != 0 {
		t.Errorf("Status = %v, want clean", got)
	}
}

func TestStatusStates(t *testing.T) {
	r, _ := initRepo(t, map[string]string{
		"A.sol": "contract A {}",
		"B.sol": "contract B {}",
		"C.sol": "contract C {}",
		"D.sol": "contract D {}",
	})
	w := r.Worktree()

	// A: staged modification, then edited again.
	if err := r.StageContent("A.sol", []byte("contract A { uint x; }")); err != nil {
		t.Fatalf("StageContent: %v", err)
	}
	if err := w.WriteFile("A.sol", []byte("contract A { uint x; uint y; }")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// B: unstaged modification.
	if err := w.WriteFile("B.sol", []byte("contract B { uint z; }")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// C: deleted from the worktree only.
	if err := w.Remove("C.sol"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// D: staged deletion.
	if err := r.Remove("D.sol"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// E: staged addition; F: untracked.
	if err := r.StageContent("E.sol", []byte("contract E {}")); err != nil {
		t.Fatalf("StageContent: %v", err)
	}
	if err := w.WriteFile("F.sol", []byte("contract F {}")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	want := map[string]StatusEntry{
		"A.sol": {Path: "A.sol", Index: IndexModified, Worktree: WorktreeModified},
		"B.sol": {Path: "B.sol", Worktree: WorktreeModified},
		"C.sol": {Path: "C.sol", Worktree: WorktreeDeleted},
		"D.sol": {Path: "D.sol", Index: IndexDeleted},
		"E.sol": {Path: "E.sol", Index: IndexAdded},
		"F.sol": {Path: "F.sol", Worktree: WorktreeUntracked},
	}
	got := statusMap(t, r)
	if len(got) != len(want) {
		t.Fatalf("Status = %v, want %v", got, want)
	}
	for p, e := range want {
		if got[p] != e {
			t.Errorf("%s: got %+v, want %+v", p, got[p], e)
		}
	}
}

func TestStatusCleanAfterCommit(t *testing.T) {
	r, _ := initRepo(t, map[string]string{"A.sol": "contract A {}"})
	commitFile(t, r, "A.sol", "contract A { uint x; }", "edit")
	if got := statusMap(t, r); len(got) != 0 {
		t.Errorf("Status after commit = %v", got)
	}
}
