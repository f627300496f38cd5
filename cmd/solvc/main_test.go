package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/solvc/pkg/object"
	"github.com/odvcencio/solvc/pkg/repo"
	"github.com/odvcencio/solvc/pkg/workspace"
)

// run executes the CLI against dir and returns what it wrote to stdout.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"-C", dir}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	if err != nil {
		t.Fatalf("solvc %s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func writeRepoFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func headOf(t *testing.T, dir, branch string) object.Hash {
	t.Helper()
	ws, err := workspace.Open(dir)
	if err != nil {
		t.Fatalf("workspace.Open: %v", err)
	}
	defer ws.Close()
	h, err := ws.ReadRef(branch)
	if err != nil {
		t.Fatalf("ReadRef: %v", err)
	}
	return h
}

// newProject creates a workspace seeded with a Token contract.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeRepoFile(t, dir, "contracts/Token.sol", "contract Token {\n    uint256 supply;\n}\n")
	writeRepoFile(t, dir, ".solvcignore", "out/\n")
	writeRepoFile(t, dir, "out/Token.json", "{}")
	mustRun(t, dir, "init", "--name", "Alice", "--email", "alice@example.com")
	return dir
}

func TestVersionCmd(t *testing.T) {
	out := mustRun(t, t.TempDir(), "version")
	if out != "solvc "+version+"\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestInitCommitsExistingFiles(t *testing.T) {
	dir := newProject(t)

	out := mustRun(t, dir, "log")
	if !strings.Contains(out, repo.InitialCommitMessage) || !strings.Contains(out, "Alice <alice@example.com>") {
		t.Errorf("log after init:\n%s", out)
	}
	if status := mustRun(t, dir, "status"); status != "on main\n" {
		t.Errorf("status after init = %q", status)
	}

	ws, err := workspace.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close()
	r, err := ws.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c, err := r.GetCommit(headOf(t, dir, "main"))
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	files, err := r.GetTree(c.TreeID)
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	if _, ok := files["out/Token.json"]; ok {
		t.Error("ignored build output was committed")
	}
	if _, ok := files["contracts/Token.sol"]; !ok {
		t.Errorf("tree = %v", files)
	}

	if _, err := run(t, dir, "init"); !errors.Is(err, workspace.ErrExists) {
		t.Errorf("second init: err = %v", err)
	}
}

func TestCommandsOutsideWorkspace(t *testing.T) {
	if _, err := run(t, t.TempDir(), "status"); !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("status outside workspace: err = %v", err)
	}
}

func TestStageCommitAndLog(t *testing.T) {
	dir := newProject(t)
	writeRepoFile(t, dir, "contracts/Token.sol", "contract Token {\n    uint256 supply;\n    uint8 decimals;\n}\n")
	writeRepoFile(t, dir, "contracts/Vault.sol", "contract Vault {}\n")

	status := mustRun(t, dir, "status")
	if !strings.Contains(status, "unstaged:\n  ~ contracts/Token.sol") || !strings.Contains(status, "untracked:\n  contracts/Vault.sol") {
		t.Errorf("status:\n%s", status)
	}

	diff := mustRun(t, dir, "diff")
	if !strings.Contains(diff, "+    uint8 decimals;") {
		t.Errorf("worktree diff:\n%s", diff)
	}
	if cached := mustRun(t, dir, "diff", "--cached"); cached != "" {
		t.Errorf("cached diff before add = %q", cached)
	}

	mustRun(t, dir, "add", "-A")
	if stat := mustRun(t, dir, "diff", "--cached", "--stat"); !strings.Contains(stat, "contracts/Token.sol | +1 -0") {
		t.Errorf("cached stat:\n%s", stat)
	}

	out := mustRun(t, dir, "commit", "-m", "add decimals and vault")
	if !strings.HasPrefix(out, "[main ") || !strings.Contains(out, "add decimals and vault") {
		t.Errorf("commit output:\n%s", out)
	}
	if !strings.Contains(out, "add contracts/Vault.sol") || !strings.Contains(out, "modify contracts/Token.sol") {
		t.Errorf("commit changes:\n%s", out)
	}

	log := mustRun(t, dir, "log", "--oneline")
	lines := strings.Split(strings.TrimSpace(log), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "(main) add decimals and vault") {
		t.Errorf("log --oneline:\n%s", log)
	}
	if one := mustRun(t, dir, "log", "--oneline", "-n", "1"); strings.Count(one, "\n") != 1 {
		t.Errorf("log -n 1:\n%s", one)
	}

	head := headOf(t, dir, "main")
	shown := mustRun(t, dir, "diff", "--commit", string(head))
	if !strings.Contains(shown, "+contract Vault {}") {
		t.Errorf("diff --commit:\n%s", shown)
	}

	if _, err := run(t, dir, "commit", "-m", "nothing"); !errors.Is(err, repo.ErrEmptyCommit) {
		t.Errorf("empty commit: err = %v", err)
	}
	if _, err := run(t, dir, "commit"); err == nil {
		t.Error("commit without -m succeeded")
	}
}

func TestRmAndUnstage(t *testing.T) {
	dir := newProject(t)
	writeRepoFile(t, dir, "contracts/Vault.sol", "contract Vault {}\n")
	mustRun(t, dir, "add", "contracts/Vault.sol")
	mustRun(t, dir, "unstage", "contracts/Vault.sol")
	if status := mustRun(t, dir, "status"); !strings.Contains(status, "untracked:\n  contracts/Vault.sol") {
		t.Errorf("status after unstage:\n%s", status)
	}

	mustRun(t, dir, "rm", "contracts/Token.sol")
	if _, err := os.Stat(filepath.Join(dir, "contracts", "Token.sol")); !os.IsNotExist(err) {
		t.Errorf("rm left the file: %v", err)
	}
	if status := mustRun(t, dir, "status"); !strings.Contains(status, "staged:\n  - contracts/Token.sol") {
		t.Errorf("status after rm:\n%s", status)
	}
}

func TestBranchSwitchMerge(t *testing.T) {
	dir := newProject(t)

	mustRun(t, dir, "switch", "-c", "feature")
	writeRepoFile(t, dir, "contracts/Pool.sol", "contract Pool {}\n")
	mustRun(t, dir, "add", "contracts/Pool.sol")
	mustRun(t, dir, "commit", "-m", "add pool")

	branches := mustRun(t, dir, "branch")
	if !strings.Contains(branches, "* feature") || !strings.Contains(branches, "  main") {
		t.Errorf("branch list:\n%s", branches)
	}

	mustRun(t, dir, "switch", "main")
	if _, err := os.Stat(filepath.Join(dir, "contracts", "Pool.sol")); !os.IsNotExist(err) {
		t.Errorf("Pool.sol present on main: %v", err)
	}

	out := mustRun(t, dir, "merge", "feature")
	if !strings.Contains(out, "fast-forward main") {
		t.Errorf("merge output:\n%s", out)
	}
	if headOf(t, dir, "main") != headOf(t, dir, "feature") {
		t.Error("main not fast-forwarded")
	}
	if _, err := os.Stat(filepath.Join(dir, "contracts", "Pool.sol")); err != nil {
		t.Errorf("Pool.sol missing after merge: %v", err)
	}
	if again := mustRun(t, dir, "merge", "feature"); !strings.Contains(again, "already up to date") {
		t.Errorf("second merge:\n%s", again)
	}

	reflog := mustRun(t, dir, "reflog")
	if !strings.Contains(reflog, "main@{0}: merge feature: fast-forward") {
		t.Errorf("reflog:\n%s", reflog)
	}

	mustRun(t, dir, "branch", "-d", "feature")
	if branches := mustRun(t, dir, "branch"); strings.Contains(branches, "feature") {
		t.Errorf("feature still listed:\n%s", branches)
	}
	if _, err := run(t, dir, "branch", "-d", "main"); !errors.Is(err, repo.ErrDeleteCurrentBranch) {
		t.Errorf("delete current: err = %v", err)
	}
}

func TestMergeConflictReportsPaths(t *testing.T) {
	dir := newProject(t)
	mustRun(t, dir, "branch", "feature")

	writeRepoFile(t, dir, "contracts/Token.sol", "contract Token {\n    uint256 cap;\n}\n")
	mustRun(t, dir, "add", "-A")
	mustRun(t, dir, "commit", "-m", "cap on main")

	mustRun(t, dir, "switch", "feature")
	writeRepoFile(t, dir, "contracts/Token.sol", "contract Token {\n    uint256 limit;\n}\n")
	mustRun(t, dir, "add", "-A")
	mustRun(t, dir, "commit", "-m", "limit on feature")
	mustRun(t, dir, "switch", "main")

	before := headOf(t, dir, "main")
	out, err := run(t, dir, "merge", "feature")
	var mce *repo.MergeConflictError
	if !errors.As(err, &mce) {
		t.Fatalf("merge err = %v, want MergeConflictError", err)
	}
	if !strings.Contains(out, "contracts/Token.sol: CONFLICT") {
		t.Errorf("merge output:\n%s", out)
	}
	if headOf(t, dir, "main") != before {
		t.Error("conflicting merge moved main")
	}
}

func TestMergeRequestCommands(t *testing.T) {
	dir := newProject(t)
	mustRun(t, dir, "switch", "-c", "feature")
	writeRepoFile(t, dir, "contracts/Pool.sol", "contract Pool {}\n")
	mustRun(t, dir, "add", "-A")
	mustRun(t, dir, "commit", "-m", "add pool")
	mustRun(t, dir, "switch", "main")

	out := mustRun(t, dir, "mr", "create", "-s", "feature", "--title", "Add pool", "-d", "liquidity")
	fields := strings.Fields(out)
	if len(fields) < 4 || fields[0] != "opened" {
		t.Fatalf("mr create output: %q", out)
	}
	id := strings.TrimSuffix(fields[3], ":")

	if list := mustRun(t, dir, "mr", "list", "--status", "open"); !strings.Contains(list, id) || !strings.Contains(list, "feature -> main") {
		t.Errorf("mr list:\n%s", list)
	}
	if review := mustRun(t, dir, "mr", "review", id, "--approve"); !strings.Contains(review, "1 approval(s)") {
		t.Errorf("mr review:\n%s", review)
	}
	if _, err := run(t, dir, "mr", "review", id); !errors.Is(err, repo.ErrInvalidReview) {
		t.Errorf("empty comment: err = %v", err)
	}

	show := mustRun(t, dir, "mr", "show", id)
	for _, want := range []string{"[open]", "Title:   Add pool", "commits (1):", "add pool", "approve Alice"} {
		if !strings.Contains(show, want) {
			t.Errorf("mr show missing %q:\n%s", want, show)
		}
	}

	merged := mustRun(t, dir, "mr", "merge", id)
	if !strings.Contains(merged, "merged at") {
		t.Errorf("mr merge:\n%s", merged)
	}
	if headOf(t, dir, "main") != headOf(t, dir, "feature") {
		t.Error("main not advanced by mr merge")
	}

	var ist *repo.InvalidStateTransitionError
	if _, err := run(t, dir, "mr", "close", id); !errors.As(err, &ist) {
		t.Errorf("close merged request: err = %v", err)
	}
	if list := mustRun(t, dir, "mr", "list", "--status", "open"); list != "no merge requests\n" {
		t.Errorf("open list after merge:\n%s", list)
	}
}

func writeSSHKey(t *testing.T, dir, name string) (string, ssh.PublicKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("NewSignerFromKey: %v", err)
	}
	return path, signer.PublicKey()
}

func TestSignedCommitVerifies(t *testing.T) {
	dir := newProject(t)
	keys := t.TempDir()
	keyPath, pub := writeSSHKey(t, keys, "id_ed25519")
	_, otherPub := writeSSHKey(t, keys, "other")

	writeRepoFile(t, dir, "contracts/Vault.sol", "contract Vault {}\n")
	mustRun(t, dir, "add", "-A")
	mustRun(t, dir, "commit", "-m", "signed vault", "--sign", "--key", keyPath)
	head := string(headOf(t, dir, "main"))

	if out := mustRun(t, dir, "verify", "--commit", head); !strings.Contains(out, "good signature") {
		t.Errorf("verify output: %q", out)
	}

	allowed := filepath.Join(keys, "allowed")
	if err := os.WriteFile(allowed, ssh.MarshalAuthorizedKey(pub), 0o644); err != nil {
		t.Fatalf("write allowed: %v", err)
	}
	mustRun(t, dir, "verify", "--commit", head, "--allowed-keys", allowed)

	if err := os.WriteFile(allowed, ssh.MarshalAuthorizedKey(otherPub), 0o644); err != nil {
		t.Fatalf("write allowed: %v", err)
	}
	if _, err := run(t, dir, "verify", "--commit", head, "--allowed-keys", allowed); err == nil || !strings.Contains(err.Error(), "not allowed") {
		t.Errorf("verify with foreign allowed key: err = %v", err)
	}

	if log := mustRun(t, dir, "log", "-n", "1"); !strings.Contains(log, "Signed: yes") {
		t.Errorf("log of signed commit:\n%s", log)
	}
}

func TestVerifyUnsignedCommitFails(t *testing.T) {
	dir := newProject(t)
	head := string(headOf(t, dir, "main"))
	if _, err := run(t, dir, "verify", "--commit", head); err == nil || !strings.Contains(err.Error(), "not signed") {
		t.Errorf("err = %v, want not signed", err)
	}
	if out := mustRun(t, dir, "verify"); !strings.HasPrefix(out, "ok: verified ") {
		t.Errorf("verify output: %q", out)
	}
}

func TestSSHVerifierRejectsTamperedPayload(t *testing.T) {
	keyPath, _ := writeSSHKey(t, t.TempDir(), "id_ed25519")
	sign, _, err := newSSHCommitSigner(keyPath)
	if err != nil {
		t.Fatalf("newSSHCommitSigner: %v", err)
	}
	sig, err := sign([]byte("tree abc\n"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	verify := newSSHCommitVerifier(nil)
	if err := verify([]byte("tree abc\n"), sig); err != nil {
		t.Errorf("verify original: %v", err)
	}
	if err := verify([]byte("tree abd\n"), sig); err == nil {
		t.Error("tampered payload verified")
	}
	if err := verify([]byte("tree abc\n"), "pgp:whatever"); err == nil {
		t.Error("foreign encoding verified")
	}
}

func TestParseAuthor(t *testing.T) {
	tests := []struct {
		in      string
		want    object.Author
		wantErr bool
	}{
		{in: "Alice <alice@example.com>", want: object.Author{Name: "Alice", Email: "alice@example.com"}},
		{in: "<bob@example.com>", want: object.Author{Email: "bob@example.com"}},
		{in: "carol", want: object.Author{Name: "carol"}},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseAuthor(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseAuthor(%q) succeeded", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseAuthor(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseAuthor(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
