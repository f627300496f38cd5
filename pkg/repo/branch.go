package repo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/solvc/pkg/object"
)

// Branch is a named pointer to a commit.
type Branch struct {
	Name string
	Head object.Hash
}

// CreateBranch creates name pointing at from, which may be a branch name
// or a commit id. An empty from means the current branch head.
func (r *Repository) CreateBranch(name, from string) (Branch, error) {
	r.lock()
	defer r.unlock()

	if err := validateBranchName(name); err != nil {
		return Branch{}, fmt.Errorf("create branch: %w", err)
	}
	if _, exists := r.branches[name]; exists {
		return Branch{}, fmt.Errorf("create branch %q: %w", name, ErrBranchExists)
	}
	if len(r.branches) == 0 {
		return Branch{}, fmt.Errorf("create branch %q: %w", name, ErrNotInitialized)
	}

	target, err := r.resolveStartPoint(from)
	if err != nil {
		return Branch{}, fmt.Errorf("create branch %q: %w", name, err)
	}
	r.moveBranch(name, target, "branch: created from "+r.describeStartPoint(from))

	b := Branch{Name: name, Head: target}
	r.log.WithFields(logrus.Fields{"branch": name, "commit": target.Short()}).Info("branch created")
	r.emit(EventBranchCreated, BranchCreatedPayload{Branch: b})
	return b, nil
}

func (r *Repository) resolveStartPoint(from string) (object.Hash, error) {
	if from == "" {
		head, ok := r.branches[r.current]
		if !ok {
			return "", &BranchNotFoundError{Name: r.current}
		}
		return head, nil
	}
	if head, ok := r.branches[from]; ok {
		return head, nil
	}
	h := object.Hash(from)
	if h.Valid() {
		if _, err := r.readCommit(h); err != nil {
			return "", err
		}
		return h, nil
	}
	return "", &BranchNotFoundError{Name: from}
}

func (r *Repository) describeStartPoint(from string) string {
	if from == "" {
		return r.current
	}
	return from
}

// SwitchBranch makes name the current branch and checks its tree, with
// its index applied, out into the worktree.
func (r *Repository) SwitchBranch(name string) error {
	r.lock()
	defer r.unlock()

	if _, ok := r.branches[name]; !ok {
		return fmt.Errorf("switch branch: %w", &BranchNotFoundError{Name: name})
	}
	if name == r.current {
		return nil
	}

	from, err := r.stagedFiles(r.current)
	if err != nil {
		return fmt.Errorf("switch branch: %w", err)
	}
	to, err := r.stagedFiles(name)
	if err != nil {
		return fmt.Errorf("switch branch: %w", err)
	}
	plan, err := r.planCheckout(from, to)
	if err != nil {
		return fmt.Errorf("switch branch %q: %w", name, err)
	}
	if err := r.applyCheckout(plan); err != nil {
		return fmt.Errorf("switch branch %q: %w", name, err)
	}

	prev := r.current
	r.current = name
	r.log.WithFields(logrus.Fields{"from": prev, "to": name}).Info("branch switched")
	r.emit(EventBranchSwitched, BranchSwitchedPayload{BranchName: name})
	return nil
}

// DeleteBranch removes a branch and its index. The current branch cannot
// be deleted.
func (r *Repository) DeleteBranch(name string) error {
	r.lock()
	defer r.unlock()

	head, ok := r.branches[name]
	if !ok {
		return fmt.Errorf("delete branch: %w", &BranchNotFoundError{Name: name})
	}
	if name == r.current {
		return fmt.Errorf("delete branch %q: %w", name, ErrDeleteCurrentBranch)
	}
	delete(r.branches, name)
	delete(r.indexes, name)
	r.appendReflog(name, head, "", "branch: deleted")

	r.log.WithField("branch", name).Info("branch deleted")
	r.emit(EventBranchDeleted, BranchDeletedPayload{Branch: Branch{Name: name, Head: head}})
	return nil
}

// ListBranches returns all branches sorted by name.
func (r *Repository) ListBranches() []Branch {
	r.lock()
	defer r.unlock()

	out := make([]Branch, 0, len(r.branches))
	for name, head := range r.branches {
		out = append(out, Branch{Name: name, Head: head})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CurrentBranch returns the name of the checked-out branch.
func (r *Repository) CurrentBranch() string {
	r.lock()
	defer r.unlock()
	return r.current
}

// Branch returns the named branch.
func (r *Repository) Branch(name string) (Branch, error) {
	r.lock()
	defer r.unlock()

	head, ok := r.branches[name]
	if !ok {
		return Branch{}, &BranchNotFoundError{Name: name}
	}
	return Branch{Name: name, Head: head}, nil
}

// validateBranchName applies ref-name rules: no empty components, no
// "..", no whitespace or control characters, no leading '-'.
func validateBranchName(name string) error {
	bad := func(why string) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidBranchName, name, why)
	}
	switch {
	case name == "":
		return bad("empty")
	case strings.HasPrefix(name, "-"):
		return bad("starts with '-'")
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return bad("leading or trailing '/'")
	case strings.Contains(name, ".."):
		return bad("contains '..'")
	case strings.Contains(name, "//"):
		return bad("empty path component")
	case strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, "."):
		return bad("invalid suffix")
	}
	for _, c := range name {
		if c <= ' ' || c == 0x7f || strings.ContainsRune(`~^:?*[\`, c) {
			return bad(fmt.Sprintf("invalid character %q", c))
		}
	}
	return nil
}
