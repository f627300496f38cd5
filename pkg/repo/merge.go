package repo

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/solvc/pkg/diff"
	"github.com/odvcencio/solvc/pkg/diff3"
	"github.com/odvcencio/solvc/pkg/object"
)

// MergeOptions tune Merge.
type MergeOptions struct {
	// ResolveLines attempts a line-level three-way merge for paths changed
	// on both sides; only overlapping edits then conflict. When false, any
	// path changed differently on both sides conflicts.
	ResolveLines bool

	// Author and Message override the merge commit's defaults.
	Author  object.Author
	Message string
}

// DefaultMergeAuthor signs merge commits when no author is configured.
var DefaultMergeAuthor = object.Author{Name: "solvc-merge"}

// MergeKind classifies a completed merge.
type MergeKind string

const (
	MergeUpToDate    MergeKind = "up-to-date"
	MergeFastForward MergeKind = "fast-forward"
	MergeCommitted   MergeKind = "merge-commit"
)

// MergeResult describes a completed merge.
type MergeResult struct {
	Kind   MergeKind
	Source string
	Target string
	Base   object.Hash // "" when the histories are disjoint
	Head   object.Hash // target head after the merge

	// LineMerged lists paths that were changed on both sides and combined
	// by the line-level merge.
	LineMerged []string
}

// Merge merges branch source into target (the current branch when empty)
// with the repository's merge options.
//
//  1. Find the merge base of both heads; disjoint histories merge against
//     the empty tree.
//  2. If source is already contained in target there is nothing to do; if
//     target is an ancestor of source, fast-forward target.
//  3. Otherwise classify every path of base, target, and source. Changes on
//     one side win; identical changes collapse; differing changes conflict.
//     A file on one side that is a directory on the other also conflicts.
//  4. On conflict return *MergeConflictError with nothing changed.
//  5. Otherwise commit the merged tree with parents [target, source] and
//     advance target.
func (r *Repository) Merge(source, target string) (*MergeResult, error) {
	return r.MergeWithOptions(source, target, r.mergeOpts)
}

// MergeWithOptions is Merge with explicit options.
func (r *Repository) MergeWithOptions(source, target string, opts MergeOptions) (*MergeResult, error) {
	r.lock()
	defer r.unlock()
	return r.merge(source, target, opts)
}

func (r *Repository) merge(source, target string, opts MergeOptions) (*MergeResult, error) {
	if target == "" {
		target = r.current
	}
	srcHead, ok := r.branches[source]
	if !ok {
		return nil, fmt.Errorf("merge: %w", &BranchNotFoundError{Name: source})
	}
	tgtHead, ok := r.branches[target]
	if !ok {
		return nil, fmt.Errorf("merge: %w", &BranchNotFoundError{Name: target})
	}
	if source == target {
		return nil, fmt.Errorf("merge %s: %w", source, ErrSameBranch)
	}

	base, _, err := r.findMergeBase(srcHead, tgtHead)
	if err != nil {
		return nil, fmt.Errorf("merge %s into %s: %w", source, target, err)
	}
	res := &MergeResult{Source: source, Target: target, Base: base}
	fields := logrus.Fields{"source": source, "target": target, "base": base.Short()}

	if base == srcHead {
		res.Kind = MergeUpToDate
		res.Head = tgtHead
		r.log.WithFields(fields).Info("merge: already up to date")
		return res, nil
	}

	if base == tgtHead {
		if err := r.advanceTarget(target, tgtHead, srcHead, "merge "+source+": fast-forward"); err != nil {
			return nil, fmt.Errorf("merge %s into %s: %w", source, target, err)
		}
		res.Kind = MergeFastForward
		res.Head = srcHead
		r.log.WithFields(fields).Info("merge: fast-forward")
		r.emit(EventBranchesMerged, BranchesMergedPayload{SourceBranch: source, TargetBranch: target, Result: res})
		return res, nil
	}

	merged, lineMerged, err := r.mergeTrees(source, target, base, tgtHead, srcHead, opts)
	if err != nil {
		return nil, err
	}

	// Check the worktree before writing anything that moves a branch.
	var plan *checkoutPlan
	if target == r.current {
		if plan, err = r.currentCheckoutPlan(tgtHead, merged); err != nil {
			return nil, fmt.Errorf("merge %s into %s: %w", source, target, err)
		}
	}

	ours, err := r.commitFiles(tgtHead)
	if err != nil {
		return nil, fmt.Errorf("merge %s into %s: %w", source, target, err)
	}
	author := opts.Author
	if author == (object.Author{}) {
		author = DefaultMergeAuthor
	}
	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("Merge branch '%s' into %s", source, target)
	}
	id, obj, err := r.writeCommit(merged, []object.Hash{tgtHead, srcHead}, author, message, diff.Trees(ours, merged), nil)
	if err != nil {
		return nil, fmt.Errorf("merge %s into %s: %w", source, target, err)
	}

	view, err := r.commitView(id, obj)
	if err != nil {
		return nil, fmt.Errorf("merge %s into %s: %w", source, target, err)
	}
	if plan != nil {
		if err := r.applyCheckout(plan); err != nil {
			return nil, fmt.Errorf("merge %s into %s: %w", source, target, err)
		}
	}
	r.moveBranch(target, id, "merge "+source+": merge commit")

	res.Kind = MergeCommitted
	res.Head = id
	res.LineMerged = lineMerged
	fields["commit"] = id.Short()
	r.log.WithFields(fields).Info("merge: committed")

	r.emit(EventCommitCreated, CommitCreatedPayload{Commit: view})
	r.emit(EventBranchesMerged, BranchesMergedPayload{SourceBranch: source, TargetBranch: target, Result: res})
	return res, nil
}

// advanceTarget moves target from old to head, checking the new tree out
// first when target is the current branch.
func (r *Repository) advanceTarget(target string, old, head object.Hash, reason string) error {
	if target == r.current {
		files, err := r.commitFiles(head)
		if err != nil {
			return err
		}
		plan, err := r.currentCheckoutPlan(old, files)
		if err != nil {
			return err
		}
		if err := r.applyCheckout(plan); err != nil {
			return err
		}
	}
	r.moveBranch(target, head, reason)
	return nil
}

// currentCheckoutPlan plans the worktree update when the current branch
// moves from commit old to the tree files. Staged entries stay applied on
// both sides.
func (r *Repository) currentCheckoutPlan(old object.Hash, files map[string]object.Hash) (*checkoutPlan, error) {
	from, err := r.commitFiles(old)
	if err != nil {
		return nil, err
	}
	to := make(map[string]object.Hash, len(files))
	for p, h := range files {
		to[p] = h
	}
	if idx, ok := r.indexes[r.current]; ok {
		idx.applyTo(from)
		idx.applyTo(to)
	}
	return r.planCheckout(from, to)
}

// mergeTrees performs the per-path three-way classification and returns
// the merged flat tree. Blobs produced by line merges are written only
// when the whole merge is clean.
func (r *Repository) mergeTrees(source, target string, base, ours, theirs object.Hash, opts MergeOptions) (map[string]object.Hash, []string, error) {
	wrap := func(err error) error {
		return fmt.Errorf("merge %s into %s: %w", source, target, err)
	}
	baseFiles, err := r.commitFiles(base)
	if err != nil {
		return nil, nil, wrap(err)
	}
	oursFiles, err := r.commitFiles(ours)
	if err != nil {
		return nil, nil, wrap(err)
	}
	theirsFiles, err := r.commitFiles(theirs)
	if err != nil {
		return nil, nil, wrap(err)
	}

	merged := make(map[string]object.Hash)
	lineMerged := make(map[string][]byte)
	var conflicts []Conflict
	labels := diff3.Labels{Ours: target, Theirs: source}

	for _, p := range collectAllPaths(baseFiles, oursFiles, theirsFiles) {
		b, o, t := baseFiles[p], oursFiles[p], theirsFiles[p]
		switch {
		case o == t:
			if o != "" {
				merged[p] = o
			}
			continue
		case o == b:
			if t != "" {
				merged[p] = t
			}
			continue
		case t == b:
			if o != "" {
				merged[p] = o
			}
			continue
		}

		// Changed differently on both sides.
		c, err := r.loadConflict(p, b, o, t)
		if err != nil {
			return nil, nil, wrap(err)
		}
		if o != "" && t != "" {
			result := diff3.MergeLabeled(c.Base, c.Ours, c.Theirs, labels)
			if opts.ResolveLines && !result.HasConflicts {
				lineMerged[p] = result.Merged
				continue
			}
			c.Marked = result.Merged
		} else {
			c.Marked = diff3.RenderConflict(c.Ours, c.Theirs, labels)
		}
		conflicts = append(conflicts, c)
	}

	// A file kept from one side may be a directory on the other.
	tree := make(map[string]object.Hash, len(merged)+len(lineMerged))
	for p, h := range merged {
		tree[p] = h
	}
	for p := range lineMerged {
		tree[p] = ""
	}
	clashed := make(map[string]bool)
	for _, cl := range fileDirClashes(tree) {
		if clashed[cl.File] {
			continue
		}
		clashed[cl.File] = true
		c, err := r.loadConflict(cl.File, baseFiles[cl.File], oursFiles[cl.File], theirsFiles[cl.File])
		if err != nil {
			return nil, nil, wrap(err)
		}
		c.Marked = diff3.RenderConflict(c.Ours, c.Theirs, labels)
		conflicts = append(conflicts, c)
	}

	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Path < conflicts[j].Path })
		r.log.WithFields(logrus.Fields{
			"source":    source,
			"target":    target,
			"conflicts": len(conflicts),
		}).Info("merge: conflicts")
		return nil, nil, &MergeConflictError{Source: source, Target: target, Conflicts: conflicts}
	}

	var resolved []string
	for p, data := range lineMerged {
		h, err := r.store.WriteBlob(&object.Blob{Data: data})
		if err != nil {
			return nil, nil, wrap(fmt.Errorf("write merged %s: %w", p, err))
		}
		merged[p] = h
		resolved = append(resolved, p)
	}
	sort.Strings(resolved)
	return merged, resolved, nil
}

func (r *Repository) loadConflict(p string, base, ours, theirs object.Hash) (Conflict, error) {
	c := Conflict{Path: p}
	var err error
	if base != "" {
		if c.Base, err = r.readBlob(base); err != nil {
			return c, err
		}
	}
	if ours != "" {
		if c.Ours, err = r.readBlob(ours); err != nil {
			return c, err
		}
	}
	if theirs != "" {
		if c.Theirs, err = r.readBlob(theirs); err != nil {
			return c, err
		}
	}
	return c, nil
}

// collectAllPaths returns the sorted union of the keys of the given trees.
func collectAllPaths(trees ...map[string]object.Hash) []string {
	seen := make(map[string]struct{})
	for _, t := range trees {
		for p := range t {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
