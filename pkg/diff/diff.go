// Package diff computes file-level and tree-level differences between
// snapshots. Line diffs are built on the Myers edit script from diff3.
package diff

import (
	"bytes"
	"sort"
	"unicode/utf8"

	"github.com/odvcencio/solvc/pkg/diff3"
	"github.com/odvcencio/solvc/pkg/object"
)

// FileStatus classifies a file between two revisions.
type FileStatus string

const (
	StatusAdded     FileStatus = "added"
	StatusDeleted   FileStatus = "deleted"
	StatusModified  FileStatus = "modified"
	StatusUnchanged FileStatus = "unchanged"
)

// RunKind classifies a run of lines.
type RunKind int

const (
	Unchanged RunKind = iota
	Added
	Removed
)

func (k RunKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unchanged"
	}
}

// Run is a maximal sequence of consecutive lines of the same kind.
type Run struct {
	Kind  RunKind
	Lines []string
}

// FileDiff is the line-level difference of one path between two revisions.
type FileDiff struct {
	Path   string
	Status FileStatus
	Binary bool // at least one side is not valid UTF-8; Runs is empty
	Runs   []Run

	// NoNewlineOld and NoNewlineNew report a missing trailing newline on
	// the respective side.
	NoNewlineOld bool
	NoNewlineNew bool
}

// Version is one side of a file diff. A nil *Version means the path does
// not exist on that side.
type Version struct {
	Data []byte
}

// Files diffs the content of path between before and after. It returns nil when
// the path exists on neither side.
func Files(path string, before, after *Version) *FileDiff {
	if before == nil && after == nil {
		return nil
	}
	fd := &FileDiff{Path: path}
	var a, b []byte
	switch {
	case before == nil:
		fd.Status = StatusAdded
		b = after.Data
	case after == nil:
		fd.Status = StatusDeleted
		a = before.Data
	default:
		a, b = before.Data, after.Data
		if bytes.Equal(a, b) {
			fd.Status = StatusUnchanged
		} else {
			fd.Status = StatusModified
		}
	}

	if !utf8.Valid(a) || !utf8.Valid(b) {
		fd.Binary = true
		return fd
	}

	fd.NoNewlineOld = len(a) > 0 && a[len(a)-1] != '\n'
	fd.NoNewlineNew = len(b) > 0 && b[len(b)-1] != '\n'

	ops := diff3.MyersDiff(diff3.SplitLines(a), diff3.SplitLines(b))
	if fd.NoNewlineOld != fd.NoNewlineNew && len(ops) > 0 && ops[len(ops)-1].Type == diff3.Equal {
		// "x" and "x\n" are different final lines.
		last := ops[len(ops)-1].Line
		ops = append(ops[:len(ops)-1],
			diff3.DiffOp{Type: diff3.Delete, Line: last},
			diff3.DiffOp{Type: diff3.Insert, Line: last})
	}
	fd.Runs = runsFromOps(ops)
	return fd
}

func runsFromOps(ops []diff3.DiffOp) []Run {
	var runs []Run
	for _, op := range ops {
		kind := kindOf(op.Type)
		if n := len(runs); n > 0 && runs[n-1].Kind == kind {
			runs[n-1].Lines = append(runs[n-1].Lines, op.Line)
			continue
		}
		runs = append(runs, Run{Kind: kind, Lines: []string{op.Line}})
	}
	return runs
}

func kindOf(t diff3.DiffType) RunKind {
	switch t {
	case diff3.Insert:
		return Added
	case diff3.Delete:
		return Removed
	default:
		return Unchanged
	}
}

// Empty reports whether the two sides are identical.
func (fd *FileDiff) Empty() bool {
	return fd.Status == StatusUnchanged
}

// Stats returns the number of added and removed lines.
func (fd *FileDiff) Stats() (added, removed int) {
	for _, r := range fd.Runs {
		switch r.Kind {
		case Added:
			added += len(r.Lines)
		case Removed:
			removed += len(r.Lines)
		}
	}
	return added, removed
}

// AddedLines returns every added line in order.
func (fd *FileDiff) AddedLines() []string {
	return fd.linesOf(Added)
}

// RemovedLines returns every removed line in order.
func (fd *FileDiff) RemovedLines() []string {
	return fd.linesOf(Removed)
}

func (fd *FileDiff) linesOf(kind RunKind) []string {
	var out []string
	for _, r := range fd.Runs {
		if r.Kind == kind {
			out = append(out, r.Lines...)
		}
	}
	return out
}

// PathChange is one path-level difference between two trees.
type PathChange struct {
	Path    string
	Type    object.ChangeType
	OldHash object.Hash // empty for adds
	NewHash object.Hash // empty for deletes
}

// Trees compares two flat path -> blob hash snapshots and returns the
// changed paths sorted by path.
func Trees(before, after map[string]object.Hash) []PathChange {
	var changes []PathChange
	for p, oh := range before {
		nh, ok := after[p]
		switch {
		case !ok:
			changes = append(changes, PathChange{Path: p, Type: object.ChangeDelete, OldHash: oh})
		case nh != oh:
			changes = append(changes, PathChange{Path: p, Type: object.ChangeModify, OldHash: oh, NewHash: nh})
		}
	}
	for p, nh := range after {
		if _, ok := before[p]; !ok {
			changes = append(changes, PathChange{Path: p, Type: object.ChangeAdd, NewHash: nh})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}
