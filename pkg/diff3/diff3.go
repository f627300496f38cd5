package diff3

import (
	"bytes"
	"strings"
)

// HunkType classifies a hunk in a three-way merge result.
type HunkType int

const (
	HunkClean    HunkType = iota // Hunk was merged cleanly.
	HunkConflict                 // Both sides changed the same region differently.
)

// Hunk represents a contiguous section of the merge output.
type Hunk struct {
	Type                       HunkType
	Base, Ours, Theirs, Merged []byte
}

// Result holds the outcome of a three-way merge.
type Result struct {
	Merged        []byte // Full merged content, with conflict markers if conflicts exist.
	HasConflicts  bool
	ConflictCount int
	Hunks         []Hunk // Hunks in document order.
}

// Labels name the two sides in conflict markers.
type Labels struct {
	Ours, Theirs string
}

// DefaultLabels are used by Merge.
var DefaultLabels = Labels{Ours: "ours", Theirs: "theirs"}

// DiffLine is a single line in the output of LineDiff.
type DiffLine struct {
	Type    DiffType
	Content string
}

// LineDiff computes a line-level diff between byte slices a and b.
func LineDiff(a, b []byte) []DiffLine {
	ops := MyersDiff(SplitLines(a), SplitLines(b))
	result := make([]DiffLine, len(ops))
	for i, op := range ops {
		result[i] = DiffLine{Type: op.Type, Content: op.Line}
	}
	return result
}

// SplitLines splits content into lines. A trailing newline does not
// produce an extra empty element.
func SplitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	lines := strings.Split(string(content), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Merge performs a three-way merge of base, ours, and theirs using the
// default conflict labels.
func Merge(base, ours, theirs []byte) Result {
	return MergeLabeled(base, ours, theirs, DefaultLabels)
}

// MergeLabeled performs a three-way merge.
//
// Both sides are diffed against base. Base lines matched on both sides
// form stable regions that are copied through; the regions between them
// are unstable. In an unstable region a side that left base untouched
// yields to the other side, identical edits collapse, and differing edits
// become a conflict.
func MergeLabeled(base, ours, theirs []byte, labels Labels) Result {
	b := SplitLines(base)
	o := SplitLines(ours)
	t := SplitLines(theirs)

	matchO := baseMatches(b, o)
	matchT := baseMatches(b, t)

	m := &merger{labels: labels}
	bi, oi, ti := 0, 0, 0
	for bi < len(b) || oi < len(o) || ti < len(t) {
		stable := 0
		for bi+stable < len(b) &&
			matchO[bi+stable] == oi+stable &&
			matchT[bi+stable] == ti+stable {
			stable++
		}
		if stable > 0 {
			m.stable(b[bi : bi+stable])
			bi += stable
			oi += stable
			ti += stable
			continue
		}

		next := bi
		for next < len(b) && (matchO[next] < 0 || matchT[next] < 0) {
			next++
		}
		if next == len(b) {
			m.unstable(b[bi:], o[oi:], t[ti:])
			break
		}
		m.unstable(b[bi:next], o[oi:matchO[next]], t[ti:matchT[next]])
		bi, oi, ti = next, matchO[next], matchT[next]
	}
	return m.result()
}

// baseMatches maps every base line index to the index of the side line it
// is aligned with, or -1 when the line was deleted or replaced.
func baseMatches(base, side []string) []int {
	match := make([]int, len(base))
	for i := range match {
		match[i] = -1
	}
	bi, si := 0, 0
	for _, op := range MyersDiff(base, side) {
		switch op.Type {
		case Equal:
			match[bi] = si
			bi++
			si++
		case Delete:
			bi++
		case Insert:
			si++
		}
	}
	return match
}

type merger struct {
	labels Labels
	out    bytes.Buffer
	hunks  []Hunk
	count  int
}

func (m *merger) stable(lines []string) {
	data := joinLines(lines)
	m.out.Write(data)
	m.hunks = append(m.hunks, Hunk{Type: HunkClean, Base: data, Merged: data})
}

func (m *merger) unstable(base, ours, theirs []string) {
	if len(base) == 0 && len(ours) == 0 && len(theirs) == 0 {
		return
	}
	h := Hunk{Base: joinLines(base), Ours: joinLines(ours), Theirs: joinLines(theirs)}

	oursChanged := !linesEqual(base, ours)
	theirsChanged := !linesEqual(base, theirs)
	switch {
	case !oursChanged:
		h.Merged = h.Theirs
	case !theirsChanged, linesEqual(ours, theirs):
		h.Merged = h.Ours
	default:
		h.Type = HunkConflict
		m.count++
		m.writeConflict(ours, theirs)
		m.hunks = append(m.hunks, h)
		return
	}
	m.out.Write(h.Merged)
	m.hunks = append(m.hunks, h)
}

func (m *merger) writeConflict(ours, theirs []string) {
	m.out.WriteString("<<<<<<< " + m.labels.Ours + "\n")
	m.out.Write(joinLines(ours))
	m.out.WriteString("=======\n")
	m.out.Write(joinLines(theirs))
	m.out.WriteString(">>>>>>> " + m.labels.Theirs + "\n")
}

func (m *merger) result() Result {
	return Result{
		Merged:        m.out.Bytes(),
		HasConflicts:  m.count > 0,
		ConflictCount: m.count,
		Hunks:         m.hunks,
	}
}

// RenderConflict renders a whole-file conflict between two sides, either
// of which may be nil (deleted).
func RenderConflict(ours, theirs []byte, labels Labels) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< " + labels.Ours + "\n")
	buf.Write(ours)
	if len(ours) > 0 && ours[len(ours)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString("=======\n")
	buf.Write(theirs)
	if len(theirs) > 0 && theirs[len(theirs)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(">>>>>>> " + labels.Theirs + "\n")
	return buf.Bytes()
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
