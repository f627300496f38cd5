package diff

import (
	"fmt"
	"strings"
)

// ContextLines is the number of unchanged lines shown around each change
// in unified output.
const ContextLines = 3

const noNewlineMarker = `\ No newline at end of file`

type line struct {
	kind    RunKind
	text    string
	oldLine int // 1-based; 0 when the line is not on the old side
	newLine int // 1-based; 0 when the line is not on the new side
}

func (fd *FileDiff) flatten() []line {
	var out []line
	oldN, newN := 0, 0
	for _, r := range fd.Runs {
		for _, text := range r.Lines {
			l := line{kind: r.Kind, text: text}
			if r.Kind != Added {
				oldN++
				l.oldLine = oldN
			}
			if r.Kind != Removed {
				newN++
				l.newLine = newN
			}
			out = append(out, l)
		}
	}
	return out
}

// String renders the diff in unified format with ContextLines of context.
// An unchanged file renders as the empty string.
func (fd *FileDiff) String() string {
	if fd.Empty() {
		return ""
	}

	oldName, newName := "a/"+fd.Path, "b/"+fd.Path
	switch fd.Status {
	case StatusAdded:
		oldName = "/dev/null"
	case StatusDeleted:
		newName = "/dev/null"
	}

	var b strings.Builder
	if fd.Binary {
		fmt.Fprintf(&b, "Binary files %s and %s differ\n", oldName, newName)
		return b.String()
	}

	fmt.Fprintf(&b, "--- %s\n", oldName)
	fmt.Fprintf(&b, "+++ %s\n", newName)

	lines := fd.flatten()
	oldTotal, newTotal := 0, 0
	for _, l := range lines {
		if l.oldLine > oldTotal {
			oldTotal = l.oldLine
		}
		if l.newLine > newTotal {
			newTotal = l.newLine
		}
	}

	for _, h := range hunks(lines, ContextLines) {
		writeHunk(&b, lines[h[0]:h[1]], fd, oldTotal, newTotal)
	}
	return b.String()
}

// hunks groups changed lines into [start, end) windows padded with
// context. Windows whose context would touch are joined.
func hunks(lines []line, context int) [][2]int {
	var out [][2]int
	for i := 0; i < len(lines); i++ {
		if lines[i].kind == Unchanged {
			continue
		}
		start := max(0, i-context)
		last := i
		for j := i + 1; j < len(lines); j++ {
			if lines[j].kind == Unchanged {
				continue
			}
			if j-last > 2*context {
				break
			}
			last = j
		}
		end := min(len(lines), last+context+1)
		out = append(out, [2]int{start, end})
		i = end - 1
	}
	return out
}

func writeHunk(b *strings.Builder, hunk []line, fd *FileDiff, oldTotal, newTotal int) {
	oldStart, oldLen, newStart, newLen := 0, 0, 0, 0
	for _, l := range hunk {
		if l.oldLine > 0 {
			if oldStart == 0 {
				oldStart = l.oldLine
			}
			oldLen++
		}
		if l.newLine > 0 {
			if newStart == 0 {
				newStart = l.newLine
			}
			newLen++
		}
	}
	if oldLen == 0 {
		oldStart = precedingLine(hunk, func(l line) int { return l.newLine - 1 })
	}
	if newLen == 0 {
		newStart = precedingLine(hunk, func(l line) int { return l.oldLine - 1 })
	}
	fmt.Fprintf(b, "@@ -%s +%s @@\n", hunkRange(oldStart, oldLen), hunkRange(newStart, newLen))

	for _, l := range hunk {
		switch l.kind {
		case Added:
			b.WriteString("+")
		case Removed:
			b.WriteString("-")
		default:
			b.WriteString(" ")
		}
		b.WriteString(l.text)
		b.WriteString("\n")

		lastOld := l.oldLine > 0 && l.oldLine == oldTotal && fd.NoNewlineOld
		lastNew := l.newLine > 0 && l.newLine == newTotal && fd.NoNewlineNew
		if lastOld || lastNew {
			b.WriteString(noNewlineMarker)
			b.WriteString("\n")
		}
	}
}

// precedingLine returns the position just before the hunk on a side that
// contributes no lines to it.
func precedingLine(hunk []line, f func(line) int) int {
	if len(hunk) == 0 {
		return 0
	}
	return max(0, f(hunk[0]))
}

func hunkRange(start, n int) string {
	if n == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, n)
}
