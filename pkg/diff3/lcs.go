package diff3

// DiffType classifies a line in an edit script.
type DiffType int

const (
	Equal  DiffType = iota // Line is unchanged between a and b.
	Insert                 // Line was inserted (present in b only).
	Delete                 // Line was deleted (present in a only).
)

func (t DiffType) String() string {
	switch t {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// DiffOp is a single operation in an edit script produced by MyersDiff.
type DiffOp struct {
	Type DiffType
	Line string
}

// MyersDiff computes the shortest edit script transforming a into b,
// operating on whole lines. Deletions are emitted before insertions within
// a changed region. Runs in O((N+M)*D) time.
func MyersDiff(a, b []string) []DiffOp {
	// Trim the common prefix and suffix; they never participate in edits
	// and trimming keeps the search space small for typical source edits.
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	ops := make([]DiffOp, 0, len(a)+len(b)-prefix-suffix)
	for _, line := range a[:prefix] {
		ops = append(ops, DiffOp{Type: Equal, Line: line})
	}
	ops = append(ops, myersMiddle(a[prefix:len(a)-suffix], b[prefix:len(b)-suffix])...)
	for _, line := range a[len(a)-suffix:] {
		ops = append(ops, DiffOp{Type: Equal, Line: line})
	}
	if len(ops) == 0 {
		return nil
	}
	return ops
}

// myersMiddle runs the greedy forward search, recording the furthest
// reaching x for every diagonal k after each edit step d, then walks the
// recorded frontiers backwards to recover the path.
func myersMiddle(a, b []string) []DiffOp {
	n, m := len(a), len(b)
	switch {
	case n == 0 && m == 0:
		return nil
	case n == 0:
		return uniform(Insert, b)
	case m == 0:
		return uniform(Delete, a)
	}

	offset := n + m
	frontier := make([]int, 2*offset+2)
	var history [][]int

search:
	for d := 0; d <= offset; d++ {
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && frontier[offset+k-1] < frontier[offset+k+1]) {
				x = frontier[offset+k+1]
			} else {
				x = frontier[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			frontier[offset+k] = x
			if x >= n && y >= m {
				history = append(history, append([]int(nil), frontier...))
				break search
			}
		}
		history = append(history, append([]int(nil), frontier...))
	}

	// Walk back from (n, m) collecting ops in reverse.
	rev := make([]DiffOp, 0, n+m)
	x, y := n, m
	for d := len(history) - 1; d > 0; d-- {
		prev := history[d-1]
		k := x - y
		var prevK int
		if k == -d || (k != d && prev[offset+k-1] < prev[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := prev[offset+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			rev = append(rev, DiffOp{Type: Equal, Line: a[x]})
		}
		if prevK == k+1 {
			y--
			rev = append(rev, DiffOp{Type: Insert, Line: b[y]})
		} else {
			x--
			rev = append(rev, DiffOp{Type: Delete, Line: a[x]})
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		rev = append(rev, DiffOp{Type: Equal, Line: a[x]})
	}

	ops := make([]DiffOp, len(rev))
	for i, op := range rev {
		ops[len(rev)-1-i] = op
	}
	return normalizeRuns(ops)
}

func uniform(t DiffType, lines []string) []DiffOp {
	ops := make([]DiffOp, len(lines))
	for i, line := range lines {
		ops[i] = DiffOp{Type: t, Line: line}
	}
	return ops
}

// normalizeRuns reorders every maximal non-equal run so that deletions
// precede insertions. The edit distance is unchanged.
func normalizeRuns(ops []DiffOp) []DiffOp {
	out := make([]DiffOp, 0, len(ops))
	var dels, ins []DiffOp
	flush := func() {
		out = append(out, dels...)
		out = append(out, ins...)
		dels, ins = dels[:0], ins[:0]
	}
	for _, op := range ops {
		switch op.Type {
		case Delete:
			dels = append(dels, op)
		case Insert:
			ins = append(ins, op)
		default:
			flush()
			out = append(out, op)
		}
	}
	flush()
	return out
}
