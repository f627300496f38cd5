package workspace

import (
	"bufio"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreFile is read from the workspace root.
const IgnoreFile = ".solvcignore"

// alwaysIgnored directories are never tracked, whatever .solvcignore says.
var alwaysIgnored = []string{DirName, ".git"}

// Ignore decides which worktree paths are left out of listings. Patterns
// follow gitignore conventions: "#" comments, "!" negation, a trailing
// "/" for directories, "*" and "?" within a segment, and "**" across
// segments. The last matching pattern wins.
type Ignore struct {
	rules []ignoreRule

	// literal rules are looked up by name; globs are scanned.
	byBase map[string][]int
	byPath map[string][]int
	globs  []int
}

type ignoreRule struct {
	pattern  string
	negated  bool
	dirOnly  bool
	anchored bool // contains a slash: matched against the whole path
	re       *regexp.Regexp
}

// LoadIgnore reads root/.solvcignore. A missing file yields the built-in
// rules only.
func LoadIgnore(root string) (*Ignore, error) {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			return ParseIgnore(nil), nil
		}
		return nil, err
	}
	defer f.Close()
	return ParseIgnore(f), nil
}

// ParseIgnore builds an Ignore from pattern lines. src may be nil.
func ParseIgnore(src io.Reader) *Ignore {
	ig := &Ignore{
		byBase: make(map[string][]int),
		byPath: make(map[string][]int),
	}
	if src != nil {
		scanner := bufio.NewScanner(src)
		for scanner.Scan() {
			if rule, ok := parseIgnoreLine(scanner.Text()); ok {
				ig.add(rule)
			}
		}
	}
	return ig
}

func parseIgnoreLine(line string) (ignoreRule, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}
	var rule ignoreRule
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		rule.negated = true
		line = rest
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		rule.anchored = true
		line = strings.TrimLeft(line, "/")
	}
	if line == "" {
		return ignoreRule{}, false
	}
	rule.anchored = rule.anchored || strings.Contains(line, "/")
	rule.pattern = line
	if strings.ContainsAny(line, "*?[") {
		re, err := regexp.Compile(globToRegexp(line))
		if err != nil {
			return ignoreRule{}, false
		}
		rule.re = re
	}
	return rule, true
}

func (ig *Ignore) add(rule ignoreRule) {
	i := len(ig.rules)
	ig.rules = append(ig.rules, rule)
	switch {
	case rule.re != nil:
		ig.globs = append(ig.globs, i)
	case rule.anchored:
		ig.byPath[rule.pattern] = append(ig.byPath[rule.pattern], i)
	default:
		ig.byBase[rule.pattern] = append(ig.byBase[rule.pattern], i)
	}
}

// Match reports whether the slash-separated relative path p is ignored.
// A path is also ignored when any of its parent directories is.
func (ig *Ignore) Match(p string) bool {
	p = strings.Trim(filepath.ToSlash(p), "/")
	segs := strings.Split(p, "/")
	for _, dir := range alwaysIgnored {
		for _, s := range segs {
			if s == dir {
				return true
			}
		}
	}
	for i := 1; i <= len(segs); i++ {
		prefix := strings.Join(segs[:i], "/")
		isDir := i < len(segs)
		if ig.matchOne(prefix, isDir) {
			return true
		}
	}
	return false
}

// matchOne applies every rule to a single path and returns the outcome of
// the last one that matched.
func (ig *Ignore) matchOne(p string, isDir bool) bool {
	base := path.Base(p)
	last := -1
	consider := func(idxs []int) {
		for _, i := range idxs {
			if i > last && (isDir || !ig.rules[i].dirOnly) {
				last = i
			}
		}
	}
	consider(ig.byPath[p])
	consider(ig.byBase[base])
	for _, i := range ig.globs {
		if i <= last {
			continue
		}
		r := ig.rules[i]
		if r.dirOnly && !isDir {
			continue
		}
		target := base
		if r.anchored {
			target = p
		}
		if r.re.MatchString(target) {
			last = i
		}
	}
	return last >= 0 && !ig.rules[last].negated
}

func globToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && strings.HasPrefix(pattern[i:], "**/"):
			b.WriteString("(?:.*/)?")
			i += 2
		case ch == '*' && strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i++
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		case ch == '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : i+1+end]
			if rest, ok := strings.CutPrefix(class, "!"); ok {
				class = "^" + rest
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return b.String()
}
