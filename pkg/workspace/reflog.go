package workspace

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/solvc/pkg/object"
	"github.com/odvcencio/solvc/pkg/repo"
)

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

func (w *Workspace) reflogPath(branch string) string {
	return w.path("logs", "refs", "heads", filepath.FromSlash(branch))
}

// appendReflog appends entries to the branch's reflog file, one line each:
// "<old> <new> <unix-nanos> <reason>". Empty hashes are written as zeros.
func (w *Workspace) appendReflog(branch string, entries []repo.ReflogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	logPath := w.reflogPath(branch)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}

	var b strings.Builder
	for _, e := range entries {
		reason := strings.ReplaceAll(e.Reason, "\n", " ")
		fmt.Fprintf(&b, "%s %s %d %s\n", orZero(e.OldHash), orZero(e.NewHash), e.Timestamp.UnixNano(), reason)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// readReflog returns the branch's reflog, oldest first. Malformed lines
// are skipped.
func (w *Workspace) readReflog(branch string) ([]repo.ReflogEntry, error) {
	f, err := os.Open(w.reflogPath(branch))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []repo.ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, repo.ReflogEntry{
			Branch:    branch,
			OldHash:   fromZero(parts[0]),
			NewHash:   fromZero(parts[1]),
			Timestamp: time.Unix(0, ts).UTC(),
			Reason:    parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	return entries, nil
}

// readReflogs loads every reflog file under logs/refs/heads.
func (w *Workspace) readReflogs() (map[string][]repo.ReflogEntry, error) {
	root := w.path("logs", "refs", "heads")
	out := make(map[string][]repo.ReflogEntry)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		branch := filepath.ToSlash(rel)
		entries, err := w.readReflog(branch)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			out[branch] = entries
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func orZero(h object.Hash) string {
	if strings.TrimSpace(string(h)) == "" {
		return zeroHash
	}
	return string(h)
}

func fromZero(s string) object.Hash {
	if s == zeroHash {
		return ""
	}
	return object.Hash(s)
}
