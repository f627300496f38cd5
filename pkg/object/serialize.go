package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted by Name for
// deterministic output. Each entry is one line:
//
//	blob <hash> <name>
//	tree <hash> <name>
//
// The name comes last so it may contain spaces.
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		if e.IsDir {
			fmt.Fprintf(&buf, "%s %s %s\n", TypeTree, e.SubtreeHash, e.Name)
		} else {
			fmt.Fprintf(&buf, "%s %s %s\n", TypeBlob, e.BlobHash, e.Name)
		}
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 || parts[2] == "" {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
		entry := TreeEntry{Name: parts[2]}
		switch ObjectType(parts[0]) {
		case TypeTree:
			entry.IsDir = true
			entry.SubtreeHash = Hash(parts[1])
		case TypeBlob:
			entry.BlobHash = Hash(parts[1])
		default:
			return nil, fmt.Errorf("unmarshal tree: unknown entry kind %q", parts[0])
		}
		tr.Entries = append(tr.Entries, entry)
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H                       (zero or more)
//	author-name N
//	author-email E
//	author-id I
//	timestamp T
//	change TYPE BLOB OLDBLOB PATH  (zero or more, "-" for empty hashes)
//	signature S                    (optional)
//
//	message
//
// Header values must not contain line breaks; Store.WriteCommit rejects
// commits that fail Validate.
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author-name %s\n", c.Author.Name)
	fmt.Fprintf(&buf, "author-email %s\n", c.Author.Email)
	fmt.Fprintf(&buf, "author-id %s\n", c.Author.ID)
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)
	for _, ch := range c.Changes {
		fmt.Fprintf(&buf, "change %s %s %s %s\n", ch.Type, hashOrDash(ch.BlobHash), hashOrDash(ch.OldBlobHash), ch.Path)
	}
	if strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(&buf, "signature %s\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author-name":
			c.Author.Name = val
		case "author-email":
			c.Author.Email = val
		case "author-id":
			c.Author.ID = val
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad timestamp %q: %w", val, err)
			}
			c.Timestamp = ts
		case "change":
			ch, err := parseChange(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w", err)
			}
			c.Changes = append(c.Changes, ch)
		case "signature":
			c.Signature = val
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	return c, nil
}

func parseChange(val string) (ChangeEntry, error) {
	parts := strings.SplitN(val, " ", 4)
	if len(parts) != 4 || parts[3] == "" {
		return ChangeEntry{}, fmt.Errorf("malformed change %q", val)
	}
	ch := ChangeEntry{
		Type:        ChangeType(parts[0]),
		BlobHash:    dashOrHash(parts[1]),
		OldBlobHash: dashOrHash(parts[2]),
		Path:        parts[3],
	}
	switch ch.Type {
	case ChangeAdd, ChangeModify, ChangeDelete:
	default:
		return ChangeEntry{}, fmt.Errorf("unknown change type %q", parts[0])
	}
	return ch, nil
}

func hashOrDash(h Hash) string {
	if h == "" {
		return "-"
	}
	return string(h)
}

func dashOrHash(s string) Hash {
	if s == "-" {
		return Hash("")
	}
	return Hash(s)
}

// Validate reports header values that would not survive serialization:
// a line break in the author, signature, or a change path.
func (c *CommitObj) Validate() error {
	if err := c.Author.Validate(); err != nil {
		return err
	}
	if strings.ContainsAny(c.Signature, "\r\n") {
		return fmt.Errorf("%w: signature contains a line break", ErrInvalidHeader)
	}
	for _, ch := range c.Changes {
		if strings.ContainsAny(ch.Path, "\r\n") {
			return fmt.Errorf("%w: change path %q contains a line break", ErrInvalidHeader, ch.Path)
		}
	}
	return nil
}

// Validate rejects entry names the tree format cannot carry: empty names,
// names containing '/', and names with control characters.
func (tr *TreeObj) Validate() error {
	for _, e := range tr.Entries {
		if e.Name == "" || strings.Contains(e.Name, "/") || HasControlChars(e.Name) {
			return fmt.Errorf("%w: tree entry %q", ErrInvalidHeader, e.Name)
		}
	}
	return nil
}

// HasControlChars reports whether s contains an ASCII control character.
func HasControlChars(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool {
		return r < 0x20 || r == 0x7f
	})
}
