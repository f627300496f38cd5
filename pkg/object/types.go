package object

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidHeader is returned when an object field cannot be encoded
// without changing its value.
var ErrInvalidHeader = errors.New("invalid object field")

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. A file entry carries BlobHash,
// a directory entry carries SubtreeHash.
type TreeEntry struct {
	Name        string
	IsDir       bool
	BlobHash    Hash
	SubtreeHash Hash
}

// TreeObj holds a sorted list of tree entries.
type TreeObj struct {
	Entries []TreeEntry // sorted by Name
}

// Author identifies who made a commit. Identity is resolved by the host
// application; the engine stores it verbatim.
type Author struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	ID    string `json:"id" yaml:"id"`
}

// String formats the author as "Name <email>".
func (a Author) String() string {
	if a.Email == "" {
		return a.Name
	}
	return a.Name + " <" + a.Email + ">"
}

// Validate rejects fields containing line breaks, which the commit
// header format cannot carry.
func (a Author) Validate() error {
	fields := []struct{ name, value string }{
		{"name", a.Name},
		{"email", a.Email},
		{"id", a.ID},
	}
	for _, f := range fields {
		if strings.ContainsAny(f.value, "\r\n") {
			return fmt.Errorf("%w: author %s contains a line break", ErrInvalidHeader, f.name)
		}
	}
	return nil
}

// ChangeType classifies a path-level change recorded on a commit.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
)

// ChangeEntry records a single path change relative to a commit's first
// parent. It is informational; the tree is authoritative.
type ChangeEntry struct {
	Type        ChangeType
	Path        string
	BlobHash    Hash // empty for deletes
	OldBlobHash Hash // empty for adds
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    Author
	Timestamp int64 // unix seconds
	Message   string
	Changes   []ChangeEntry
	Signature string
}
