package repo

import (
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/odvcencio/solvc/pkg/object"
)

// PutBlob stores content and returns its id. Equal content always yields
// the same id and is stored once.
func (r *Repository) PutBlob(content []byte) (object.Hash, error) {
	h, err := r.store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}
	return h, nil
}

// GetBlob returns the content of a blob.
func (r *Repository) GetBlob(id object.Hash) ([]byte, error) {
	return r.readBlob(id)
}

// PutTree stores a flat path -> blob id mapping as a tree and returns its
// id. Every referenced blob must exist.
func (r *Repository) PutTree(entries map[string]object.Hash) (object.Hash, error) {
	clean := make(map[string]object.Hash, len(entries))
	for p, h := range entries {
		np, err := NormalizePath(p)
		if err != nil {
			return "", fmt.Errorf("put tree: %w", err)
		}
		if !r.store.Has(h) {
			return "", fmt.Errorf("put tree: %s: %w", np, &NotFoundError{Kind: "blob", ID: string(h)})
		}
		clean[np] = h
	}
	if clashes := fileDirClashes(clean); len(clashes) > 0 {
		return "", fmt.Errorf("put tree: %w: %q is a file and the parent of %q", ErrInvalidPath, clashes[0].File, clashes[0].Nested)
	}
	h, err := r.store.WriteFlatTree(clean)
	if err != nil {
		return "", fmt.Errorf("put tree: %w", err)
	}
	return h, nil
}

// GetTree returns the flat path -> blob id mapping of a tree.
func (r *Repository) GetTree(id object.Hash) (map[string]object.Hash, error) {
	if !r.store.Has(id) {
		return nil, &NotFoundError{Kind: "tree", ID: string(id)}
	}
	entries, err := r.store.ReadFlatTree(id)
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	return entries, nil
}

func (r *Repository) readBlob(id object.Hash) ([]byte, error) {
	b, err := r.store.ReadBlob(id)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, &NotFoundError{Kind: "blob", ID: string(id)}
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return b.Data, nil
}

func (r *Repository) readCommit(id object.Hash) (*object.CommitObj, error) {
	c, err := r.store.ReadCommit(id)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, &NotFoundError{Kind: "commit", ID: string(id)}
		}
		return nil, fmt.Errorf("read commit: %w", err)
	}
	return c, nil
}

// commitFiles returns the flat tree of a commit; the empty hash yields an
// empty tree.
func (r *Repository) commitFiles(id object.Hash) (map[string]object.Hash, error) {
	if id == "" {
		return map[string]object.Hash{}, nil
	}
	c, err := r.readCommit(id)
	if err != nil {
		return nil, err
	}
	files, err := r.store.ReadFlatTree(c.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("read tree of %s: %w", id.Short(), err)
	}
	return files, nil
}

// stagedFiles returns the branch head tree with its index applied.
func (r *Repository) stagedFiles(branch string) (map[string]object.Hash, error) {
	files, err := r.commitFiles(r.branches[branch])
	if err != nil {
		return nil, err
	}
	if idx, ok := r.indexes[branch]; ok {
		idx.applyTo(files)
	}
	return files, nil
}

// pathClash is a file path that is also a directory of another file.
type pathClash struct {
	File   string
	Nested string
}

// fileDirClashes lists every file in files that is an ancestor directory
// of another entry, ordered by file then nested path.
func fileDirClashes(files map[string]object.Hash) []pathClash {
	var out []pathClash
	for p := range files {
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, ok := files[dir]; ok {
				out = append(out, pathClash{File: dir, Nested: p})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Nested < out[j].Nested
	})
	return out
}
