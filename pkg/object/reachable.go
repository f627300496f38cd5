package object

import (
	"errors"
	"fmt"
	"sort"
)

// Reachability is the result of walking the object graph from a set of
// roots: every object that was found plus every referenced hash that
// could not be resolved.
type Reachability struct {
	Found   map[Hash]ObjectType
	Missing []Hash
}

// Walk collects all objects reachable from roots by following commit
// parents, commit trees, and tree entries. Missing objects are recorded,
// not treated as errors; malformed objects are.
func (s *Store) Walk(roots []Hash) (*Reachability, error) {
	res := &Reachability{Found: make(map[Hash]ObjectType)}
	missing := make(map[Hash]struct{})

	stack := uniqueHashes(roots)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := res.Found[h]; ok {
			continue
		}
		if _, ok := missing[h]; ok {
			continue
		}

		objType, data, err := s.Read(h)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				missing[h] = struct{}{}
				continue
			}
			return nil, fmt.Errorf("walk read %s: %w", h, err)
		}
		res.Found[h] = objType

		refs, err := referencedHashes(objType, data)
		if err != nil {
			return nil, fmt.Errorf("walk parse %s (%s): %w", h, objType, err)
		}
		stack = append(stack, refs...)
	}

	res.Missing = make([]Hash, 0, len(missing))
	for h := range missing {
		res.Missing = append(res.Missing, h)
	}
	sort.Slice(res.Missing, func(i, j int) bool { return res.Missing[i] < res.Missing[j] })
	return res, nil
}

func referencedHashes(objType ObjectType, data []byte) ([]Hash, error) {
	switch objType {
	case TypeBlob:
		return nil, nil
	case TypeCommit:
		commit, err := UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, 1+len(commit.Parents))
		refs = append(refs, commit.TreeHash)
		refs = append(refs, commit.Parents...)
		return refs, nil
	case TypeTree:
		tree, err := UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			if e.IsDir {
				refs = append(refs, e.SubtreeHash)
			} else {
				refs = append(refs, e.BlobHash)
			}
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object type %q", objType)
	}
}

func uniqueHashes(in []Hash) []Hash {
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
