package object

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// WriteFlatTree converts a flat path -> blob hash mapping into a
// hierarchical tree, writing every TreeObj to the store and returning the
// root hash. Paths use forward slashes (e.g. "contracts/token/ERC20.sol").
// Identical subdirectories share one stored tree.
func (s *Store) WriteFlatTree(entries map[string]Hash) (Hash, error) {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return s.writeTreeDir(entries, paths, "")
}

// writeTreeDir builds a TreeObj for the given directory prefix. paths must
// be sorted and contain only entries under prefix.
func (s *Store) writeTreeDir(entries map[string]Hash, paths []string, prefix string) (Hash, error) {
	files := make(map[string]Hash)
	subdirs := make(map[string][]string)
	var subdirOrder []string

	for _, p := range paths {
		rel := p
		if prefix != "" {
			rel = p[len(prefix)+1:]
		}
		slash := strings.IndexByte(rel, '/')
		if slash < 0 {
			files[rel] = entries[p]
			continue
		}
		name := rel[:slash]
		if _, seen := subdirs[name]; !seen {
			subdirOrder = append(subdirOrder, name)
		}
		subdirs[name] = append(subdirs[name], p)
	}

	tr := &TreeObj{}
	for name, blob := range files {
		if _, clash := subdirs[name]; clash {
			return "", fmt.Errorf("write tree: %q is both a file and a directory", path.Join(prefix, name))
		}
		tr.Entries = append(tr.Entries, TreeEntry{Name: name, BlobHash: blob})
	}
	for _, name := range subdirOrder {
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		sub, err := s.writeTreeDir(entries, subdirs[name], childPrefix)
		if err != nil {
			return "", err
		}
		tr.Entries = append(tr.Entries, TreeEntry{Name: name, IsDir: true, SubtreeHash: sub})
	}
	sort.Slice(tr.Entries, func(i, j int) bool {
		return tr.Entries[i].Name < tr.Entries[j].Name
	})

	h, err := s.WriteTree(tr)
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// ReadFlatTree walks a tree object recursively, returning every file as a
// full forward-slash path mapped to its blob hash.
func (s *Store) ReadFlatTree(h Hash) (map[string]Hash, error) {
	out := make(map[string]Hash)
	if err := s.flattenTreeRec(h, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) flattenTreeRec(h Hash, prefix string, out map[string]Hash) error {
	tr, err := s.ReadTree(h)
	if err != nil {
		return fmt.Errorf("flatten tree: read %s: %w", h, err)
	}
	for _, entry := range tr.Entries {
		full := entry.Name
		if prefix != "" {
			full = path.Join(prefix, entry.Name)
		}
		if entry.IsDir {
			if err := s.flattenTreeRec(entry.SubtreeHash, full, out); err != nil {
				return err
			}
			continue
		}
		out[full] = entry.BlobHash
	}
	return nil
}
