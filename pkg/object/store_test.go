package object

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHashBytesDeterminism(t *testing.T) {
	data := []byte("contract A {}")
	h1 := HashBytes(data)
	h2 := HashBytes(data)
	if h1 != h2 {
		t.Errorf("HashBytes not deterministic: %q != %q", h1, h2)
	}
	if !h1.Valid() {
		t.Errorf("HashBytes produced invalid hash %q", h1)
	}
}

func TestHashObjectEnvelope(t *testing.T) {
	data := []byte("hello")
	if HashObject(TypeBlob, data) == HashBytes(data) {
		t.Error("HashObject should differ from HashBytes due to envelope")
	}
	if HashObject(TypeBlob, data) == HashObject(TypeTree, data) {
		t.Error("different types should produce different hashes")
	}
}

func TestHashShortAndValid(t *testing.T) {
	h := HashBytes([]byte("x"))
	if got := h.Short(); len(got) != 8 || !strings.HasPrefix(string(h), got) {
		t.Errorf("Short() = %q", got)
	}
	if Hash("abc").Valid() {
		t.Error("short hash reported valid")
	}
	if Hash(strings.Repeat("G", 64)).Valid() {
		t.Error("non-hex hash reported valid")
	}
}

// storeFactories runs a test body against every backend.
func storeFactories(t *testing.T) map[string]*Store {
	t.Helper()
	badgerBackend, err := OpenBadgerBackend("")
	if err != nil {
		t.Fatalf("OpenBadgerBackend: %v", err)
	}
	t.Cleanup(func() { badgerBackend.Close() })

	return map[string]*Store{
		"memory":        NewMemoryStore(),
		"disk":          NewDiskStore(t.TempDir(), false),
		"disk-zstd":     NewDiskStore(t.TempDir(), true),
		"badger-memory": NewStore(badgerBackend),
	}
}

func TestStoreWriteRead(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte("pragma solidity ^0.8.0;\n")
			h, err := s.Write(TypeBlob, data)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			gotType, gotData, err := s.Read(h)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if gotType != TypeBlob {
				t.Errorf("Type: got %q, want %q", gotType, TypeBlob)
			}
			if !bytes.Equal(gotData, data) {
				t.Errorf("Data: got %q, want %q", gotData, data)
			}
			if !s.Has(h) {
				t.Error("Has returned false for existing object")
			}
		})
	}
}

func TestStoreDuplicateWrite(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			h1, err := s.WriteBlob(&Blob{Data: []byte("same")})
			if err != nil {
				t.Fatalf("WriteBlob 1: %v", err)
			}
			h2, err := s.WriteBlob(&Blob{Data: []byte("same")})
			if err != nil {
				t.Fatalf("WriteBlob 2: %v", err)
			}
			if h1 != h2 {
				t.Errorf("same content produced different hashes: %q vs %q", h1, h2)
			}
		})
	}
}

func TestStoreReadMissing(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			missing := Hash(strings.Repeat("0", 64))
			if s.Has(missing) {
				t.Error("Has returned true for missing object")
			}
			_, _, err := s.Read(missing)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Read missing: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestMemoryBackendDedup(t *testing.T) {
	mb := NewMemoryBackend()
	s := NewStore(mb)
	for i := 0; i < 3; i++ {
		if _, err := s.WriteBlob(&Blob{Data: []byte("contract A {}")}); err != nil {
			t.Fatalf("WriteBlob: %v", err)
		}
	}
	if mb.Len() != 1 {
		t.Errorf("Len = %d, want 1", mb.Len())
	}
}

func TestMemoryBackendReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	h, err := s.WriteBlob(&Blob{Data: []byte("immutable")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	b, err := s.ReadBlob(h)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	b.Data[0] = 'X'
	again, err := s.ReadBlob(h)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(again.Data) != "immutable" {
		t.Errorf("stored blob mutated through returned slice: %q", again.Data)
	}
}

func TestDiskStoreFanoutLayout(t *testing.T) {
	dir := t.TempDir()
	s := NewDiskStore(dir, false)
	h, err := s.Write(TypeBlob, []byte("format check"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if want := "blob 12\x00format check"; string(raw) != want {
		t.Errorf("on-disk format: got %q, want %q", raw, want)
	}
}

func TestDiskStoreCompressed(t *testing.T) {
	dir := t.TempDir()
	s := NewDiskStore(dir, true)
	data := []byte(strings.Repeat("uint256 public x;\n", 200))
	h, err := s.WriteBlob(&Blob{Data: data})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(raw, zstdMagic) {
		t.Fatalf("object is not zstd framed")
	}
	if len(raw) >= len(data) {
		t.Errorf("compressed size %d not smaller than %d", len(raw), len(data))
	}

	// An uncompressed reader over the same root still decodes it.
	plain := NewDiskStore(dir, false)
	b, err := plain.ReadBlob(h)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if !bytes.Equal(b.Data, data) {
		t.Error("compressed round-trip mismatch")
	}
}

func TestBadgerBackendOnDisk(t *testing.T) {
	dir := t.TempDir()
	bb, err := OpenBadgerBackend(dir)
	if err != nil {
		t.Fatalf("OpenBadgerBackend: %v", err)
	}
	h, err := NewStore(bb).WriteBlob(&Blob{Data: []byte("persisted")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if err := bb.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBadgerBackend(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	b, err := NewStore(reopened).ReadBlob(h)
	if err != nil {
		t.Fatalf("ReadBlob after reopen: %v", err)
	}
	if string(b.Data) != "persisted" {
		t.Errorf("Data = %q", b.Data)
	}
}

func TestStoreReadBlobTypeMismatch(t *testing.T) {
	s := NewMemoryStore()
	h, err := s.WriteTree(&TreeObj{})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	_, err = s.ReadBlob(h)
	if err == nil || !strings.Contains(err.Error(), "type mismatch") {
		t.Errorf("expected type mismatch error, got: %v", err)
	}
}

func TestFlatTreeRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	a, _ := s.WriteBlob(&Blob{Data: []byte("contract A {}")})
	b, _ := s.WriteBlob(&Blob{Data: []byte("contract B {}")})

	entries := map[string]Hash{
		"A.sol":                  a,
		"contracts/B.sol":        b,
		"contracts/lib/Math.sol": a,
	}
	root, err := s.WriteFlatTree(entries)
	if err != nil {
		t.Fatalf("WriteFlatTree: %v", err)
	}
	got, err := s.ReadFlatTree(root)
	if err != nil {
		t.Fatalf("ReadFlatTree: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for p, h := range entries {
		if got[p] != h {
			t.Errorf("%s: got %s, want %s", p, got[p], h)
		}
	}

	again, err := s.WriteFlatTree(entries)
	if err != nil {
		t.Fatalf("WriteFlatTree again: %v", err)
	}
	if again != root {
		t.Error("tree identity is not deterministic")
	}
}

func TestFlatTreeEmpty(t *testing.T) {
	s := NewMemoryStore()
	root, err := s.WriteFlatTree(nil)
	if err != nil {
		t.Fatalf("WriteFlatTree: %v", err)
	}
	got, err := s.ReadFlatTree(root)
	if err != nil {
		t.Fatalf("ReadFlatTree: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty tree, got %v", got)
	}
}

func TestFlatTreeFileDirectoryClash(t *testing.T) {
	s := NewMemoryStore()
	h, _ := s.WriteBlob(&Blob{Data: []byte("x")})
	_, err := s.WriteFlatTree(map[string]Hash{"lib": h, "lib/A.sol": h})
	if err == nil {
		t.Fatal("expected clash error")
	}
}

func TestWalkReportsMissing(t *testing.T) {
	s := NewMemoryStore()
	blob, _ := s.WriteBlob(&Blob{Data: []byte("x")})
	tree, err := s.WriteFlatTree(map[string]Hash{"x.sol": blob})
	if err != nil {
		t.Fatalf("WriteFlatTree: %v", err)
	}
	ghostParent := Hash(strings.Repeat("a", 64))
	commit, err := s.WriteCommit(&CommitObj{TreeHash: tree, Parents: []Hash{ghostParent}, Timestamp: 1, Message: "m"})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	res, err := s.Walk([]Hash{commit})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	for _, h := range []Hash{commit, tree, blob} {
		if _, ok := res.Found[h]; !ok {
			t.Errorf("expected %s to be reachable", h.Short())
		}
	}
	if len(res.Missing) != 1 || res.Missing[0] != ghostParent {
		t.Errorf("Missing = %v, want [%s]", res.Missing, ghostParent.Short())
	}
}
