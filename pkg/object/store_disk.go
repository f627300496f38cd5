package object

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// DiskBackend stores objects under a 2-character fan-out directory layout:
// objects/ab/cdef0123... When compression is enabled, envelopes are
// written as zstd frames; reads accept both forms.
type DiskBackend struct {
	root     string
	compress bool
}

// NewDiskBackend creates a DiskBackend rooted at the given directory. The
// objects/ subdirectory is created lazily on first write.
func NewDiskBackend(root string, compress bool) *DiskBackend {
	return &DiskBackend{root: root, compress: compress}
}

// NewDiskStore is shorthand for NewStore(NewDiskBackend(root, compress)).
func NewDiskStore(root string, compress bool) *Store {
	return NewStore(NewDiskBackend(root, compress))
}

// objectPath returns the filesystem path for a given hash.
func (d *DiskBackend) objectPath(h Hash) (string, error) {
	if len(h) < 3 {
		return "", fmt.Errorf("invalid object hash %q", h)
	}
	return filepath.Join(d.root, "objects", string(h[:2]), string(h[2:])), nil
}

func (d *DiskBackend) Has(h Hash) (bool, error) {
	p, err := d.objectPath(h)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Put writes the envelope atomically: data is written to a temp file and
// then renamed into place.
func (d *DiskBackend) Put(h Hash, envelope []byte) error {
	dest, err := d.objectPath(h)
	if err != nil {
		return err
	}
	payload := envelope
	if d.compress {
		payload, err = compressZstd(envelope)
		if err != nil {
			return fmt.Errorf("compress: %w", err)
		}
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (d *DiskBackend) Get(h Hash) ([]byte, error) {
	p, err := d.objectPath(h)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if bytes.HasPrefix(raw, zstdMagic) {
		out, err := decompressZstd(raw)
		if err != nil {
			return nil, fmt.Errorf("decompress: %w", err)
		}
		return out, nil
	}
	return raw, nil
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
