package object

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ErrNotFound is returned (wrapped) when a hash does not resolve to an
// object in the store.
var ErrNotFound = errors.New("object not found")

// Backend persists raw object envelopes ("type len\0content") keyed by
// hash. Backends never delete; compaction is not part of the contract.
type Backend interface {
	Has(h Hash) (bool, error)
	Put(h Hash, envelope []byte) error
	Get(h Hash) ([]byte, error) // wraps ErrNotFound when missing
}

// Store is a content-addressed object store layered over a Backend.
// Identical content always maps to the same hash and is stored once.
type Store struct {
	backend Backend
}

// NewStore creates a Store over the given backend.
func NewStore(b Backend) *Store {
	return &Store{backend: b}
}

// NewMemoryStore creates a Store backed by an in-process map.
func NewMemoryStore() *Store {
	return NewStore(NewMemoryBackend())
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	ok, err := s.backend.Has(h)
	return err == nil && ok
}

// Write stores an object and returns its content hash. Writing content
// that already exists is a no-op returning the existing hash.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	raw := append(envelopeHeader(objType, len(data)), data...)
	if err := s.backend.Put(h, raw); err != nil {
		return "", fmt.Errorf("object write %s: %w", h, err)
	}
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	raw, err := s.backend.Get(h)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return parseEnvelope(h, raw)
}

func parseEnvelope(h Hash, raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object read %s: invalid format (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	typ, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("object read %s: invalid header %q", h, header)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: invalid length %q: %w", h, lenStr, err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", h, length, len(content))
	}
	return ObjectType(typ), content, nil
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	if err := tr.Validate(); err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}

// ---------------------------------------------------------------------------
// Memory backend
// ---------------------------------------------------------------------------

// MemoryBackend keeps envelopes in a map. It is safe for concurrent use.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[Hash][]byte
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[Hash][]byte)}
}

func (m *MemoryBackend) Has(h Hash) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[h]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryBackend) Put(h Hash, envelope []byte) error {
	buf := make([]byte, len(envelope))
	copy(buf, envelope)
	m.mu.Lock()
	if _, ok := m.objects[h]; !ok {
		m.objects[h] = buf
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Get(h Hash) ([]byte, error) {
	m.mu.RLock()
	raw, ok := m.objects[h]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// Len returns the number of stored objects.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
