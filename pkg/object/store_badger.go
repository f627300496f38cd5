package object

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "obj:"

// BadgerBackend stores object envelopes in a BadgerDB key-value store.
type BadgerBackend struct {
	db    *badger.DB
	owned bool
}

// OpenBadgerBackend opens (or creates) a BadgerDB at dir. An empty dir
// opens an in-memory database.
func OpenBadgerBackend(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	return &BadgerBackend{db: db, owned: true}, nil
}

// NewBadgerBackend wraps an already opened database. Close does not close
// a database it did not open.
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

func badgerKey(h Hash) []byte {
	return []byte(badgerKeyPrefix + string(h))
}

func (b *BadgerBackend) Has(h Hash) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(h))
		return err
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

func (b *BadgerBackend) Put(h Hash, envelope []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(h), envelope)
	})
}

func (b *BadgerBackend) Get(h Hash) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(h))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the database if this backend opened it.
func (b *BadgerBackend) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}
