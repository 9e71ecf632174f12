// Package badger implements drive.MetadataStore on BadgerDB.
//
// Badger has no schema or constraints, so the uniqueness and referential
// rules the SQLite schema enforces are checked inside each transaction.
package badger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"drive-go/internal/drive"
)

// Store is a BadgerDB-backed metadata store.
type Store struct {
	db    *badger.DB
	opSeq *badger.Sequence
}

var _ drive.MetadataStore = (*Store)(nil)

// NewStore opens (or creates) a store in dir.
func NewStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None)
	return open(opts)
}

// NewInMemoryStore creates a store that lives only as long as the process.
func NewInMemoryStore() (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING)
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", opts.Dir, err)
	}
	seq, err := db.GetSequence([]byte(keyOperationSeq), 16)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open operation sequence: %w", err)
	}
	return &Store{db: db, opSeq: seq}, nil
}

// CheckMigrations always succeeds; the key layout has a single version.
func (s *Store) CheckMigrations() error {
	return nil
}

// BackupTo writes a full badger backup stream to destPath, replacing any
// existing file. Restore it with badger's Load.
func (s *Store) BackupTo(destPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".backup-*")
	if err != nil {
		return fmt.Errorf("creating backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := s.db.Backup(tmp, 0); err != nil {
		tmp.Close()
		return fmt.Errorf("backing up database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing backup file: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("moving backup into place: %w", err)
	}
	return nil
}

// Close releases the operation sequence and closes the database.
func (s *Store) Close() error {
	if err := s.opSeq.Release(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("releasing operation sequence: %w", err)
	}
	return s.db.Close()
}

// update runs fn in a read-write transaction and reports commit conflicts
// with the drive conflict kind.
func (s *Store) update(op string, fn func(txn *badger.Txn) error) error {
	err := s.db.Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return &drive.Error{Kind: drive.KindConflict, Op: op, Message: "concurrent modification", Err: err}
	}
	return err
}

// getJSON decodes the value at key into v. It returns false when the key is absent.
func getJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
	if err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// getString returns the raw value at key, or "" when absent.
func getString(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scanPrefix calls fn for every item under prefix in key order.
func scanPrefix(txn *badger.Txn, prefix []byte, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := fn(it.Item()); err != nil {
			return err
		}
	}
	return nil
}
