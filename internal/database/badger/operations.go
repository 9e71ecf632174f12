package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"drive-go/internal/drive"
)

func (s *Store) CreateOperation(ctx context.Context, operation, parameters, ownerID string) (*drive.Operation, error) {
	next, err := s.opSeq.Next()
	if err != nil {
		return nil, fmt.Errorf("allocating operation id: %w", err)
	}
	op := &drive.Operation{
		ID:         int64(next) + 1,
		Operation:  operation,
		Parameters: parameters,
		OwnerID:    ownerID,
		Status:     "running",
		StartedAt:  time.Now().UTC(),
	}
	err = s.update("create operation", func(txn *badger.Txn) error {
		return setJSON(txn, keyOperation(op.ID), op)
	})
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return op, nil
}

func (s *Store) FinishOperation(ctx context.Context, id int64, status string) error {
	const opName = "finish operation"
	return s.update(opName, func(txn *badger.Txn) error {
		var op drive.Operation
		ok, err := getJSON(txn, keyOperation(id), &op)
		if err != nil {
			return err
		}
		if !ok {
			return drive.NotFoundError(opName, "operation %d not found", id)
		}
		now := time.Now().UTC()
		op.Status = status
		op.FinishedAt = &now
		return setJSON(txn, keyOperation(id), &op)
	})
}

// ListOperations returns the newest operations first.
func (s *Store) ListOperations(ctx context.Context, limit int) ([]*drive.Operation, error) {
	var ops []*drive.Operation
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixOperation)

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(prefixOperation), 0xff)
		for it.Seek(seek); it.Valid() && len(ops) < limit; it.Next() {
			var op drive.Operation
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &op) }); err != nil {
				return err
			}
			ops = append(ops, &op)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
