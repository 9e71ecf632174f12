package app

import (
	"context"
	"fmt"

	"drive-go/internal/drive"
)

// Operation statuses recorded in the journal.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// JournalEntry tracks a CLI operation that may mutate the drive.
// Entries are created in memory with ID=0. Only mutating commands persist
// them (giving them an ID from the journal).
type JournalEntry struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
}

// NewJournalEntry creates a new in-memory journal entry.
func NewJournalEntry(operation, parameters string) *JournalEntry {
	return &JournalEntry{
		Operation:  operation,
		Parameters: parameters,
		Status:     StatusSuccess,
	}
}

// Persisted returns true if this entry has been saved to the journal.
func (e *JournalEntry) Persisted() bool {
	return e.ID != 0
}

// Fail marks the entry so Finish records an error status.
func (e *JournalEntry) Fail() {
	e.Status = StatusError
}

// Persist writes the entry to the journal once, on behalf of ownerID.
func (e *JournalEntry) Persist(ctx context.Context, store drive.OperationStore, ownerID string) error {
	if e.Persisted() {
		return nil
	}
	op, err := store.CreateOperation(ctx, e.Operation, e.Parameters, ownerID)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	e.ID = op.ID
	return nil
}

// Finish records the final status of a persisted entry.
func (e *JournalEntry) Finish(ctx context.Context, store drive.OperationStore) error {
	if !e.Persisted() {
		return nil
	}
	if err := store.FinishOperation(ctx, e.ID, e.Status); err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}
