package app

import (
	"context"
	"testing"

	"drive-go/internal/testutil"
)

func TestNewJournalEntry(t *testing.T) {
	tests := []struct {
		name       string
		operation  string
		parameters string
	}{
		{
			name:       "with parameters",
			operation:  "Upload",
			parameters: "/home/user/docs",
		},
		{
			name:       "empty parameters",
			operation:  "Bootstrap",
			parameters: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewJournalEntry(tt.operation, tt.parameters)

			if e.Operation != tt.operation {
				t.Errorf("Operation = %q, want %q", e.Operation, tt.operation)
			}
			if e.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", e.Parameters, tt.parameters)
			}
			if e.Status != StatusSuccess {
				t.Errorf("Status = %q, want %q", e.Status, StatusSuccess)
			}
			if e.Persisted() {
				t.Error("new entry should not be persisted")
			}
		})
	}
}

func TestJournalEntry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)

	e := NewJournalEntry("Rename", "/a -> b")
	if err := e.Finish(ctx, store); err != nil {
		t.Fatalf("Finish() on unpersisted entry error = %v", err)
	}

	if err := e.Persist(ctx, store, "user-1"); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	id := e.ID
	if err := e.Persist(ctx, store, "user-1"); err != nil || e.ID != id {
		t.Fatalf("second Persist() changed the entry: %d -> %d, %v", id, e.ID, err)
	}

	ops, _ := store.ListOperations(ctx, 10)
	if len(ops) != 1 || ops[0].Status != StatusRunning || ops[0].OwnerID != "user-1" {
		t.Fatalf("journal = %+v", ops)
	}

	e.Fail()
	if err := e.Finish(ctx, store); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	ops, _ = store.ListOperations(ctx, 10)
	if ops[0].Status != StatusError || ops[0].FinishedAt == nil {
		t.Errorf("finished entry = %+v", ops[0])
	}
}
