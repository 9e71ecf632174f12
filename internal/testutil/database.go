package testutil

import (
	"testing"

	"drive-go/internal/database"
	"drive-go/internal/database/badger"
)

// NewTestStore creates a new in-memory SQLite metadata store with the schema
// applied. The store is closed when the test completes.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	store := database.NewSQLiteStoreFromDB(sqlDB)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTestBadgerStore creates an in-memory badger metadata store.
func NewTestBadgerStore(t *testing.T) *badger.Store {
	t.Helper()

	store, err := badger.NewInMemoryStore()
	if err != nil {
		t.Fatalf("failed to open badger store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
