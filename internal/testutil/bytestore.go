package testutil

import "drive-go/internal/bytestore"

// NewTestByteStore creates an empty in-memory byte store.
func NewTestByteStore() *bytestore.MemoryStore {
	return bytestore.NewMemoryStore()
}
