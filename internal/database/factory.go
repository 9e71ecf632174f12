package database

import (
	"fmt"
	"path/filepath"

	"drive-go/internal/config"
	"drive-go/internal/database/badger"
	"drive-go/internal/drive"
)

// NewMetadataStoreFromConfig creates a MetadataStore implementation based on the database config type.
// An in-memory store is migrated immediately; file-backed stores are left for
// the caller to migrate or check.
func NewMetadataStoreFromConfig(cfg config.DatabaseConfig) (drive.MetadataStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		store, err := NewSQLiteStore(filepath.Join(cfg.DataDir, "drive.db"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		store, err := NewSQLiteStore(":memory:")
		if err != nil {
			return nil, err
		}
		if err := store.MigrateUp(); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
		return store, nil
	case "badger":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for badger database")
		}
		store, err := badger.NewStore(filepath.Join(cfg.DataDir, "badger"))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
