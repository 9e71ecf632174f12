package app

import (
	"fmt"

	"drive-go/internal/config"
	"drive-go/internal/database/migrations"
)

type migrator interface {
	MigrateUp() error
	MigrationStatus() (migrations.Status, error)
}

type backupper interface {
	BackupTo(destPath string) error
}

// MigrateDatabase applies pending schema migrations. Stores without a schema
// report applied=false.
func MigrateDatabase(cfg *config.Config) (applied bool, err error) {
	store, err := OpenMetadataStore(cfg)
	if err != nil {
		return false, err
	}
	defer store.Close()

	m, ok := store.(migrator)
	if !ok {
		return false, nil
	}
	if err := m.MigrateUp(); err != nil {
		return false, fmt.Errorf("migrating database: %w", err)
	}
	return true, nil
}

// DatabaseStatus reports the schema version of a store that has one.
func DatabaseStatus(cfg *config.Config) (migrations.Status, bool, error) {
	store, err := OpenMetadataStore(cfg)
	if err != nil {
		return migrations.Status{}, false, err
	}
	defer store.Close()

	m, ok := store.(migrator)
	if !ok {
		return migrations.Status{}, false, nil
	}
	st, err := m.MigrationStatus()
	if err != nil {
		return st, true, fmt.Errorf("reading migration status: %w", err)
	}
	return st, true, nil
}

// BackupDatabase writes a consistent snapshot of the metadata store to dest.
func BackupDatabase(cfg *config.Config, dest string) error {
	store, err := OpenMetadataStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	b, ok := store.(backupper)
	if !ok {
		return fmt.Errorf("database type %q does not support backups", cfg.Database.Type)
	}
	return b.BackupTo(dest)
}
