package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"permissions", "roles", "role_permissions", "users", "nodes", "operations", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)

		err := CheckDBMigrationStatus(db)
		if err == nil {
			t.Fatal("CheckDBMigrationStatus() = nil for fresh database, want error")
		}
		if err.Error() != "database has no schema version (needs migration)" {
			t.Errorf("CheckDBMigrationStatus() error = %q", err.Error())
		}
	})

	t.Run("migrated database is current", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() failed: %v", err)
		}
		if err := CheckDBMigrationStatus(db); err != nil {
			t.Errorf("CheckDBMigrationStatus() error = %v", err)
		}
	})
}

func TestReadStatus(t *testing.T) {
	db := openTestDB(t)

	before, err := ReadStatus(db)
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if before.Version != 0 || before.Current() {
		t.Errorf("before migration: %+v, want version 0 and not current", before)
	}
	if before.Latest == 0 {
		t.Error("Latest = 0, want at least one embedded migration")
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	after, err := ReadStatus(db)
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if !after.Current() {
		t.Errorf("after migration: %+v, want current", after)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("second MigrateUp() failed: %v", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration: %v", err)
	}
}

func TestSchema_NodeConstraints(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := `INSERT INTO nodes (id, owner_id, parent_id, name, is_folder, mime_type, storage_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'folder', ?, datetime('now'), datetime('now'))`

	if _, err := db.Exec(insert, "n1", "u1", nil, "docs", 1, "root/u1/docs"); err != nil {
		t.Fatalf("inserting root folder: %v", err)
	}

	t.Run("duplicate root-level name is rejected", func(t *testing.T) {
		if _, err := db.Exec(insert, "n2", "u1", nil, "docs", 1, "root/u1/docs-2"); err == nil {
			t.Error("expected unique violation for duplicate root-level name")
		}
	})

	t.Run("same name for another owner is allowed", func(t *testing.T) {
		if _, err := db.Exec(insert, "n3", "u2", nil, "docs", 1, "root/u2/docs"); err != nil {
			t.Errorf("inserting other owner's folder: %v", err)
		}
	})

	t.Run("duplicate storage path is rejected", func(t *testing.T) {
		if _, err := db.Exec(insert, "n4", "u1", "n1", "x", 1, "root/u1/docs"); err == nil {
			t.Error("expected unique violation for duplicate storage path")
		}
	})

	t.Run("missing parent is rejected", func(t *testing.T) {
		if _, err := db.Exec(insert, "n5", "u1", "nope", "x", 1, "root/u1/nope/x"); err == nil {
			t.Error("expected foreign key violation for missing parent")
		}
	})
}

// openTestDB opens a single-connection in-memory database with foreign keys on.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
