package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"drive-go/internal/database/migrations"
	"drive-go/internal/drive"
)

// SQLiteStore implements drive.MetadataStore on SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ drive.MetadataStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path (or ":memory:").
// The schema is not applied; call MigrateUp or load Schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps a connection that was already configured with
// OpenConnection.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens a SQLite database with the PRAGMAs the store relies on.
// The pool is limited to one connection: PRAGMAs are per connection, and an
// in-memory database exists only inside the connection that created it.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// MigrateUp applies pending schema migrations.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies that the schema is at the latest version.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrationStatus reports the schema version.
func (s *SQLiteStore) MigrationStatus() (migrations.Status, error) {
	return migrations.ReadStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path, or "" for a wrapped connection.
func (s *SQLiteStore) Path() string {
	return s.path
}

// BackupTo writes a consistent copy of the database to destPath.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("removing existing backup file: %w", err)
		}
	}
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Nodes

const nodeColumns = `id, owner_id, parent_id, name, is_folder, size, mime_type, storage_path, version, created_at, updated_at`

func scanNode(row interface{ Scan(...any) error }) (*drive.Node, error) {
	var (
		n        drive.Node
		parentID sql.NullString
	)
	err := row.Scan(&n.ID, &n.OwnerID, &parentID, &n.Name, &n.IsFolder, &n.Size, &n.MimeType,
		&n.StoragePath, &n.Version, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.ParentID = parentID.String
	return &n, nil
}

func (s *SQLiteStore) findNode(ctx context.Context, query string, args ...any) (*drive.Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

func (s *SQLiteStore) FindNodeByID(ctx context.Context, ownerID, id string) (*drive.Node, error) {
	n, err := s.findNode(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("finding node by id: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) FindChildren(ctx context.Context, ownerID, parentID string) ([]*drive.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE owner_id = ? AND parent_id IS ? ORDER BY name`,
		ownerID, nullable(parentID))
	if err != nil {
		return nil, fmt.Errorf("finding children: %w", err)
	}
	defer rows.Close()

	var nodes []*drive.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning child: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating children: %w", err)
	}
	return nodes, nil
}

func (s *SQLiteStore) FindNodeByNameAndParent(ctx context.Context, ownerID, parentID, name string) (*drive.Node, error) {
	n, err := s.findNode(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE owner_id = ? AND parent_id IS ? AND name = ?`,
		ownerID, nullable(parentID), name)
	if err != nil {
		return nil, fmt.Errorf("finding node by name: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) FindNodeByStoragePath(ctx context.Context, ownerID, storagePath string) (*drive.Node, error) {
	n, err := s.findNode(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE owner_id = ? AND storage_path = ?`,
		ownerID, storagePath)
	if err != nil {
		return nil, fmt.Errorf("finding node by storage path: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) AncestorChain(ctx context.Context, ownerID, nodeID string) ([]*drive.Node, error) {
	return drive.WalkAncestors(ctx, ownerID, nodeID, s.FindNodeByID)
}

func (s *SQLiteStore) InsertNode(ctx context.Context, n *drive.Node) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (`+nodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.OwnerID, nullable(n.ParentID), n.Name, n.IsFolder, n.Size, n.MimeType,
		n.StoragePath, n.Version, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return translateError("insert node", n.Name, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateNode(ctx context.Context, n *drive.Node) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes
		 SET parent_id = ?, name = ?, size = ?, mime_type = ?, storage_path = ?, version = version + 1, updated_at = ?
		 WHERE owner_id = ? AND id = ? AND version = ?`,
		nullable(n.ParentID), n.Name, n.Size, n.MimeType, n.StoragePath, n.UpdatedAt,
		n.OwnerID, n.ID, n.Version)
	if err != nil {
		return translateError("update node", n.Name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	if affected == 0 {
		existing, err := s.FindNodeByID(ctx, n.OwnerID, n.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return drive.NotFoundError("update node", "node %s not found", n.ID)
		}
		return drive.ConflictError("update node", "node %s was modified concurrently (version %d, stored %d)", n.ID, n.Version, existing.Version)
	}
	n.Version++
	return nil
}

func (s *SQLiteStore) DeleteNode(ctx context.Context, ownerID, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE owner_id = ? AND id = ?`, ownerID, id); err != nil {
		return translateError("delete node", id, err)
	}
	return nil
}

// Permissions

func (s *SQLiteStore) FindPermissionByName(ctx context.Context, name string) (*drive.Permission, error) {
	var p drive.Permission
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description FROM permissions WHERE name = ?`, name).
		Scan(&p.ID, &p.Name, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding permission: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) ListPermissions(ctx context.Context) ([]*drive.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	var perms []*drive.Permission
	for rows.Next() {
		var p drive.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		perms = append(perms, &p)
	}
	return perms, rows.Err()
}

func (s *SQLiteStore) CreatePermission(ctx context.Context, p *drive.Permission) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO permissions (id, name, description) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.Description)
	if err != nil {
		return translateError("create permission", p.Name, err)
	}
	return nil
}

func (s *SQLiteStore) DeletePermission(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = ?`, id); err != nil {
		return translateError("delete permission", id, err)
	}
	return nil
}

// Roles

func (s *SQLiteStore) findRole(ctx context.Context, where string, arg any) (*drive.Role, error) {
	var r drive.Role
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM roles WHERE `+where, arg).Scan(&r.ID, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding role: %w", err)
	}
	perms, err := s.rolePermissions(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.Permissions = perms
	return &r, nil
}

func (s *SQLiteStore) rolePermissions(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.name FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = ? ORDER BY p.name`, roleID)
	if err != nil {
		return nil, fmt.Errorf("loading role permissions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning role permission: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) FindRoleByID(ctx context.Context, id string) (*drive.Role, error) {
	return s.findRole(ctx, "id = ?", id)
}

func (s *SQLiteStore) FindRoleByName(ctx context.Context, name string) (*drive.Role, error) {
	return s.findRole(ctx, "name = ?", name)
}

func (s *SQLiteStore) ListRoles(ctx context.Context) ([]*drive.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	var roles []*drive.Role
	for rows.Next() {
		var r drive.Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, &r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}

	// Permissions are loaded after the cursor is closed; the pool has a
	// single connection.
	for _, r := range roles {
		if r.Permissions, err = s.rolePermissions(ctx, r.ID); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func (s *SQLiteStore) CreateRole(ctx context.Context, r *drive.Role) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO roles (id, name) VALUES (?, ?)`, r.ID, r.Name); err != nil {
		return translateError("create role", r.Name, err)
	}
	if len(r.Permissions) > 0 {
		return s.SetRolePermissions(ctx, r.ID, r.Permissions)
	}
	return nil
}

func (s *SQLiteStore) SetRolePermissions(ctx context.Context, roleID string, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = ?`, roleID); err != nil {
		return fmt.Errorf("clearing role permissions: %w", err)
	}
	for _, name := range names {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO role_permissions (role_id, permission_id)
			 SELECT ?, id FROM permissions WHERE name = ?`, roleID, name)
		if err != nil {
			return translateError("grant permission", name, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM permissions WHERE name = ?`, name).Scan(&exists); err != nil {
				return fmt.Errorf("checking permission %s: %w", name, err)
			}
			if exists == 0 {
				return drive.NotFoundError("grant permission", "permission %s not found", name)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteRole(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id); err != nil {
		return translateError("delete role", id, err)
	}
	return nil
}

func (s *SQLiteStore) CountUsersWithRole(ctx context.Context, roleID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role_id = ?`, roleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users with role: %w", err)
	}
	return n, nil
}

// Users

const userColumns = `id, email, password_hash, role_id, is_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (*drive.User, error) {
	var u drive.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.RoleID, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) findUser(ctx context.Context, where string, arg any) (*drive.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) FindUserByID(ctx context.Context, id string) (*drive.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*drive.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*drive.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*drive.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *drive.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.RoleID, u.IsActive, u.CreatedAt)
	if err != nil {
		return translateError("create user", u.Email, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *drive.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, password_hash = ?, role_id = ?, is_active = ? WHERE id = ?`,
		u.Email, u.PasswordHash, u.RoleID, u.IsActive, u.ID)
	if err != nil {
		return translateError("update user", u.Email, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return drive.NotFoundError("update user", "user %s not found", u.ID)
	}
	return nil
}

// Operations

func (s *SQLiteStore) CreateOperation(ctx context.Context, operation, parameters, ownerID string) (*drive.Operation, error) {
	op := &drive.Operation{
		Operation:  operation,
		Parameters: parameters,
		OwnerID:    ownerID,
		Status:     "running",
		StartedAt:  time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (operation, parameters, owner_id, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		op.Operation, op.Parameters, op.OwnerID, op.Status, op.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	if op.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return op, nil
}

func (s *SQLiteStore) FinishOperation(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return drive.NotFoundError("finish operation", "operation %d not found", id)
	}
	return nil
}

func (s *SQLiteStore) ListOperations(ctx context.Context, limit int) ([]*drive.Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, parameters, owner_id, status, started_at, finished_at
		 FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*drive.Operation
	for rows.Next() {
		var (
			op       drive.Operation
			finished sql.NullTime
		)
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.OwnerID, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

// nullable stores the empty string as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// translateError maps constraint violations to drive error kinds.
func translateError(op, subject string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &drive.Error{Kind: drive.KindConflict, Op: op, Message: fmt.Sprintf("%s already exists", subject), Err: err}
		case sqlite3.ErrConstraintForeignKey:
			return &drive.Error{Kind: drive.KindConflict, Op: op, Message: fmt.Sprintf("%s is still referenced or references a missing record", subject), Err: err}
		}
		if strings.Contains(sqliteErr.Error(), "constraint failed") {
			return &drive.Error{Kind: drive.KindConflict, Op: op, Message: subject, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
