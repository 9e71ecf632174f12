package drive

import "context"

// TreeStore persists nodes. Every lookup is scoped to an owner; a node owned
// by someone else is indistinguishable from a missing one.
// Find methods return (nil, nil) when nothing matches.
type TreeStore interface {
	// FindNodeByID returns the owner's node with the given id.
	FindNodeByID(ctx context.Context, ownerID, id string) (*Node, error)

	// FindChildren returns the direct children of parentID ("" for the root).
	FindChildren(ctx context.Context, ownerID, parentID string) ([]*Node, error)

	// FindNodeByNameAndParent returns the sibling named name under parentID.
	FindNodeByNameAndParent(ctx context.Context, ownerID, parentID, name string) (*Node, error)

	// FindNodeByStoragePath returns the owner's node stored at storagePath.
	FindNodeByStoragePath(ctx context.Context, ownerID, storagePath string) (*Node, error)

	// AncestorChain returns the ancestors of nodeID ordered from the root down
	// to the immediate parent. A parent cycle is reported as an internal error.
	AncestorChain(ctx context.Context, ownerID, nodeID string) ([]*Node, error)

	// InsertNode stores a new node. Uniqueness violations return KindConflict.
	InsertNode(ctx context.Context, node *Node) error

	// UpdateNode persists name, parent, storage path and size changes.
	// node.Version must match the stored version; on success it is incremented.
	// A stale version returns KindConflict.
	UpdateNode(ctx context.Context, node *Node) error

	// DeleteNode removes a single node record. Children are not touched.
	DeleteNode(ctx context.Context, ownerID, id string) error
}

// AccessStore persists roles, permissions and users.
// Find methods return (nil, nil) when nothing matches.
type AccessStore interface {
	FindPermissionByName(ctx context.Context, name string) (*Permission, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)
	CreatePermission(ctx context.Context, p *Permission) error
	// DeletePermission removes the permission and revokes it from every role.
	DeletePermission(ctx context.Context, id string) error

	FindRoleByID(ctx context.Context, id string) (*Role, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
	CreateRole(ctx context.Context, r *Role) error
	// SetRolePermissions replaces the role's grants with the named permissions.
	SetRolePermissions(ctx context.Context, roleID string, names []string) error
	DeleteRole(ctx context.Context, id string) error
	CountUsersWithRole(ctx context.Context, roleID string) (int, error)

	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
}

// OperationStore is the journal of mutating commands.
type OperationStore interface {
	CreateOperation(ctx context.Context, operation, parameters, ownerID string) (*Operation, error)
	FinishOperation(ctx context.Context, id int64, status string) error
	ListOperations(ctx context.Context, limit int) ([]*Operation, error)
}

// MetadataStore is a backend that provides all metadata concerns.
type MetadataStore interface {
	TreeStore
	AccessStore
	OperationStore

	// CheckMigrations verifies the backend schema is current.
	CheckMigrations() error

	Close() error
}
