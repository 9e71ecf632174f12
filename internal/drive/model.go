package drive

import "time"

// FolderMimeType is the MimeType recorded on every folder node.
const FolderMimeType = "folder"

// Node is a file or folder in an owner's tree.
// ParentID is empty for nodes at the owner's root.
type Node struct {
	ID          string
	Name        string
	IsFolder    bool
	Size        int64
	MimeType    string
	StoragePath string
	OwnerID     string
	ParentID    string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsRoot reports whether the node sits directly under the owner's root.
func (n *Node) IsRoot() bool { return n.ParentID == "" }

// Listing is the result of listing a folder (or the owner's root).
type Listing struct {
	CurrentFolder *Node // nil at the root
	Children      []*Node
	Breadcrumbs   []*Node // root-most first, ending with CurrentFolder
}

// Permission is a named capability token that can be granted to roles.
type Permission struct {
	ID          string
	Name        string
	Description string
}

// Role groups permission names. The master-admin role bypasses all checks.
type Role struct {
	ID          string
	Name        string
	Permissions []string
}

// User is an account that owns nodes and acts through a role.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	RoleID       string
	IsActive     bool
	CreatedAt    time.Time
}

// Caller is an authenticated identity. Its UserID is also the owner scope
// for every tree operation it performs.
type Caller struct {
	UserID string
	RoleID string
}

// Operation is a journal entry for a mutating command.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	OwnerID    string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}
