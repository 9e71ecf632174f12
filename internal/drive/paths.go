package drive

import (
	"path"
	"sync"

	"github.com/go-playground/validator/v10"
)

// DefaultStorageRoot is the top-level directory of every owner's tree in the
// byte store.
const DefaultStorageRoot = "root"

// PathBuilder maps a node's lineage to its storage path. It performs no I/O.
type PathBuilder struct {
	StorageRoot string
}

// NewPathBuilder returns a PathBuilder rooted at storageRoot, or at
// DefaultStorageRoot when storageRoot is empty.
func NewPathBuilder(storageRoot string) PathBuilder {
	if storageRoot == "" {
		storageRoot = DefaultStorageRoot
	}
	return PathBuilder{StorageRoot: storageRoot}
}

// RootPath returns <storageRoot>/<ownerID>.
func (b PathBuilder) RootPath(ownerID string) string {
	return path.Join(b.StorageRoot, ownerID)
}

// Build returns the storage path of a child named name under parent, or under
// the owner's root when parent is nil.
func (b PathBuilder) Build(ownerID string, parent *Node, name string) string {
	if parent == nil {
		return path.Join(b.RootPath(ownerID), name)
	}
	return path.Join(parent.StoragePath, name)
}

var (
	nameValidate     *validator.Validate
	nameValidateOnce sync.Once
)

func getNameValidator() *validator.Validate {
	nameValidateOnce.Do(func() {
		nameValidate = validator.New()
	})
	return nameValidate
}

// ValidateName checks that name can be used as a single path element.
func ValidateName(op, name string) error {
	if name == "" {
		return ValidationError(op, "name is required")
	}
	if name == "." || name == ".." {
		return ValidationError(op, "name %q is reserved", name)
	}
	if err := getNameValidator().Var(name, "max=255,excludesall=/\\\x00"); err != nil {
		return ValidationError(op, "invalid name %q: must be at most 255 characters without '/', '\\' or NUL", name)
	}
	return nil
}
