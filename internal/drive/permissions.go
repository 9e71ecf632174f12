package drive

import (
	"context"
	"fmt"
)

// RoleReader is the part of AccessStore the resolver needs.
type RoleReader interface {
	FindRoleByID(ctx context.Context, id string) (*Role, error)
}

// Resolver answers capability checks against the role→permission graph.
// It keeps no state and is safe for concurrent use.
type Resolver struct {
	roles RoleReader
}

func NewResolver(roles RoleReader) *Resolver {
	return &Resolver{roles: roles}
}

// HasCapability reports whether the role grants any of required.
// The master-admin role always passes. An unknown role fails closed with a
// KindNotFound error so callers can answer with a denial rather than crash.
func (r *Resolver) HasCapability(ctx context.Context, roleID string, required ...Capability) (bool, error) {
	role, err := r.roles.FindRoleByID(ctx, roleID)
	if err != nil {
		return false, fmt.Errorf("loading role %s: %w", roleID, err)
	}
	if role == nil {
		return false, NotFoundError("resolve permissions", "role %s not found", roleID)
	}
	return RoleHasCapability(role, required...), nil
}

// RoleHasCapability applies the capability rules to an already loaded role.
func RoleHasCapability(role *Role, required ...Capability) bool {
	if role.Name == MasterAdminRole {
		return true
	}
	granted := make(map[string]struct{}, len(role.Permissions))
	for _, name := range role.Permissions {
		granted[name] = struct{}{}
	}
	for _, c := range required {
		if _, ok := granted[string(c)]; ok {
			return true
		}
	}
	return false
}
