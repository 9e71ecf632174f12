package drive

import (
	"context"
	"fmt"
	"slices"
)

// BootstrapOptions carries the initial admin credentials. Both empty skips
// admin creation.
type BootstrapOptions struct {
	AdminEmail    string
	AdminPassword string
}

// BootstrapResult reports what a bootstrap run created.
type BootstrapResult struct {
	PermissionsCreated int
	RolesCreated       int
	AdminCreated       bool
}

// Bootstrap provisions the permission vocabulary, the master-admin and user
// roles, and the first admin account. Every step is find-or-create against
// the store, so running it again changes nothing.
func Bootstrap(ctx context.Context, store AccessStore, hasher PasswordHasher, clock Clock, idgen IDGenerator, logger Logger, opts BootstrapOptions) (*BootstrapResult, error) {
	res := &BootstrapResult{}

	for _, v := range Vocabulary {
		p, err := store.FindPermissionByName(ctx, v.Capability.String())
		if err != nil {
			return nil, fmt.Errorf("finding permission %s: %w", v.Capability, err)
		}
		if p != nil {
			continue
		}
		p = &Permission{ID: idgen.New(), Name: v.Capability.String(), Description: v.Description}
		if err := store.CreatePermission(ctx, p); err != nil {
			return nil, fmt.Errorf("creating permission %s: %w", v.Capability, err)
		}
		res.PermissionsCreated++
		logger.Info("permission created", "name", p.Name)
	}

	master, created, err := ensureRole(ctx, store, idgen, MasterAdminRole, []Capability{CapMaster})
	if err != nil {
		return nil, err
	}
	if created {
		res.RolesCreated++
		logger.Info("role created", "name", MasterAdminRole)
	}
	if _, created, err = ensureRole(ctx, store, idgen, DefaultUserRole, defaultUserCapabilities); err != nil {
		return nil, err
	}
	if created {
		res.RolesCreated++
		logger.Info("role created", "name", DefaultUserRole)
	}

	if opts.AdminEmail == "" && opts.AdminPassword == "" {
		return res, nil
	}
	n, err := store.CountUsersWithRole(ctx, master.ID)
	if err != nil {
		return nil, fmt.Errorf("counting admins: %w", err)
	}
	if n > 0 {
		return res, nil
	}
	admin, err := createUser(ctx, "bootstrap", store, hasher, clock, idgen, opts.AdminEmail, opts.AdminPassword, master.ID)
	if err != nil {
		return nil, fmt.Errorf("creating admin user: %w", err)
	}
	res.AdminCreated = true
	logger.Info("admin user created", "user", admin.ID, "email", admin.Email)
	return res, nil
}

// ensureRole finds or creates the named role and makes sure it holds at least
// the given grants.
func ensureRole(ctx context.Context, store AccessStore, idgen IDGenerator, name string, grants []Capability) (*Role, bool, error) {
	role, err := store.FindRoleByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("finding role %s: %w", name, err)
	}

	created := false
	if role == nil {
		role = &Role{ID: idgen.New(), Name: name}
		if err := store.CreateRole(ctx, role); err != nil {
			return nil, false, fmt.Errorf("creating role %s: %w", name, err)
		}
		created = true
	}

	want := slices.Clone(role.Permissions)
	for _, g := range grants {
		if !slices.Contains(want, g.String()) {
			want = append(want, g.String())
		}
	}
	if len(want) != len(role.Permissions) {
		if err := store.SetRolePermissions(ctx, role.ID, want); err != nil {
			return nil, false, fmt.Errorf("granting permissions to %s: %w", name, err)
		}
		role.Permissions = want
	}
	return role, created, nil
}
