package drive

import (
	"context"
	"fmt"
)

// Admin manages roles, permissions and users. Every method requires the
// master:permission capability (which the master-admin role always has).
type Admin struct {
	store    AccessStore
	resolver *Resolver
	hasher   PasswordHasher
	clock    Clock
	idgen    IDGenerator
	logger   Logger
}

func NewAdmin(store AccessStore, resolver *Resolver, hasher PasswordHasher, clock Clock, idgen IDGenerator, logger Logger) *Admin {
	return &Admin{store: store, resolver: resolver, hasher: hasher, clock: clock, idgen: idgen, logger: logger}
}

func (a *Admin) authorize(ctx context.Context, op string, caller *Caller) error {
	if caller == nil || caller.UserID == "" {
		return AuthorizationError(op, "authentication required")
	}
	ok, err := a.resolver.HasCapability(ctx, caller.RoleID, CapMaster)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return &Error{Kind: KindAuthorization, Op: op, Message: "role not found", Err: err}
		}
		return err
	}
	if !ok {
		return AuthorizationError(op, "admin access required")
	}
	return nil
}

func (a *Admin) ListPermissions(ctx context.Context, caller *Caller) ([]*Permission, error) {
	if err := a.authorize(ctx, "list permissions", caller); err != nil {
		return nil, err
	}
	return a.store.ListPermissions(ctx)
}

func (a *Admin) CreatePermission(ctx context.Context, caller *Caller, name, description string) (*Permission, error) {
	const op = "create permission"
	if err := a.authorize(ctx, op, caller); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ValidationError(op, "name is required")
	}
	existing, err := a.store.FindPermissionByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking permission %s: %w", name, err)
	}
	if existing != nil {
		return nil, ConflictError(op, "permission %s already exists", name)
	}
	p := &Permission{ID: a.idgen.New(), Name: name, Description: description}
	if err := a.store.CreatePermission(ctx, p); err != nil {
		return nil, fmt.Errorf("creating permission %s: %w", name, err)
	}
	a.logger.Info("permission created", "name", name, "by", caller.UserID)
	return p, nil
}

// DeletePermission removes a permission and revokes it from all roles.
// master:permission itself cannot be removed.
func (a *Admin) DeletePermission(ctx context.Context, caller *Caller, name string) error {
	const op = "delete permission"
	if err := a.authorize(ctx, op, caller); err != nil {
		return err
	}
	if name == CapMaster.String() {
		return ConflictError(op, "%s cannot be deleted", name)
	}
	p, err := a.store.FindPermissionByName(ctx, name)
	if err != nil {
		return fmt.Errorf("finding permission %s: %w", name, err)
	}
	if p == nil {
		return NotFoundError(op, "permission %s not found", name)
	}
	if err := a.store.DeletePermission(ctx, p.ID); err != nil {
		return fmt.Errorf("deleting permission %s: %w", name, err)
	}
	a.logger.Info("permission deleted", "name", name, "by", caller.UserID)
	return nil
}

func (a *Admin) ListRoles(ctx context.Context, caller *Caller) ([]*Role, error) {
	if err := a.authorize(ctx, "list roles", caller); err != nil {
		return nil, err
	}
	return a.store.ListRoles(ctx)
}

// CreateRole creates a role holding the named permissions, which must exist.
func (a *Admin) CreateRole(ctx context.Context, caller *Caller, name string, permissions []string) (*Role, error) {
	const op = "create role"
	if err := a.authorize(ctx, op, caller); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ValidationError(op, "name is required")
	}
	existing, err := a.store.FindRoleByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking role %s: %w", name, err)
	}
	if existing != nil {
		return nil, ConflictError(op, "role %s already exists", name)
	}
	if err := a.checkPermissionsExist(ctx, op, permissions); err != nil {
		return nil, err
	}

	role := &Role{ID: a.idgen.New(), Name: name}
	if err := a.store.CreateRole(ctx, role); err != nil {
		return nil, fmt.Errorf("creating role %s: %w", name, err)
	}
	if len(permissions) > 0 {
		if err := a.store.SetRolePermissions(ctx, role.ID, permissions); err != nil {
			return nil, fmt.Errorf("granting permissions to %s: %w", name, err)
		}
		role.Permissions = permissions
	}
	a.logger.Info("role created", "name", name, "by", caller.UserID)
	return role, nil
}

// SetRolePermissions replaces the grants of the named role.
func (a *Admin) SetRolePermissions(ctx context.Context, caller *Caller, roleName string, permissions []string) (*Role, error) {
	const op = "set role permissions"
	if err := a.authorize(ctx, op, caller); err != nil {
		return nil, err
	}
	role, err := a.findRole(ctx, op, roleName)
	if err != nil {
		return nil, err
	}
	if err := a.checkPermissionsExist(ctx, op, permissions); err != nil {
		return nil, err
	}
	if err := a.store.SetRolePermissions(ctx, role.ID, permissions); err != nil {
		return nil, fmt.Errorf("granting permissions to %s: %w", roleName, err)
	}
	role.Permissions = permissions
	a.logger.Info("role permissions set", "name", roleName, "permissions", permissions, "by", caller.UserID)
	return role, nil
}

// DeleteRole refuses the master-admin role and any role still assigned to a user.
func (a *Admin) DeleteRole(ctx context.Context, caller *Caller, roleName string) error {
	const op = "delete role"
	if err := a.authorize(ctx, op, caller); err != nil {
		return err
	}
	if roleName == MasterAdminRole {
		return ConflictError(op, "the %s role cannot be deleted", MasterAdminRole)
	}
	role, err := a.findRole(ctx, op, roleName)
	if err != nil {
		return err
	}
	n, err := a.store.CountUsersWithRole(ctx, role.ID)
	if err != nil {
		return fmt.Errorf("counting users of %s: %w", roleName, err)
	}
	if n > 0 {
		return ConflictError(op, "role %s is assigned to %d user(s)", roleName, n)
	}
	if err := a.store.DeleteRole(ctx, role.ID); err != nil {
		return fmt.Errorf("deleting role %s: %w", roleName, err)
	}
	a.logger.Info("role deleted", "name", roleName, "by", caller.UserID)
	return nil
}

func (a *Admin) ListUsers(ctx context.Context, caller *Caller) ([]*User, error) {
	if err := a.authorize(ctx, "list users", caller); err != nil {
		return nil, err
	}
	return a.store.ListUsers(ctx)
}

// SetUserRole assigns the named role to the user with the given email.
func (a *Admin) SetUserRole(ctx context.Context, caller *Caller, email, roleName string) (*User, error) {
	const op = "set user role"
	if err := a.authorize(ctx, op, caller); err != nil {
		return nil, err
	}
	role, err := a.findRole(ctx, op, roleName)
	if err != nil {
		return nil, err
	}
	user, err := a.findUser(ctx, op, email)
	if err != nil {
		return nil, err
	}
	user.RoleID = role.ID
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user %s: %w", email, err)
	}
	a.logger.Info("user role set", "user", user.ID, "role", roleName, "by", caller.UserID)
	return user, nil
}

// SetUserActive enables or disables an account. Callers cannot disable themselves.
func (a *Admin) SetUserActive(ctx context.Context, caller *Caller, email string, active bool) (*User, error) {
	const op = "set user status"
	if err := a.authorize(ctx, op, caller); err != nil {
		return nil, err
	}
	user, err := a.findUser(ctx, op, email)
	if err != nil {
		return nil, err
	}
	if user.ID == caller.UserID && !active {
		return nil, ConflictError(op, "cannot deactivate your own account")
	}
	user.IsActive = active
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user %s: %w", email, err)
	}
	a.logger.Info("user status set", "user", user.ID, "active", active, "by", caller.UserID)
	return user, nil
}

// CreateUser creates an account with the named role.
func (a *Admin) CreateUser(ctx context.Context, caller *Caller, email, password, roleName string) (*User, error) {
	const op = "create user"
	if err := a.authorize(ctx, op, caller); err != nil {
		return nil, err
	}
	role, err := a.findRole(ctx, op, roleName)
	if err != nil {
		return nil, err
	}
	user, err := createUser(ctx, op, a.store, a.hasher, a.clock, a.idgen, email, password, role.ID)
	if err != nil {
		return nil, err
	}
	a.logger.Info("user created", "user", user.ID, "role", roleName, "by", caller.UserID)
	return user, nil
}

func (a *Admin) findRole(ctx context.Context, op, name string) (*Role, error) {
	role, err := a.store.FindRoleByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("finding role %s: %w", name, err)
	}
	if role == nil {
		return nil, NotFoundError(op, "role %s not found", name)
	}
	return role, nil
}

func (a *Admin) findUser(ctx context.Context, op, email string) (*User, error) {
	user, err := a.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("finding user %s: %w", email, err)
	}
	if user == nil {
		return nil, NotFoundError(op, "user %s not found", email)
	}
	return user, nil
}

func (a *Admin) checkPermissionsExist(ctx context.Context, op string, names []string) error {
	for _, name := range names {
		p, err := a.store.FindPermissionByName(ctx, name)
		if err != nil {
			return fmt.Errorf("finding permission %s: %w", name, err)
		}
		if p == nil {
			return NotFoundError(op, "permission %s not found", name)
		}
	}
	return nil
}
