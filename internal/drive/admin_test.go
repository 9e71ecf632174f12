package drive_test

import (
	"context"
	"testing"

	"drive-go/internal/drive"
	"drive-go/internal/testutil"
)

func TestAdmin_RequiresMaster(t *testing.T) {
	ctx := context.Background()
	d := testutil.NewTestDrive(t)
	user := d.Register(t, "user@example.com")

	if _, err := d.Admin.ListUsers(ctx, user); !drive.IsKind(err, drive.KindAuthorization) {
		t.Errorf("ListUsers() = %v, want authorization", err)
	}
	if _, err := d.Admin.CreateRole(ctx, user, "x", nil); !drive.IsKind(err, drive.KindAuthorization) {
		t.Errorf("CreateRole() = %v, want authorization", err)
	}
	if _, err := d.Admin.ListRoles(ctx, nil); !drive.IsKind(err, drive.KindAuthorization) {
		t.Errorf("ListRoles(nil) = %v, want authorization", err)
	}
}

func TestAdmin_Permissions(t *testing.T) {
	ctx := context.Background()
	d := testutil.NewTestDrive(t)
	admin := d.AdminCaller(t)

	p, err := d.Admin.CreatePermission(ctx, admin, "file:share", "Share files")
	if err != nil {
		t.Fatalf("CreatePermission() error = %v", err)
	}
	if p.Name != "file:share" {
		t.Errorf("permission = %+v", p)
	}
	if _, err := d.Admin.CreatePermission(ctx, admin, "file:share", ""); !drive.IsKind(err, drive.KindConflict) {
		t.Errorf("duplicate = %v, want conflict", err)
	}
	if _, err := d.Admin.CreatePermission(ctx, admin, "", ""); !drive.IsKind(err, drive.KindValidation) {
		t.Errorf("empty name = %v, want validation", err)
	}

	role, err := d.Admin.CreateRole(ctx, admin, "sharer", []string{"file:share", "file:read"})
	if err != nil {
		t.Fatalf("CreateRole() error = %v", err)
	}
	if err := d.Admin.DeletePermission(ctx, admin, "file:share"); err != nil {
		t.Fatalf("DeletePermission() error = %v", err)
	}
	got, _ := d.Store.FindRoleByID(ctx, role.ID)
	if len(got.Permissions) != 1 || got.Permissions[0] != "file:read" {
		t.Errorf("role still holds %v", got.Permissions)
	}

	if err := d.Admin.DeletePermission(ctx, admin, drive.CapMaster.String()); !drive.IsKind(err, drive.KindConflict) {
		t.Errorf("deleting master = %v, want conflict", err)
	}
	if err := d.Admin.DeletePermission(ctx, admin, "nope"); !drive.IsKind(err, drive.KindNotFound) {
		t.Errorf("deleting missing = %v, want not found", err)
	}
	perms, err := d.Admin.ListPermissions(ctx, admin)
	if err != nil || len(perms) != len(drive.Vocabulary) {
		t.Errorf("ListPermissions() = %d, %v", len(perms), err)
	}
}

func TestAdmin_Roles(t *testing.T) {
	ctx := context.Background()
	d := testutil.NewTestDrive(t)
	admin := d.AdminCaller(t)

	if _, err := d.Admin.CreateRole(ctx, admin, "bad", []string{"no:such"}); !drive.IsKind(err, drive.KindNotFound) {
		t.Errorf("unknown permission = %v, want not found", err)
	}
	if _, err := d.Admin.CreateRole(ctx, admin, drive.DefaultUserRole, nil); !drive.IsKind(err, drive.KindConflict) {
		t.Errorf("duplicate role = %v, want conflict", err)
	}

	if _, err := d.Admin.CreateRole(ctx, admin, "mover", []string{"file:read"}); err != nil {
		t.Fatalf("CreateRole() error = %v", err)
	}
	role, err := d.Admin.SetRolePermissions(ctx, admin, "mover", []string{"file:read", "file:move"})
	if err != nil {
		t.Fatalf("SetRolePermissions() error = %v", err)
	}
	if !drive.RoleHasCapability(role, drive.CapFileMove) {
		t.Error("grant not applied")
	}

	if _, err := d.Admin.CreateUser(ctx, admin, "m@example.com", "pw", "mover"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := d.Admin.DeleteRole(ctx, admin, "mover"); !drive.IsKind(err, drive.KindConflict) {
		t.Errorf("deleting assigned role = %v, want conflict", err)
	}
	if err := d.Admin.DeleteRole(ctx, admin, drive.MasterAdminRole); !drive.IsKind(err, drive.KindConflict) {
		t.Errorf("deleting master-admin = %v, want conflict", err)
	}

	if _, err := d.Admin.SetUserRole(ctx, admin, "m@example.com", drive.DefaultUserRole); err != nil {
		t.Fatalf("SetUserRole() error = %v", err)
	}
	if err := d.Admin.DeleteRole(ctx, admin, "mover"); err != nil {
		t.Errorf("DeleteRole() error = %v", err)
	}
	roles, _ := d.Admin.ListRoles(ctx, admin)
	if len(roles) != 2 {
		t.Errorf("%d roles left, want 2", len(roles))
	}
}

func TestAdmin_Users(t *testing.T) {
	ctx := context.Background()
	d := testutil.NewTestDrive(t)
	admin := d.AdminCaller(t)
	d.Register(t, "frank@example.com")

	if _, err := d.Admin.SetUserActive(ctx, admin, testutil.AdminEmail, false); !drive.IsKind(err, drive.KindConflict) {
		t.Errorf("self-deactivation = %v, want conflict", err)
	}
	if _, err := d.Admin.SetUserRole(ctx, admin, "ghost@example.com", drive.DefaultUserRole); !drive.IsKind(err, drive.KindNotFound) {
		t.Errorf("missing user = %v, want not found", err)
	}
	if _, err := d.Admin.SetUserRole(ctx, admin, "frank@example.com", "nope"); !drive.IsKind(err, drive.KindNotFound) {
		t.Errorf("missing role = %v, want not found", err)
	}

	u, err := d.Admin.SetUserRole(ctx, admin, "frank@example.com", drive.MasterAdminRole)
	if err != nil {
		t.Fatalf("SetUserRole() error = %v", err)
	}
	frank, err := d.Accounts.Authenticate(ctx, "frank@example.com", "password-frank@example.com")
	if err != nil || frank.RoleID != u.RoleID {
		t.Fatalf("Authenticate() = %+v, %v", frank, err)
	}
	if _, err := d.Admin.ListUsers(ctx, frank); err != nil {
		t.Errorf("promoted user ListUsers() error = %v", err)
	}

	users, err := d.Admin.ListUsers(ctx, admin)
	if err != nil || len(users) != 2 {
		t.Errorf("ListUsers() = %d, %v", len(users), err)
	}
}
