package drive_test

import (
	"context"
	"testing"

	"drive-go/internal/drive"
	"drive-go/internal/testutil"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	clock := testutil.FixedClock()
	ids := testutil.NewStubIDGenerator()
	opts := drive.BootstrapOptions{AdminEmail: "root@example.com", AdminPassword: "secret-pass"}

	res, err := drive.Bootstrap(ctx, store, testutil.PlainHasher{}, clock, ids, drive.NewNopLogger(), opts)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if res.PermissionsCreated != len(drive.Vocabulary) || res.RolesCreated != 2 || !res.AdminCreated {
		t.Errorf("first run = %+v", res)
	}

	t.Run("second run changes nothing", func(t *testing.T) {
		res, err := drive.Bootstrap(ctx, store, testutil.PlainHasher{}, clock, ids, drive.NewNopLogger(), opts)
		if err != nil {
			t.Fatalf("Bootstrap() error = %v", err)
		}
		if res.PermissionsCreated != 0 || res.RolesCreated != 0 || res.AdminCreated {
			t.Errorf("second run = %+v", res)
		}

		perms, _ := store.ListPermissions(ctx)
		if len(perms) != len(drive.Vocabulary) {
			t.Errorf("%d permissions, want %d", len(perms), len(drive.Vocabulary))
		}
		roles, _ := store.ListRoles(ctx)
		counts := map[string]int{}
		for _, r := range roles {
			counts[r.Name]++
		}
		if counts[drive.MasterAdminRole] != 1 || counts[drive.DefaultUserRole] != 1 || len(roles) != 2 {
			t.Errorf("roles = %v", counts)
		}
		users, _ := store.ListUsers(ctx)
		if len(users) != 1 {
			t.Errorf("%d users, want 1", len(users))
		}
	})

	t.Run("default role grants", func(t *testing.T) {
		role, err := store.FindRoleByName(ctx, drive.DefaultUserRole)
		if err != nil || role == nil {
			t.Fatalf("FindRoleByName() = %v, %v", role, err)
		}
		if drive.RoleHasCapability(role, drive.CapFileMove) || drive.RoleHasCapability(role, drive.CapFileRename) {
			t.Error("default role should not hold move or rename directly")
		}
		for _, c := range []drive.Capability{drive.CapFileRead, drive.CapFileUpload, drive.CapFileDelete, drive.CapFileDownload, drive.CapFileFullAccess} {
			if !drive.RoleHasCapability(role, c) {
				t.Errorf("default role missing %s", c)
			}
		}
	})

	t.Run("restores a stripped grant", func(t *testing.T) {
		role, _ := store.FindRoleByName(ctx, drive.DefaultUserRole)
		if err := store.SetRolePermissions(ctx, role.ID, []string{"file:read"}); err != nil {
			t.Fatalf("SetRolePermissions() error = %v", err)
		}
		if _, err := drive.Bootstrap(ctx, store, testutil.PlainHasher{}, clock, ids, drive.NewNopLogger(), drive.BootstrapOptions{}); err != nil {
			t.Fatalf("Bootstrap() error = %v", err)
		}
		role, _ = store.FindRoleByName(ctx, drive.DefaultUserRole)
		if !drive.RoleHasCapability(role, drive.CapFileFullAccess) {
			t.Error("grant not restored")
		}
	})
}

func TestBootstrap_WithoutAdmin(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	res, err := drive.Bootstrap(ctx, store, testutil.PlainHasher{}, testutil.FixedClock(), testutil.NewStubIDGenerator(), drive.NewNopLogger(), drive.BootstrapOptions{})
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if res.AdminCreated {
		t.Error("admin created without credentials")
	}
}

func TestBootstrap_InvalidAdminEmail(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	_, err := drive.Bootstrap(ctx, store, testutil.PlainHasher{}, testutil.FixedClock(), testutil.NewStubIDGenerator(), drive.NewNopLogger(),
		drive.BootstrapOptions{AdminEmail: "not-an-email", AdminPassword: "x"})
	if !drive.IsKind(err, drive.KindValidation) {
		t.Errorf("Bootstrap() = %v, want validation", err)
	}
}

func TestBootstrap_Badger(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestBadgerStore(t)
	for i := 0; i < 2; i++ {
		if _, err := drive.Bootstrap(ctx, store, testutil.PlainHasher{}, testutil.FixedClock(), testutil.NewStubIDGenerator(), drive.NewNopLogger(), drive.BootstrapOptions{}); err != nil {
			t.Fatalf("Bootstrap() run %d error = %v", i+1, err)
		}
	}
	roles, err := store.ListRoles(ctx)
	if err != nil || len(roles) != 2 {
		t.Errorf("ListRoles() = %d roles, %v", len(roles), err)
	}
}
