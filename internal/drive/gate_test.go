package drive_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"drive-go/internal/drive"
	"drive-go/internal/testutil"
)

func TestGate_AuthenticationRequired(t *testing.T) {
	d := testutil.NewTestDrive(t)
	ctx := context.Background()

	for _, caller := range []*drive.Caller{nil, {RoleID: "x"}} {
		if _, err := d.Gate.List(ctx, caller, ""); !drive.IsKind(err, drive.KindAuthorization) {
			t.Errorf("List(%v) = %v, want authorization", caller, err)
		}
		if _, err := d.Gate.CreateFolder(ctx, caller, "", "A"); !drive.IsKind(err, drive.KindAuthorization) {
			t.Errorf("CreateFolder(%v) = %v, want authorization", caller, err)
		}
	}
}

func TestGate_DefaultUser(t *testing.T) {
	d := testutil.NewTestDrive(t)
	ctx := context.Background()
	alice := d.Register(t, "alice@example.com")

	a, err := d.Gate.CreateFolder(ctx, alice, "", "A")
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	b, err := d.Gate.CreateFolder(ctx, alice, "", "B")
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	f, err := d.Gate.UploadFile(ctx, alice, drive.UploadRequest{
		ParentID: a.ID, Name: "f.txt", Size: 2, Content: strings.NewReader("hi"),
	})
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}

	// The default role has no file:move grant; file:fullaccess covers it.
	moved, err := d.Gate.Move(ctx, alice, f.ID, b.ID)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if moved.ParentID != b.ID {
		t.Errorf("moved parent = %s", moved.ParentID)
	}

	if _, err := d.Gate.Rename(ctx, alice, f.ID, "g.txt"); err != nil {
		t.Errorf("Rename() error = %v", err)
	}
	var buf bytes.Buffer
	if _, err := d.Gate.Download(ctx, alice, "root/"+alice.UserID+"/B/g.txt", &buf); err != nil || buf.String() != "hi" {
		t.Errorf("Download() = %q, %v", buf.String(), err)
	}
	if _, err := d.Gate.Stat(ctx, alice, b.ID); err != nil {
		t.Errorf("Stat() error = %v", err)
	}
	if err := d.Gate.DeleteFile(ctx, alice, f.ID); err != nil {
		t.Errorf("DeleteFile() error = %v", err)
	}
	if n, err := d.Gate.DeleteFolder(ctx, alice, a.ID); err != nil || n != 1 {
		t.Errorf("DeleteFolder() = %d, %v", n, err)
	}
}

func TestGate_OwnerIsolation(t *testing.T) {
	d := testutil.NewTestDrive(t)
	ctx := context.Background()
	alice := d.Register(t, "alice@example.com")
	bob := d.Register(t, "bob@example.com")

	a, err := d.Gate.CreateFolder(ctx, alice, "", "private")
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}

	if _, err := d.Gate.Stat(ctx, bob, a.ID); !drive.IsKind(err, drive.KindNotFound) {
		t.Errorf("bob Stat() = %v, want not found", err)
	}
	if _, err := d.Gate.Rename(ctx, bob, a.ID, "mine"); !drive.IsKind(err, drive.KindNotFound) {
		t.Errorf("bob Rename() = %v, want not found", err)
	}
	if _, err := d.Gate.CreateFolder(ctx, bob, a.ID, "x"); !drive.IsKind(err, drive.KindNotFound) {
		t.Errorf("bob CreateFolder() under alice's folder = %v, want not found", err)
	}
	l, err := d.Gate.List(ctx, bob, "")
	if err != nil || len(l.Children) != 0 {
		t.Errorf("bob sees %d root nodes, err %v", len(l.Children), err)
	}
}

func TestGate_RestrictedRole(t *testing.T) {
	d := testutil.NewTestDrive(t)
	ctx := context.Background()
	admin := d.AdminCaller(t)

	if _, err := d.Admin.CreateRole(ctx, admin, "reader", []string{"file:read"}); err != nil {
		t.Fatalf("CreateRole() error = %v", err)
	}
	if _, err := d.Admin.CreateUser(ctx, admin, "reader@example.com", "reader-pass", "reader"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	reader, err := d.Accounts.Authenticate(ctx, "reader@example.com", "reader-pass")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	if _, err := d.Gate.List(ctx, reader, ""); err != nil {
		t.Errorf("List() error = %v", err)
	}
	folder, err := d.Gate.CreateFolder(ctx, reader, "", "notes")
	if err != nil {
		t.Fatalf("CreateFolder() needs only authentication, got %v", err)
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"upload", func() error {
			_, err := d.Gate.UploadFile(ctx, reader, drive.UploadRequest{Name: "a", Content: strings.NewReader("")})
			return err
		}},
		{"rename", func() error { _, err := d.Gate.Rename(ctx, reader, folder.ID, "x"); return err }},
		{"move", func() error { _, err := d.Gate.Move(ctx, reader, folder.ID, ""); return err }},
		{"delete file", func() error { return d.Gate.DeleteFile(ctx, reader, folder.ID) }},
		{"download", func() error {
			_, err := d.Gate.Download(ctx, reader, folder.StoragePath, &bytes.Buffer{})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !drive.IsKind(err, drive.KindAuthorization) {
				t.Errorf("%s error = %v, want authorization", tt.name, err)
			}
		})
	}
	if d.Logger.Count("WARN") < len(tests) {
		t.Errorf("denials not logged: %d warnings", d.Logger.Count("WARN"))
	}
}

func TestGate_UnknownRoleFailsClosed(t *testing.T) {
	d := testutil.NewTestDrive(t)
	ghost := &drive.Caller{UserID: "u-ghost", RoleID: "no-such-role"}
	if _, err := d.Gate.List(context.Background(), ghost, ""); !drive.IsKind(err, drive.KindAuthorization) {
		t.Errorf("List() = %v, want authorization", err)
	}
}

func TestGate_MasterAdmin(t *testing.T) {
	d := testutil.NewTestDrive(t)
	ctx := context.Background()
	admin := d.AdminCaller(t)

	f, err := d.Gate.UploadFile(ctx, admin, drive.UploadRequest{Name: "a.txt", Size: 1, Content: strings.NewReader("a")})
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	dir, err := d.Gate.CreateFolder(ctx, admin, "", "dir")
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	if _, err := d.Gate.Move(ctx, admin, f.ID, dir.ID); err != nil {
		t.Errorf("Move() error = %v", err)
	}
}
