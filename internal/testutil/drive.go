package testutil

import (
	"context"
	"testing"

	"drive-go/internal/bytestore"
	"drive-go/internal/database"
	"drive-go/internal/drive"
)

// PlainHasher stores passwords as "plain:<password>". bcrypt is too slow to
// run once per test user.
type PlainHasher struct{}

func (PlainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (PlainHasher) Compare(hash, password string) error {
	if hash != "plain:"+password {
		return drive.AuthorizationError("compare password", "password mismatch")
	}
	return nil
}

// TestDrive is a fully wired, bootstrapped drive over in-memory stores.
type TestDrive struct {
	Store    *database.SQLiteStore
	Bytes    *bytestore.MemoryStore
	Logger   *CaptureLogger
	Clock    *StubClock
	IDs      *StubIDGenerator
	Paths    drive.PathBuilder
	Resolver *drive.Resolver
	Service  *drive.Service
	Gate     *drive.Gate
	Accounts *drive.Accounts
	Admin    *drive.Admin
}

// Admin credentials created by NewTestDrive.
const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin-password"
)

// NewTestDrive bootstraps a drive with an admin account.
func NewTestDrive(t *testing.T) *TestDrive {
	t.Helper()

	d := &TestDrive{
		Store:  NewTestStore(t),
		Bytes:  NewTestByteStore(),
		Logger: NewCaptureLogger(),
		Clock:  FixedClock(),
		IDs:    NewStubIDGenerator(),
		Paths:  drive.NewPathBuilder(""),
	}
	d.Resolver = drive.NewResolver(d.Store)
	d.Service = drive.NewService(d.Store, d.Bytes, d.Paths, d.Logger, d.Clock, d.IDs)
	d.Gate = drive.NewGate(d.Service, d.Resolver, d.Logger)
	d.Accounts = drive.NewAccounts(d.Store, PlainHasher{}, d.Clock, d.IDs, d.Logger)
	d.Admin = drive.NewAdmin(d.Store, d.Resolver, PlainHasher{}, d.Clock, d.IDs, d.Logger)

	_, err := drive.Bootstrap(context.Background(), d.Store, PlainHasher{}, d.Clock, d.IDs, d.Logger, drive.BootstrapOptions{
		AdminEmail:    AdminEmail,
		AdminPassword: AdminPassword,
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return d
}

// Register creates a user with the default role and returns its caller.
func (d *TestDrive) Register(t *testing.T, email string) *drive.Caller {
	t.Helper()
	ctx := context.Background()
	if _, err := d.Accounts.Register(ctx, email, "password-"+email); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	caller, err := d.Accounts.Authenticate(ctx, email, "password-"+email)
	if err != nil {
		t.Fatalf("authenticate %s: %v", email, err)
	}
	return caller
}

// AdminCaller authenticates the bootstrap admin.
func (d *TestDrive) AdminCaller(t *testing.T) *drive.Caller {
	t.Helper()
	caller, err := d.Accounts.Authenticate(context.Background(), AdminEmail, AdminPassword)
	if err != nil {
		t.Fatalf("authenticate admin: %v", err)
	}
	return caller
}
