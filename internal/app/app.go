package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"drive-go/internal/bytestore"
	"drive-go/internal/config"
	"drive-go/internal/crypto"
	"drive-go/internal/database"
	"drive-go/internal/drive"
	"drive-go/internal/encryption"
	"drive-go/internal/fs"
)

// DriveApp is the application layer between the CLI and the drive packages.
// It constructs all dependencies from config, exposes high-level operations
// that address nodes by slash-separated remote paths, journals mutating
// commands, and releases resources on Close.
type DriveApp struct {
	cfg       *config.Config
	store     drive.MetadataStore
	bytes     drive.ByteStore
	encrypted *bytestore.EncryptedStore
	encryptor drive.Encryptor
	fsys      drive.LocalFilesystem
	logger    drive.Logger
	resolver  *drive.Resolver
	service   *drive.Service
	gate      *drive.Gate
	accounts  *drive.Accounts
	admin     *drive.Admin
	caller    *drive.Caller
	entry     *JournalEntry
	logCloser io.Closer
}

// NewDriveApp creates a fully wired DriveApp from the given config.
// operation identifies the CLI command being run (e.g. "Upload", "Move").
// The caller must call Close when done.
func NewDriveApp(ctx context.Context, cfg *config.Config, operation string) (*DriveApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logCloser, err := newLogger(cfg.Log, cfg.LogDir, opID, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	store, err := OpenMetadataStore(cfg)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("creating metadata store: %w", err)
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		logCloser.Close()
		return nil, fmt.Errorf("database schema out of date (run 'drive db migrate'): %w", err)
	}

	a, err := newDriveApp(ctx, cfg, store, logger, operation)
	if err != nil {
		store.Close()
		logCloser.Close()
		return nil, err
	}
	a.logCloser = logCloser
	return a, nil
}

// newDriveApp wires everything above the metadata store. The store is owned
// by the returned app.
func newDriveApp(ctx context.Context, cfg *config.Config, store drive.MetadataStore, logger drive.Logger, operation string) (*DriveApp, error) {
	bytes, err := bytestore.NewByteStoreFromConfig(ctx, cfg.ByteStore)
	if err != nil {
		return nil, fmt.Errorf("creating byte store: %w", err)
	}
	if err := bytes.ValidateSetup(ctx); err != nil {
		return nil, fmt.Errorf("byte store not usable: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	var encrypted *bytestore.EncryptedStore
	if enc != nil {
		encrypted = bytestore.NewEncryptedStore(bytes, enc, "")
		bytes = encrypted
	}

	clock := drive.RealClock{}
	idgen := drive.UUIDGenerator{}
	hasher := crypto.NewBcryptHasher(0)
	resolver := drive.NewResolver(store)
	service := drive.NewService(store, bytes, drive.NewPathBuilder(cfg.StorageRoot), logger, clock, idgen)

	return &DriveApp{
		cfg:       cfg,
		store:     store,
		bytes:     bytes,
		encrypted: encrypted,
		encryptor: enc,
		fsys:      fs.NewOSFilesystem(cfg.Filesystem.Ignore),
		logger:    logger,
		resolver:  resolver,
		service:   service,
		gate:      drive.NewGate(service, resolver, logger),
		accounts:  drive.NewAccounts(store, hasher, clock, idgen, logger),
		admin:     drive.NewAdmin(store, resolver, hasher, clock, idgen, logger),
		entry:     NewJournalEntry(operation, ""),
	}, nil
}

// OpenMetadataStore opens the configured metadata store, creating its data
// directory when needed. The schema is not checked.
func OpenMetadataStore(cfg *config.Config) (drive.MetadataStore, error) {
	if cfg.Database.Type != "memory" {
		if err := os.MkdirAll(cfg.Database.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	return database.NewMetadataStoreFromConfig(cfg.Database)
}

// mutate persists the journal entry on behalf of the current caller, runs
// fn, and marks the entry failed if fn fails.
func (a *DriveApp) mutate(ctx context.Context, parameters string, fn func() error) error {
	if a.entry.Parameters == "" {
		a.entry.Parameters = parameters
	}
	ownerID := ""
	if a.caller != nil {
		ownerID = a.caller.UserID
	}
	if err := a.entry.Persist(ctx, a.store, ownerID); err != nil {
		return err
	}
	if err := fn(); err != nil {
		a.entry.Fail()
		return err
	}
	return nil
}

// Login authenticates creds and makes them the caller for later operations.
func (a *DriveApp) Login(ctx context.Context, creds Credentials) error {
	caller, err := a.accounts.Authenticate(ctx, creds.Email, creds.Password)
	if err != nil {
		return err
	}
	a.caller = caller
	a.logger.Debug("logged in", "user", caller.UserID)
	return nil
}

// Caller returns the logged in identity, or nil.
func (a *DriveApp) Caller() *drive.Caller {
	return a.caller
}

// Bootstrap provisions permissions, roles and, when admin is complete, the
// first admin account.
func (a *DriveApp) Bootstrap(ctx context.Context, admin Credentials) (*drive.BootstrapResult, error) {
	var res *drive.BootstrapResult
	err := a.mutate(ctx, admin.Email, func() error {
		var err error
		res, err = drive.Bootstrap(ctx, a.store, crypto.NewBcryptHasher(0), drive.RealClock{}, drive.UUIDGenerator{}, a.logger,
			drive.BootstrapOptions{AdminEmail: admin.Email, AdminPassword: admin.Password})
		return err
	})
	return res, err
}

// Register creates an account with the default user role.
func (a *DriveApp) Register(ctx context.Context, creds Credentials) (*drive.User, error) {
	var user *drive.User
	err := a.mutate(ctx, creds.Email, func() error {
		var err error
		user, err = a.accounts.Register(ctx, creds.Email, creds.Password)
		return err
	})
	return user, err
}

// Admin exposes role, permission and user management.
func (a *DriveApp) Admin() *drive.Admin {
	return a.admin
}

// History returns the most recent journal entries. Administrators see every
// owner's entries; everyone else sees their own.
func (a *DriveApp) History(ctx context.Context, limit int) ([]*drive.Operation, error) {
	if a.caller == nil {
		return nil, drive.AuthorizationError("history", "authentication required")
	}
	isAdmin, err := a.resolver.HasCapability(ctx, a.caller.RoleID, drive.CapMaster)
	if err != nil {
		return nil, err
	}
	ops, err := a.store.ListOperations(ctx, limit)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return ops, nil
	}
	own := ops[:0]
	for _, op := range ops {
		if op.OwnerID == a.caller.UserID {
			own = append(own, op)
		}
	}
	return own, nil
}

// EncryptionEnabled reports whether blobs are encrypted at rest.
func (a *DriveApp) EncryptionEnabled() bool {
	return a.encryptor != nil
}

// Unlock opens the private key so encrypted blobs can be downloaded.
func (a *DriveApp) Unlock(passphrase string) error {
	if a.encrypted == nil {
		return nil
	}
	return a.encrypted.Unlock(passphrase)
}

// SetupKeys generates the encryption key pair.
func (a *DriveApp) SetupKeys(passphrase string) error {
	if a.encryptor == nil {
		return drive.ValidationError("setup keys", "encryption is disabled in the config")
	}
	if err := a.encryptor.Setup(passphrase); err != nil {
		return err
	}
	a.logger.Info("encryption keys created", "type", a.cfg.Encryption.Type)
	return nil
}

type passphraseChanger interface {
	ChangePassphrase(oldPassphrase, newPassphrase string) error
}

// ChangePassphrase re-seals the private key under a new passphrase.
func (a *DriveApp) ChangePassphrase(oldPassphrase, newPassphrase string) error {
	pc, ok := a.encryptor.(passphraseChanger)
	if !ok {
		return drive.ValidationError("change passphrase", "encryption type %q has no passphrase", a.cfg.Encryption.Type)
	}
	if err := pc.ChangePassphrase(oldPassphrase, newPassphrase); err != nil {
		return err
	}
	a.logger.Info("encryption passphrase changed")
	return nil
}

// Close finalizes the journal entry and closes all resources.
func (a *DriveApp) Close() error {
	var firstErr error

	if err := a.entry.Finish(context.Background(), a.store); err != nil {
		firstErr = err
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing metadata store: %w", err)
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
	return firstErr
}

// Fail marks the current command as failed in the journal.
func (a *DriveApp) Fail() {
	a.entry.Fail()
}
