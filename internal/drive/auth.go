package drive

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Accounts authenticates and registers users.
type Accounts struct {
	store  AccessStore
	hasher PasswordHasher
	clock  Clock
	idgen  IDGenerator
	logger Logger
}

func NewAccounts(store AccessStore, hasher PasswordHasher, clock Clock, idgen IDGenerator, logger Logger) *Accounts {
	return &Accounts{store: store, hasher: hasher, clock: clock, idgen: idgen, logger: logger}
}

// Authenticate checks the credentials and returns the caller identity.
// Unknown emails, wrong passwords and inactive accounts are all
// KindAuthorization with the same message.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*Caller, error) {
	const op = "authenticate"

	user, err := a.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil || a.hasher.Compare(user.PasswordHash, password) != nil {
		return nil, AuthorizationError(op, "invalid credentials")
	}
	if !user.IsActive {
		a.logger.Warn("inactive account rejected", "user", user.ID)
		return nil, AuthorizationError(op, "account is inactive")
	}
	return &Caller{UserID: user.ID, RoleID: user.RoleID}, nil
}

// Register creates an active account with the default user role.
func (a *Accounts) Register(ctx context.Context, email, password string) (*User, error) {
	const op = "register"

	role, err := a.store.FindRoleByName(ctx, DefaultUserRole)
	if err != nil {
		return nil, fmt.Errorf("finding default role: %w", err)
	}
	if role == nil {
		return nil, NotFoundError(op, "role %q not provisioned; run bootstrap", DefaultUserRole)
	}
	return createUser(ctx, op, a.store, a.hasher, a.clock, a.idgen, email, password, role.ID)
}

func createUser(ctx context.Context, op string, store AccessStore, hasher PasswordHasher, clock Clock, idgen IDGenerator, email, password, roleID string) (*User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ValidationError(op, "invalid email %q", email)
	}
	if password == "" {
		return nil, ValidationError(op, "password is required")
	}
	existing, err := store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking for existing user: %w", err)
	}
	if existing != nil {
		return nil, ConflictError(op, "user %s already exists", email)
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user := &User{
		ID:           idgen.New(),
		Email:        email,
		PasswordHash: hash,
		RoleID:       roleID,
		IsActive:     true,
		CreatedAt:    clock.Now(),
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
