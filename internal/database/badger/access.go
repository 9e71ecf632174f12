package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	badger "github.com/dgraph-io/badger/v4"

	"drive-go/internal/drive"
)

// Permissions

func (s *Store) FindPermissionByName(ctx context.Context, name string) (*drive.Permission, error) {
	var p *drive.Permission
	err := s.db.View(func(txn *badger.Txn) error {
		var found drive.Permission
		ok, err := getJSON(txn, keyPermission(name), &found)
		if ok {
			p = &found
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding permission: %w", err)
	}
	return p, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]*drive.Permission, error) {
	var perms []*drive.Permission
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(prefixPermission), func(item *badger.Item) error {
			var p drive.Permission
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &p) }); err != nil {
				return err
			}
			perms = append(perms, &p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	return perms, nil
}

func (s *Store) CreatePermission(ctx context.Context, p *drive.Permission) error {
	const op = "create permission"
	return s.update(op, func(txn *badger.Txn) error {
		if ok, err := exists(txn, keyPermission(p.Name)); err != nil {
			return err
		} else if ok {
			return drive.ConflictError(op, "%s already exists", p.Name)
		}
		if ok, err := exists(txn, keyPermID(p.ID)); err != nil {
			return err
		} else if ok {
			return drive.ConflictError(op, "permission id %s already exists", p.ID)
		}
		if err := txn.Set(keyPermID(p.ID), []byte(p.Name)); err != nil {
			return err
		}
		return setJSON(txn, keyPermission(p.Name), p)
	})
}

// DeletePermission also strips the permission from every role.
func (s *Store) DeletePermission(ctx context.Context, id string) error {
	return s.update("delete permission", func(txn *badger.Txn) error {
		name, err := getString(txn, keyPermID(id))
		if err != nil || name == "" {
			return err
		}
		roles, err := allRoles(txn)
		if err != nil {
			return err
		}
		for _, r := range roles {
			if i := slices.Index(r.Permissions, name); i >= 0 {
				r.Permissions = slices.Delete(r.Permissions, i, i+1)
				if err := setJSON(txn, keyRole(r.ID), r); err != nil {
					return err
				}
			}
		}
		if err := txn.Delete(keyPermission(name)); err != nil {
			return err
		}
		return txn.Delete(keyPermID(id))
	})
}

// Roles

func findRole(txn *badger.Txn, id string) (*drive.Role, error) {
	var r drive.Role
	ok, err := getJSON(txn, keyRole(id), &r)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

func allRoles(txn *badger.Txn) ([]*drive.Role, error) {
	var ids []string
	err := scanPrefix(txn, []byte(prefixRoleName), func(item *badger.Item) error {
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		ids = append(ids, string(id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	roles := make([]*drive.Role, 0, len(ids))
	for _, id := range ids {
		r, err := findRole(txn, id)
		if err != nil {
			return nil, err
		}
		if r != nil {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

func (s *Store) FindRoleByID(ctx context.Context, id string) (*drive.Role, error) {
	var r *drive.Role
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		r, err = findRole(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding role: %w", err)
	}
	return r, nil
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*drive.Role, error) {
	var r *drive.Role
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, keyRoleName(name))
		if err != nil || id == "" {
			return err
		}
		r, err = findRole(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding role: %w", err)
	}
	return r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]*drive.Role, error) {
	var roles []*drive.Role
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		roles, err = allRoles(txn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	return roles, nil
}

func (s *Store) CreateRole(ctx context.Context, r *drive.Role) error {
	const op = "create role"
	return s.update(op, func(txn *badger.Txn) error {
		if ok, err := exists(txn, keyRoleName(r.Name)); err != nil {
			return err
		} else if ok {
			return drive.ConflictError(op, "%s already exists", r.Name)
		}
		if ok, err := exists(txn, keyRole(r.ID)); err != nil {
			return err
		} else if ok {
			return drive.ConflictError(op, "role id %s already exists", r.ID)
		}
		perms, err := resolvePermissions(txn, op, r.Permissions)
		if err != nil {
			return err
		}
		stored := drive.Role{ID: r.ID, Name: r.Name, Permissions: perms}
		if err := txn.Set(keyRoleName(r.Name), []byte(r.ID)); err != nil {
			return err
		}
		return setJSON(txn, keyRole(r.ID), &stored)
	})
}

// resolvePermissions checks every name exists and returns them sorted without duplicates.
func resolvePermissions(txn *badger.Txn, op string, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		ok, err := exists(txn, keyPermission(name))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, drive.NotFoundError(op, "permission %s not found", name)
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID string, names []string) error {
	const op = "grant permission"
	return s.update(op, func(txn *badger.Txn) error {
		r, err := findRole(txn, roleID)
		if err != nil {
			return err
		}
		if r == nil {
			return drive.NotFoundError(op, "role %s not found", roleID)
		}
		perms, err := resolvePermissions(txn, op, names)
		if err != nil {
			return err
		}
		r.Permissions = perms
		return setJSON(txn, keyRole(roleID), r)
	})
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	const op = "delete role"
	return s.update(op, func(txn *badger.Txn) error {
		r, err := findRole(txn, id)
		if err != nil || r == nil {
			return err
		}
		n, err := countUsersWithRole(txn, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return drive.ConflictError(op, "%s is still referenced by %d user(s)", r.Name, n)
		}
		if err := txn.Delete(keyRoleName(r.Name)); err != nil {
			return err
		}
		return txn.Delete(keyRole(id))
	})
}

func countUsersWithRole(txn *badger.Txn, roleID string) (int, error) {
	n := 0
	err := scanPrefix(txn, []byte(prefixUser), func(item *badger.Item) error {
		var u drive.User
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &u) }); err != nil {
			return err
		}
		if u.RoleID == roleID {
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) CountUsersWithRole(ctx context.Context, roleID string) (int, error) {
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		n, err = countUsersWithRole(txn, roleID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("counting users with role: %w", err)
	}
	return n, nil
}

// Users

func findUser(txn *badger.Txn, id string) (*drive.User, error) {
	var u drive.User
	ok, err := getJSON(txn, keyUser(id), &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*drive.User, error) {
	var u *drive.User
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		u, err = findUser(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*drive.User, error) {
	var u *drive.User
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, keyEmail(email))
		if err != nil || id == "" {
			return err
		}
		u, err = findUser(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return u, nil
}

// ListUsers returns users ordered by email.
func (s *Store) ListUsers(ctx context.Context) ([]*drive.User, error) {
	var users []*drive.User
	err := s.db.View(func(txn *badger.Txn) error {
		var ids []string
		err := scanPrefix(txn, []byte(prefixEmail), func(item *badger.Item) error {
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			ids = append(ids, string(id))
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			u, err := findUser(txn, id)
			if err != nil {
				return err
			}
			if u != nil {
				users = append(users, u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *Store) CreateUser(ctx context.Context, u *drive.User) error {
	const op = "create user"
	return s.update(op, func(txn *badger.Txn) error {
		if ok, err := exists(txn, keyEmail(u.Email)); err != nil {
			return err
		} else if ok {
			return drive.ConflictError(op, "%s already exists", u.Email)
		}
		if ok, err := exists(txn, keyUser(u.ID)); err != nil {
			return err
		} else if ok {
			return drive.ConflictError(op, "user id %s already exists", u.ID)
		}
		if err := checkRoleExists(txn, op, u.RoleID); err != nil {
			return err
		}
		if err := txn.Set(keyEmail(u.Email), []byte(u.ID)); err != nil {
			return err
		}
		return setJSON(txn, keyUser(u.ID), u)
	})
}

func checkRoleExists(txn *badger.Txn, op, roleID string) error {
	ok, err := exists(txn, keyRole(roleID))
	if err != nil {
		return err
	}
	if !ok {
		return drive.ConflictError(op, "role %s does not exist", roleID)
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, u *drive.User) error {
	const op = "update user"
	return s.update(op, func(txn *badger.Txn) error {
		stored, err := findUser(txn, u.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return drive.NotFoundError(op, "user %s not found", u.ID)
		}
		if err := checkRoleExists(txn, op, u.RoleID); err != nil {
			return err
		}
		if stored.Email != u.Email {
			if ok, err := exists(txn, keyEmail(u.Email)); err != nil {
				return err
			} else if ok {
				return drive.ConflictError(op, "%s already exists", u.Email)
			}
			if err := txn.Delete(keyEmail(stored.Email)); err != nil {
				return err
			}
			if err := txn.Set(keyEmail(u.Email), []byte(u.ID)); err != nil {
				return err
			}
		}
		updated := *u
		updated.CreatedAt = stored.CreatedAt
		return setJSON(txn, keyUser(u.ID), &updated)
	})
}
