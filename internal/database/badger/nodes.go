package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"drive-go/internal/drive"
)

type storagePathEntry struct {
	OwnerID string `json:"owner_id"`
	NodeID  string `json:"node_id"`
}

func findNode(txn *badger.Txn, ownerID, id string) (*drive.Node, error) {
	var n drive.Node
	ok, err := getJSON(txn, keyNode(ownerID, id), &n)
	if err != nil || !ok {
		return nil, err
	}
	return &n, nil
}

func (s *Store) FindNodeByID(ctx context.Context, ownerID, id string) (*drive.Node, error) {
	var n *drive.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		n, err = findNode(txn, ownerID, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding node by id: %w", err)
	}
	return n, nil
}

func (s *Store) FindChildren(ctx context.Context, ownerID, parentID string) ([]*drive.Node, error) {
	var nodes []*drive.Node
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, keyChildPrefix(ownerID, parentID), func(item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			childID, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			n, err := findNode(txn, ownerID, string(childID))
			if err != nil {
				return err
			}
			if n == nil {
				return fmt.Errorf("child index %s points at missing node %s", item.Key(), childID)
			}
			nodes = append(nodes, n)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("finding children: %w", err)
	}
	return nodes, nil
}

func (s *Store) FindNodeByNameAndParent(ctx context.Context, ownerID, parentID, name string) (*drive.Node, error) {
	var n *drive.Node
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, keyChild(ownerID, parentID, name))
		if err != nil || id == "" {
			return err
		}
		n, err = findNode(txn, ownerID, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding node by name: %w", err)
	}
	return n, nil
}

func (s *Store) FindNodeByStoragePath(ctx context.Context, ownerID, storagePath string) (*drive.Node, error) {
	var n *drive.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var entry storagePathEntry
		ok, err := getJSON(txn, keyStoragePath(storagePath), &entry)
		if err != nil || !ok || entry.OwnerID != ownerID {
			return err
		}
		n, err = findNode(txn, ownerID, entry.NodeID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding node by storage path: %w", err)
	}
	return n, nil
}

func (s *Store) AncestorChain(ctx context.Context, ownerID, nodeID string) ([]*drive.Node, error) {
	return drive.WalkAncestors(ctx, ownerID, nodeID, s.FindNodeByID)
}

func (s *Store) InsertNode(ctx context.Context, n *drive.Node) error {
	const op = "insert node"
	return s.update(op, func(txn *badger.Txn) error {
		if ok, err := exists(txn, keyNode(n.OwnerID, n.ID)); err != nil {
			return err
		} else if ok {
			return drive.ConflictError(op, "node %s already exists", n.ID)
		}
		if n.ParentID != "" {
			parent, err := findNode(txn, n.OwnerID, n.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return drive.ConflictError(op, "parent %s does not exist", n.ParentID)
			}
		}
		if err := claimNames(txn, op, n); err != nil {
			return err
		}
		return setJSON(txn, keyNode(n.OwnerID, n.ID), n)
	})
}

// claimNames writes the child and storage path index entries for n,
// failing if another node holds either.
func claimNames(txn *badger.Txn, op string, n *drive.Node) error {
	if ok, err := exists(txn, keyChild(n.OwnerID, n.ParentID, n.Name)); err != nil {
		return err
	} else if ok {
		return drive.ConflictError(op, "%s already exists", n.Name)
	}
	if ok, err := exists(txn, keyStoragePath(n.StoragePath)); err != nil {
		return err
	} else if ok {
		return drive.ConflictError(op, "storage path %s already exists", n.StoragePath)
	}
	if err := txn.Set(keyChild(n.OwnerID, n.ParentID, n.Name), []byte(n.ID)); err != nil {
		return err
	}
	return setJSON(txn, keyStoragePath(n.StoragePath), storagePathEntry{OwnerID: n.OwnerID, NodeID: n.ID})
}

func releaseNames(txn *badger.Txn, n *drive.Node) error {
	if err := txn.Delete(keyChild(n.OwnerID, n.ParentID, n.Name)); err != nil {
		return err
	}
	return txn.Delete(keyStoragePath(n.StoragePath))
}

func (s *Store) UpdateNode(ctx context.Context, n *drive.Node) error {
	const op = "update node"
	err := s.update(op, func(txn *badger.Txn) error {
		stored, err := findNode(txn, n.OwnerID, n.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return drive.NotFoundError(op, "node %s not found", n.ID)
		}
		if stored.Version != n.Version {
			return drive.ConflictError(op, "node %s was modified concurrently (version %d, stored %d)", n.ID, n.Version, stored.Version)
		}
		if n.ParentID != "" && n.ParentID != stored.ParentID {
			parent, err := findNode(txn, n.OwnerID, n.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return drive.ConflictError(op, "parent %s does not exist", n.ParentID)
			}
		}

		if err := releaseNames(txn, stored); err != nil {
			return err
		}
		if err := claimNames(txn, op, n); err != nil {
			return err
		}

		updated := *stored
		updated.ParentID = n.ParentID
		updated.Name = n.Name
		updated.Size = n.Size
		updated.MimeType = n.MimeType
		updated.StoragePath = n.StoragePath
		updated.UpdatedAt = n.UpdatedAt
		updated.Version = stored.Version + 1
		return setJSON(txn, keyNode(n.OwnerID, n.ID), &updated)
	})
	if err != nil {
		return err
	}
	n.Version++
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, ownerID, id string) error {
	const op = "delete node"
	return s.update(op, func(txn *badger.Txn) error {
		n, err := findNode(txn, ownerID, id)
		if err != nil || n == nil {
			return err
		}
		hasChildren := false
		err = scanPrefix(txn, keyChildPrefix(ownerID, id), func(*badger.Item) error {
			hasChildren = true
			return nil
		})
		if err != nil {
			return err
		}
		if hasChildren {
			return drive.ConflictError(op, "%s still has children", n.Name)
		}
		if err := releaseNames(txn, n); err != nil {
			return err
		}
		return txn.Delete(keyNode(ownerID, id))
	})
}
