package drive

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
)

// DefaultMimeType is recorded for uploads that do not name a type.
const DefaultMimeType = "application/octet-stream"

// Service performs the tree operations. It keeps the tree store and the byte
// store consistent by ordering: bytes are written before metadata on create
// and upload, and every check runs before the first mutation on rename and
// move. Delete is best-effort on the byte side and exhaustive on metadata.
//
// Service does not check capabilities; see Gate.
type Service struct {
	tree   TreeStore
	bytes  ByteStore
	paths  PathBuilder
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewService creates a Service over the given stores.
func NewService(tree TreeStore, bytes ByteStore, paths PathBuilder, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		tree:   tree,
		bytes:  bytes,
		paths:  paths,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// UploadRequest describes a file to store.
type UploadRequest struct {
	ParentID string
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

// CreateFolder creates an empty folder under parentID ("" for the root).
func (s *Service) CreateFolder(ctx context.Context, ownerID, parentID, name string) (*Node, error) {
	const op = "create folder"

	if err := ValidateName(op, name); err != nil {
		return nil, err
	}
	parent, err := s.loadParent(ctx, op, ownerID, parentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNameAvailable(ctx, op, ownerID, parentID, name, ""); err != nil {
		return nil, err
	}

	storagePath := s.paths.Build(ownerID, parent, name)
	if err := s.bytes.EnsureDirectory(ctx, storagePath); err != nil {
		return nil, StorageError(op, storagePath, err)
	}

	now := s.clock.Now()
	node := &Node{
		ID:          s.idgen.New(),
		Name:        name,
		IsFolder:    true,
		MimeType:    FolderMimeType,
		StoragePath: storagePath,
		OwnerID:     ownerID,
		ParentID:    parentID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tree.InsertNode(ctx, node); err != nil {
		return nil, fmt.Errorf("inserting folder %s: %w", storagePath, err)
	}

	s.logger.Info("folder created", "owner", ownerID, "id", node.ID, "path", storagePath)
	return node, nil
}

// UploadFile stores req.Content as a new file.
func (s *Service) UploadFile(ctx context.Context, ownerID string, req UploadRequest) (*Node, error) {
	const op = "upload"

	if err := ValidateName(op, req.Name); err != nil {
		return nil, err
	}
	if req.Content == nil {
		return nil, ValidationError(op, "content is required")
	}
	if req.Size < 0 {
		return nil, ValidationError(op, "size must not be negative")
	}
	parent, err := s.loadParent(ctx, op, ownerID, req.ParentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNameAvailable(ctx, op, ownerID, req.ParentID, req.Name, ""); err != nil {
		return nil, err
	}

	dir := s.paths.RootPath(ownerID)
	if parent != nil {
		dir = parent.StoragePath
	}
	if err := s.bytes.EnsureDirectory(ctx, dir); err != nil {
		return nil, StorageError(op, dir, err)
	}

	storagePath := s.paths.Build(ownerID, parent, req.Name)
	if err := s.bytes.WriteBlob(ctx, storagePath, req.Content, req.Size); err != nil {
		return nil, StorageError(op, storagePath, err)
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	now := s.clock.Now()
	node := &Node{
		ID:          s.idgen.New(),
		Name:        req.Name,
		Size:        req.Size,
		MimeType:    mimeType,
		StoragePath: storagePath,
		OwnerID:     ownerID,
		ParentID:    req.ParentID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tree.InsertNode(ctx, node); err != nil {
		// The blob stays behind as an orphan; removing it could clobber a
		// sibling that won a race for the same name.
		s.logger.Warn("blob written without metadata", "owner", ownerID, "path", storagePath, "error", err)
		return nil, fmt.Errorf("inserting file %s: %w", storagePath, err)
	}

	s.logger.Info("file uploaded", "owner", ownerID, "id", node.ID, "path", storagePath, "size", req.Size)
	return node, nil
}

// Rename gives a node a new name under its current parent.
func (s *Service) Rename(ctx context.Context, ownerID, nodeID, newName string) (*Node, error) {
	const op = "rename"

	if err := ValidateName(op, newName); err != nil {
		return nil, err
	}
	node, err := s.loadNode(ctx, op, ownerID, nodeID)
	if err != nil {
		return nil, err
	}
	if node.Name == newName {
		return node, nil
	}
	if err := s.checkNameAvailable(ctx, op, ownerID, node.ParentID, newName, node.ID); err != nil {
		return nil, err
	}
	parent, err := s.loadParent(ctx, op, ownerID, node.ParentID)
	if err != nil {
		return nil, err
	}

	oldPath := node.StoragePath
	newPath := s.paths.Build(ownerID, parent, newName)
	if err := s.bytes.RenameEntry(ctx, oldPath, newPath); err != nil {
		return nil, StorageError(op, oldPath, err)
	}

	node.Name = newName
	if err := s.relocate(ctx, op, node, newPath); err != nil {
		return nil, err
	}

	s.logger.Info("node renamed", "owner", ownerID, "id", node.ID, "from", oldPath, "to", newPath)
	return node, nil
}

// Move re-parents a node under newParentID ("" for the root), keeping its name.
func (s *Service) Move(ctx context.Context, ownerID, nodeID, newParentID string) (*Node, error) {
	const op = "move"

	node, err := s.loadNode(ctx, op, ownerID, nodeID)
	if err != nil {
		return nil, err
	}
	newParent, err := s.loadParent(ctx, op, ownerID, newParentID)
	if IsKind(err, KindNotFound) {
		return nil, ValidationError(op, "new parent %s is not a folder", newParentID)
	}
	if err != nil {
		return nil, err
	}
	if newParentID == node.ID {
		return nil, ValidationError(op, "cannot move %q into itself", node.Name)
	}
	if newParentID == node.ParentID {
		return node, nil
	}
	if newParent != nil {
		ancestors, err := s.tree.AncestorChain(ctx, ownerID, newParent.ID)
		if err != nil {
			return nil, fmt.Errorf("walking ancestors of %s: %w", newParent.ID, err)
		}
		for _, a := range ancestors {
			if a.ID == node.ID {
				return nil, ConflictError(op, "cannot move %q into its own subtree", node.Name)
			}
		}
	}

	destDir := s.paths.RootPath(ownerID)
	if newParent != nil {
		destDir = newParent.StoragePath
	}
	newPath := s.paths.Build(ownerID, newParent, node.Name)
	if err := s.checkNameAvailable(ctx, op, ownerID, newParentID, node.Name, node.ID); err != nil {
		return nil, err
	}

	if err := s.bytes.EnsureDirectory(ctx, destDir); err != nil {
		return nil, StorageError(op, destDir, err)
	}
	oldPath := node.StoragePath
	if err := s.bytes.RenameEntry(ctx, oldPath, newPath); err != nil {
		return nil, StorageError(op, oldPath, err)
	}

	node.ParentID = newParentID
	if err := s.relocate(ctx, op, node, newPath); err != nil {
		return nil, err
	}

	s.logger.Info("node moved", "owner", ownerID, "id", node.ID, "from", oldPath, "to", newPath)
	return node, nil
}

// Delete removes a node and, for folders, everything below it. It returns the
// number of node records removed.
func (s *Service) Delete(ctx context.Context, ownerID, nodeID string) (int, error) {
	node, err := s.loadNode(ctx, "delete", ownerID, nodeID)
	if err != nil {
		return 0, err
	}
	return s.deleteNode(ctx, node)
}

// DeleteFile is Delete restricted to files; a folder id is reported as not found.
func (s *Service) DeleteFile(ctx context.Context, ownerID, nodeID string) error {
	const op = "delete file"

	node, err := s.loadNode(ctx, op, ownerID, nodeID)
	if err != nil {
		return err
	}
	if node.IsFolder {
		return NotFoundError(op, "file %s not found", nodeID)
	}
	_, err = s.deleteNode(ctx, node)
	return err
}

// DeleteFolder is Delete restricted to folders; a file id is reported as not found.
func (s *Service) DeleteFolder(ctx context.Context, ownerID, nodeID string) (int, error) {
	const op = "delete folder"

	node, err := s.loadNode(ctx, op, ownerID, nodeID)
	if err != nil {
		return 0, err
	}
	if !node.IsFolder {
		return 0, NotFoundError(op, "folder %s not found", nodeID)
	}
	return s.deleteNode(ctx, node)
}

// List returns the children of parentID ("" for the root) together with the
// folder itself and its breadcrumbs. Folders sort before files, then by name.
func (s *Service) List(ctx context.Context, ownerID, parentID string) (*Listing, error) {
	const op = "list"

	listing := &Listing{}
	if parentID != "" {
		current, err := s.loadNode(ctx, op, ownerID, parentID)
		if err != nil {
			return nil, err
		}
		if !current.IsFolder {
			return nil, ValidationError(op, "%q is not a folder", current.Name)
		}
		ancestors, err := s.tree.AncestorChain(ctx, ownerID, parentID)
		if err != nil {
			return nil, fmt.Errorf("building breadcrumbs for %s: %w", parentID, err)
		}
		listing.CurrentFolder = current
		listing.Breadcrumbs = append(ancestors, current)
	}

	children, err := s.tree.FindChildren(ctx, ownerID, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing children of %q: %w", parentID, err)
	}
	slices.SortFunc(children, func(a, b *Node) int {
		if a.IsFolder != b.IsFolder {
			if a.IsFolder {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Name, b.Name)
	})
	listing.Children = children
	return listing, nil
}

// Download writes the contents of the owner's file at storagePath to w.
func (s *Service) Download(ctx context.Context, ownerID, storagePath string, w io.Writer) (*Node, error) {
	const op = "download"

	node, err := s.tree.FindNodeByStoragePath(ctx, ownerID, storagePath)
	if err != nil {
		return nil, fmt.Errorf("finding node at %s: %w", storagePath, err)
	}
	if node == nil {
		return nil, NotFoundError(op, "no file at %s", storagePath)
	}
	if node.IsFolder {
		return nil, ValidationError(op, "%q is a folder", node.Name)
	}
	if err := s.bytes.ReadBlob(ctx, storagePath, w); err != nil {
		return nil, StorageError(op, storagePath, err)
	}
	return node, nil
}

// Stat returns the owner's node with the given id.
func (s *Service) Stat(ctx context.Context, ownerID, nodeID string) (*Node, error) {
	return s.loadNode(ctx, "stat", ownerID, nodeID)
}

// relocate persists node at newPath and recomputes the storage path of every
// descendant from its new parent path. The caller has already moved the bytes.
func (s *Service) relocate(ctx context.Context, op string, node *Node, newPath string) error {
	oldPath := node.StoragePath
	node.StoragePath = newPath
	node.UpdatedAt = s.clock.Now()

	if node.IsFolder {
		n, err := s.rewriteDescendants(ctx, node)
		if err != nil {
			s.logger.Error("descendant paths out of sync with byte store", "owner", node.OwnerID, "id", node.ID, "from", oldPath, "to", newPath, "error", err)
			return fmt.Errorf("%s: rewriting descendant paths: %w", op, err)
		}
		if n > 0 {
			s.logger.Debug("descendant paths rewritten", "id", node.ID, "count", n)
		}
	}

	if err := s.tree.UpdateNode(ctx, node); err != nil {
		s.logger.Error("node metadata out of sync with byte store", "owner", node.OwnerID, "id", node.ID, "from", oldPath, "to", newPath, "error", err)
		return fmt.Errorf("%s: updating %s: %w", op, node.ID, err)
	}
	return nil
}

// rewriteDescendants walks the subtree under root with an explicit stack and
// points every descendant at the path derived from its (already rewritten)
// parent. Only metadata changes here.
func (s *Service) rewriteDescendants(ctx context.Context, root *Node) (int, error) {
	count := 0
	stack := []*Node{root}
	for len(stack) > 0 {
		parent := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := s.tree.FindChildren(ctx, root.OwnerID, parent.ID)
		if err != nil {
			return count, fmt.Errorf("listing children of %s: %w", parent.ID, err)
		}
		for _, child := range children {
			child.StoragePath = s.paths.Build(root.OwnerID, parent, child.Name)
			child.UpdatedAt = root.UpdatedAt
			if err := s.tree.UpdateNode(ctx, child); err != nil {
				return count, fmt.Errorf("updating %s: %w", child.ID, err)
			}
			count++
			if child.IsFolder {
				stack = append(stack, child)
			}
		}
	}
	return count, nil
}

// deleteNode removes node and its subtree. Byte store failures are logged and
// skipped; metadata failures abort.
func (s *Service) deleteNode(ctx context.Context, node *Node) (int, error) {
	var descendants []*Node
	if node.IsFolder {
		queue := []*Node{node}
		for len(queue) > 0 {
			parent := queue[0]
			queue = queue[1:]
			children, err := s.tree.FindChildren(ctx, node.OwnerID, parent.ID)
			if err != nil {
				return 0, fmt.Errorf("listing children of %s: %w", parent.ID, err)
			}
			for _, child := range children {
				descendants = append(descendants, child)
				if child.IsFolder {
					queue = append(queue, child)
				}
			}
		}
	}

	removed := 0
	failures := 0
	// Deepest first, so no record outlives its parent.
	for i := len(descendants) - 1; i >= 0; i-- {
		d := descendants[i]
		if !d.IsFolder {
			if err := s.bytes.DeleteBlob(ctx, d.StoragePath); err != nil && !IsKind(err, KindNotFound) {
				failures++
				s.logger.Warn("skipping blob removal", "owner", d.OwnerID, "id", d.ID, "path", d.StoragePath, "error", err)
			}
		}
		if err := s.tree.DeleteNode(ctx, d.OwnerID, d.ID); err != nil {
			return removed, fmt.Errorf("deleting %s: %w", d.ID, err)
		}
		removed++
	}

	var err error
	if node.IsFolder {
		err = s.bytes.DeleteTree(ctx, node.StoragePath)
	} else {
		err = s.bytes.DeleteBlob(ctx, node.StoragePath)
	}
	if err != nil && !IsKind(err, KindNotFound) {
		failures++
		s.logger.Warn("skipping physical removal", "owner", node.OwnerID, "id", node.ID, "path", node.StoragePath, "error", err)
	}
	if err := s.tree.DeleteNode(ctx, node.OwnerID, node.ID); err != nil {
		return removed, fmt.Errorf("deleting %s: %w", node.ID, err)
	}
	removed++

	s.logger.Info("node deleted", "owner", node.OwnerID, "id", node.ID, "path", node.StoragePath, "records", removed, "storage_failures", failures)
	return removed, nil
}

func (s *Service) loadNode(ctx context.Context, op, ownerID, id string) (*Node, error) {
	if id == "" {
		return nil, ValidationError(op, "node id is required")
	}
	node, err := s.tree.FindNodeByID(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: loading node %s: %w", op, id, err)
	}
	if node == nil {
		return nil, NotFoundError(op, "node %s not found", id)
	}
	return node, nil
}

// loadParent returns nil for the root.
func (s *Service) loadParent(ctx context.Context, op, ownerID, parentID string) (*Node, error) {
	if parentID == "" {
		return nil, nil
	}
	parent, err := s.tree.FindNodeByID(ctx, ownerID, parentID)
	if err != nil {
		return nil, fmt.Errorf("%s: loading parent %s: %w", op, parentID, err)
	}
	if parent == nil {
		return nil, NotFoundError(op, "parent %s not found", parentID)
	}
	if !parent.IsFolder {
		return nil, ValidationError(op, "parent %q is not a folder", parent.Name)
	}
	return parent, nil
}

func (s *Service) checkNameAvailable(ctx context.Context, op, ownerID, parentID, name, exceptID string) error {
	existing, err := s.tree.FindNodeByNameAndParent(ctx, ownerID, parentID, name)
	if err != nil {
		return fmt.Errorf("%s: checking for %q: %w", op, name, err)
	}
	if existing != nil && existing.ID != exceptID {
		return ConflictError(op, "%q already exists in this folder", name)
	}
	return nil
}
