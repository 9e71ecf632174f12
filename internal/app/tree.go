package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"drive-go/internal/drive"
)

// splitRemote turns "/a/b/" into ["a", "b"]. The root is an empty slice.
func splitRemote(remote string) []string {
	var parts []string
	for _, p := range strings.Split(remote, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}

// findChild returns the child of parentID named name, or nil.
func (a *DriveApp) findChild(ctx context.Context, parentID, name string) (*drive.Node, error) {
	listing, err := a.gate.List(ctx, a.caller, parentID)
	if err != nil {
		return nil, err
	}
	for _, c := range listing.Children {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, nil
}

// Lookup resolves a remote path in the caller's tree. The root resolves to nil.
func (a *DriveApp) Lookup(ctx context.Context, remote string) (*drive.Node, error) {
	var node *drive.Node
	for _, name := range splitRemote(remote) {
		parentID := ""
		if node != nil {
			if !node.IsFolder {
				return nil, drive.ValidationError("lookup", "%q is not a folder", node.Name)
			}
			parentID = node.ID
		}
		child, err := a.findChild(ctx, parentID, name)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, drive.NotFoundError("lookup", "%s not found", remote)
		}
		node = child
	}
	return node, nil
}

// lookupFolder resolves remote and returns its id ("" for the root).
func (a *DriveApp) lookupFolder(ctx context.Context, remote string) (string, error) {
	node, err := a.Lookup(ctx, remote)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", nil
	}
	if !node.IsFolder {
		return "", drive.ValidationError("lookup", "%s is not a folder", remote)
	}
	return node.ID, nil
}

// List returns the contents of the folder at remote.
func (a *DriveApp) List(ctx context.Context, remote string) (*drive.Listing, error) {
	id, err := a.lookupFolder(ctx, remote)
	if err != nil {
		return nil, err
	}
	return a.gate.List(ctx, a.caller, id)
}

// Stat returns the node at remote.
func (a *DriveApp) Stat(ctx context.Context, remote string) (*drive.Node, error) {
	node, err := a.Lookup(ctx, remote)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, drive.ValidationError("stat", "the root is not a node")
	}
	return a.gate.Stat(ctx, a.caller, node.ID)
}

// Mkdir creates the folder at remote. With parents, missing ancestors are
// created and an existing folder is not an error.
func (a *DriveApp) Mkdir(ctx context.Context, remote string, parents bool) (*drive.Node, error) {
	parts := splitRemote(remote)
	if len(parts) == 0 {
		return nil, drive.ValidationError("create folder", "a folder name is required")
	}

	var node *drive.Node
	err := a.mutate(ctx, remote, func() error {
		if !parents {
			parentID, err := a.lookupFolder(ctx, path.Join(parts[:len(parts)-1]...))
			if err != nil {
				return err
			}
			node, err = a.gate.CreateFolder(ctx, a.caller, parentID, parts[len(parts)-1])
			return err
		}
		parentID := ""
		for _, name := range parts {
			folder, err := a.ensureFolder(ctx, parentID, name)
			if err != nil {
				return err
			}
			node = folder
			parentID = folder.ID
		}
		return nil
	})
	return node, err
}

// ensureFolder finds or creates the folder name under parentID.
func (a *DriveApp) ensureFolder(ctx context.Context, parentID, name string) (*drive.Node, error) {
	existing, err := a.findChild(ctx, parentID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.IsFolder {
			return nil, drive.ConflictError("create folder", "%q exists and is a file", name)
		}
		return existing, nil
	}
	return a.gate.CreateFolder(ctx, a.caller, parentID, name)
}

// Rename renames the node at remote.
func (a *DriveApp) Rename(ctx context.Context, remote, newName string) (*drive.Node, error) {
	var node *drive.Node
	err := a.mutate(ctx, remote+" -> "+newName, func() error {
		target, err := a.requireNode(ctx, "rename", remote)
		if err != nil {
			return err
		}
		node, err = a.gate.Rename(ctx, a.caller, target.ID, newName)
		return err
	})
	return node, err
}

// Move moves the node at remote into the folder at destDir.
func (a *DriveApp) Move(ctx context.Context, remote, destDir string) (*drive.Node, error) {
	var node *drive.Node
	err := a.mutate(ctx, remote+" -> "+destDir, func() error {
		target, err := a.requireNode(ctx, "move", remote)
		if err != nil {
			return err
		}
		destID, err := a.lookupFolder(ctx, destDir)
		if err != nil {
			return err
		}
		node, err = a.gate.Move(ctx, a.caller, target.ID, destID)
		return err
	})
	return node, err
}

// Remove deletes the node at remote, recursively for folders. It returns
// the number of nodes removed.
func (a *DriveApp) Remove(ctx context.Context, remote string) (int, error) {
	var removed int
	err := a.mutate(ctx, remote, func() error {
		target, err := a.requireNode(ctx, "delete", remote)
		if err != nil {
			return err
		}
		if target.IsFolder {
			removed, err = a.gate.DeleteFolder(ctx, a.caller, target.ID)
			return err
		}
		if err := a.gate.DeleteFile(ctx, a.caller, target.ID); err != nil {
			return err
		}
		removed = 1
		return nil
	})
	return removed, err
}

// Download writes the file at remote to w.
func (a *DriveApp) Download(ctx context.Context, remote string, w io.Writer) (*drive.Node, error) {
	target, err := a.requireNode(ctx, "download", remote)
	if err != nil {
		return nil, err
	}
	return a.gate.Download(ctx, a.caller, target.StoragePath, w)
}

func (a *DriveApp) requireNode(ctx context.Context, op, remote string) (*drive.Node, error) {
	node, err := a.Lookup(ctx, remote)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, drive.ValidationError(op, "the root folder cannot be the target")
	}
	return node, nil
}

// Upload imports the local file or directory at localPath into the folder at
// remoteDir. A directory is recreated under remoteDir by its base name; its
// files are included only one level deep unless recursive is set. Existing
// folders are merged into; existing files are a conflict.
func (a *DriveApp) Upload(ctx context.Context, localPath, remoteDir string, recursive bool) ([]*drive.Node, error) {
	var uploaded []*drive.Node
	err := a.mutate(ctx, localPath+" -> "+remoteDir, func() error {
		src, err := a.fsys.Resolve(localPath)
		if err != nil {
			return err
		}
		parentID, err := a.lookupFolder(ctx, remoteDir)
		if err != nil {
			return err
		}

		if !src.IsDir() {
			node, err := a.uploadFile(ctx, parentID, filepath.Base(src.String()), src)
			if err != nil {
				return err
			}
			uploaded = append(uploaded, node)
			return nil
		}

		top, err := a.ensureFolder(ctx, parentID, filepath.Base(src.String()))
		if err != nil {
			return err
		}
		files, err := a.fsys.FindFiles(src, recursive)
		if err != nil {
			return fmt.Errorf("listing %s: %w", src, err)
		}
		folders := map[string]string{".": top.ID}
		for _, f := range files {
			dirID, err := a.ensureFolderPath(ctx, folders, path.Dir(f.RelativePath))
			if err != nil {
				return err
			}
			node, err := a.uploadFile(ctx, dirID, path.Base(f.RelativePath), f.Path)
			if err != nil {
				return fmt.Errorf("uploading %s: %w", f.RelativePath, err)
			}
			uploaded = append(uploaded, node)
		}
		return nil
	})
	return uploaded, err
}

// ensureFolderPath creates the slash-separated rel below the import root,
// memoizing folder ids in known.
func (a *DriveApp) ensureFolderPath(ctx context.Context, known map[string]string, rel string) (string, error) {
	if id, ok := known[rel]; ok {
		return id, nil
	}
	parentID, err := a.ensureFolderPath(ctx, known, path.Dir(rel))
	if err != nil {
		return "", err
	}
	folder, err := a.ensureFolder(ctx, parentID, path.Base(rel))
	if err != nil {
		return "", err
	}
	known[rel] = folder.ID
	return folder.ID, nil
}

func (a *DriveApp) uploadFile(ctx context.Context, parentID, name string, src *drive.LocalPath) (*drive.Node, error) {
	mimeType := drive.DefaultMimeType
	if mt, err := mimetype.DetectFile(src.String()); err == nil {
		mimeType = mt.String()
	} else {
		a.logger.Debug("mime detection failed", "path", src.String(), "error", err)
	}

	r, err := a.fsys.Open(src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return a.gate.UploadFile(ctx, a.caller, drive.UploadRequest{
		ParentID: parentID,
		Name:     name,
		MimeType: mimeType,
		Size:     src.Info().Size(),
		Content:  r,
	})
}
