package bytestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"drive-go/internal/drive"
)

// FileSystemStore keeps blobs as regular files under root, mirroring the
// logical tree: a folder's storage path is a directory and a file's storage
// path is a file.
type FileSystemStore struct {
	root string
}

var _ drive.ByteStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates a store rooted at root, creating it if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create byte store root: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

// resolve maps a logical path into the root, refusing anything that would
// escape it.
func (s *FileSystemStore) resolve(op, p string) (string, error) {
	clean := path.Clean("/" + p)
	if clean == "/" || strings.Contains(p, "\x00") {
		return "", drive.ValidationError(op, "invalid storage path %q", p)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (s *FileSystemStore) EnsureDirectory(ctx context.Context, p string) error {
	const op = "ensure directory"
	full, err := s.resolve(op, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0755); err != nil {
		return drive.StorageError(op, p, err)
	}
	return nil
}

// WriteBlob writes through a temp file in the destination directory and
// renames it into place once exactly size bytes have been copied.
func (s *FileSystemStore) WriteBlob(ctx context.Context, p string, r io.Reader, size int64) error {
	const op = "write blob"
	full, err := s.resolve(op, p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return drive.StorageError(op, p, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return drive.StorageError(op, p, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, contextReader{ctx: ctx, r: r})
	if err != nil {
		tmpFile.Close()
		return drive.StorageError(op, p, fmt.Errorf("failed to write data: %w", err))
	}
	if err := tmpFile.Close(); err != nil {
		return drive.StorageError(op, p, fmt.Errorf("failed to close temp file: %w", err))
	}
	if written != size {
		return &drive.Error{Kind: drive.KindValidation, Op: op, Path: p,
			Message: fmt.Sprintf("size mismatch: expected %d bytes, got %d", size, written)}
	}

	if err := os.Rename(tmpPath, full); err != nil {
		return drive.StorageError(op, p, fmt.Errorf("failed to rename temp file: %w", err))
	}
	success = true
	return nil
}

func (s *FileSystemStore) ReadBlob(ctx context.Context, p string, w io.Writer) error {
	const op = "read blob"
	full, err := s.resolve(op, p)
	if err != nil {
		return err
	}
	f, err := os.Open(full)
	if err != nil {
		return drive.StorageError(op, p, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, contextReader{ctx: ctx, r: f}); err != nil {
		return drive.StorageError(op, p, fmt.Errorf("failed to read file: %w", err))
	}
	return nil
}

func (s *FileSystemStore) DeleteBlob(ctx context.Context, p string) error {
	const op = "delete blob"
	full, err := s.resolve(op, p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return drive.StorageError(op, p, err)
	}
	return nil
}

// DeleteTree removes p recursively. A missing directory is not an error.
func (s *FileSystemStore) DeleteTree(ctx context.Context, p string) error {
	const op = "delete tree"
	full, err := s.resolve(op, p)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return drive.StorageError(op, p, err)
	}
	return nil
}

func (s *FileSystemStore) RenameEntry(ctx context.Context, oldPath, newPath string) error {
	const op = "rename entry"
	from, err := s.resolve(op, oldPath)
	if err != nil {
		return err
	}
	to, err := s.resolve(op, newPath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(from); err != nil {
		return drive.StorageError(op, oldPath, err)
	}
	if from == to {
		return nil
	}
	if strings.HasPrefix(from, to+string(filepath.Separator)) {
		return drive.ValidationError(op, "%s lies inside %s", oldPath, newPath)
	}
	// Anything already at the destination is a leftover the tree no longer
	// references.
	if _, err := os.Lstat(to); err == nil {
		if err := os.RemoveAll(to); err != nil {
			return drive.StorageError(op, newPath, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return drive.StorageError(op, newPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return drive.StorageError(op, newPath, err)
	}
	if err := os.Rename(from, to); err != nil {
		return drive.StorageError(op, oldPath, err)
	}
	return nil
}

// ValidateSetup verifies the root exists and accepts writes.
func (s *FileSystemStore) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("byte store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("byte store root is not a directory: %s", s.root)
	}

	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("byte store root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// contextReader stops a copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
