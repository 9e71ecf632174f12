package drive

import (
	"context"
	"io"
)

// ByteStore holds file contents and the physical directory layout.
// Paths are slash-separated logical paths produced by PathBuilder.
// All operations stream through io.Reader/io.Writer so large files are never
// held in memory.
type ByteStore interface {
	// EnsureDirectory creates path and any missing parents. Existing
	// directories are not an error.
	EnsureDirectory(ctx context.Context, path string) error

	// WriteBlob stores exactly size bytes read from r at path, replacing any
	// existing blob. A short or long read is an error and leaves nothing behind.
	WriteBlob(ctx context.Context, path string, r io.Reader, size int64) error

	// ReadBlob writes the blob at path to w.
	ReadBlob(ctx context.Context, path string, w io.Writer) error

	// DeleteBlob removes the blob at path.
	DeleteBlob(ctx context.Context, path string) error

	// DeleteTree removes the directory at path and everything below it.
	DeleteTree(ctx context.Context, path string) error

	// RenameEntry moves a blob or a whole directory subtree. Whatever already
	// sits at newPath is replaced; callers check the tree for name clashes.
	RenameEntry(ctx context.Context, oldPath, newPath string) error

	// ValidateSetup verifies the store is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
