package drive

import (
	"io"
	"io/fs"
)

// LocalPath is a resolved path on the machine running the CLI, used as the
// source of an import.
type LocalPath struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewLocalPath is used by LocalFilesystem implementations.
func NewLocalPath(absPath string, isDir bool, info fs.FileInfo) *LocalPath {
	return &LocalPath{absPath: absPath, isDir: isDir, info: info}
}

func (p *LocalPath) String() string    { return p.absPath }
func (p *LocalPath) IsDir() bool       { return p.isDir }
func (p *LocalPath) Info() fs.FileInfo { return p.info }

// LocalFile is a regular file discovered under an imported directory.
// RelativePath uses forward slashes and is relative to the import root.
type LocalFile struct {
	Path         *LocalPath
	RelativePath string
}

// LocalFilesystem reads the local files that get imported into a tree.
type LocalFilesystem interface {
	// Resolve makes rawPath absolute and rejects anything that is not a
	// regular file or directory.
	Resolve(rawPath string) (*LocalPath, error)

	// Open opens a resolved regular file.
	Open(path *LocalPath) (io.ReadCloser, error)

	// FindFiles lists regular files under dir, skipping ignored paths.
	FindFiles(dir *LocalPath, recursive bool) ([]*LocalFile, error)
}
