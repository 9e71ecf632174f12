package testutil

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"drive-go/internal/drive"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystem is an in-memory drive.LocalFilesystem for import tests.
// Paths are absolute and slash-separated.
type MockFilesystem struct {
	files map[string]*MockFile
}

// NewMockFilesystem creates an empty mock filesystem.
func NewMockFilesystem() *MockFilesystem {
	return &MockFilesystem{
		files: make(map[string]*MockFile),
	}
}

// AddFile adds a file and any missing parent directories.
func (m *MockFilesystem) AddFile(p string, content []byte) {
	m.addParents(p)
	m.files[p] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     time.Now(),
	}
}

// AddDirectory adds a directory and any missing parents.
func (m *MockFilesystem) AddDirectory(p string) {
	m.addParents(p)
	m.files[p] = &MockFile{
		Permissions: 0755,
		ModTime:     time.Now(),
		IsDirectory: true,
	}
}

func (m *MockFilesystem) addParents(p string) {
	for dir := path.Dir(p); dir != "/" && dir != "."; dir = path.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &MockFile{Permissions: 0755, ModTime: time.Now(), IsDirectory: true}
		}
	}
}

func (m *MockFilesystem) info(p string, file *MockFile) fs.FileInfo {
	return &mockFileInfo{
		name:    path.Base(p),
		size:    int64(len(file.Content)),
		mode:    file.Permissions,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
}

func (m *MockFilesystem) Resolve(rawPath string) (*drive.LocalPath, error) {
	absPath := filepath.ToSlash(rawPath)
	if !path.IsAbs(absPath) {
		absPath = path.Join("/", absPath)
	}
	absPath = path.Clean(absPath)

	file, ok := m.files[absPath]
	if !ok {
		return nil, &drive.Error{Kind: drive.KindNotFound, Op: "resolve", Message: "no such file or directory", Path: absPath}
	}
	return drive.NewLocalPath(absPath, file.IsDirectory, m.info(absPath, file)), nil
}

func (m *MockFilesystem) Open(p *drive.LocalPath) (io.ReadCloser, error) {
	file, ok := m.files[p.String()]
	if !ok {
		return nil, &drive.Error{Kind: drive.KindNotFound, Op: "open", Message: "no such file", Path: p.String()}
	}
	if file.IsDirectory {
		return nil, &drive.Error{Kind: drive.KindValidation, Op: "open", Message: "cannot open directory as file", Path: p.String()}
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

// FindFiles returns files below dir in lexical order. Ignore rules are not
// applied.
func (m *MockFilesystem) FindFiles(dir *drive.LocalPath, recursive bool) ([]*drive.LocalFile, error) {
	if !dir.IsDir() {
		return nil, &drive.Error{Kind: drive.KindValidation, Op: "find files", Message: "path is not a directory", Path: dir.String()}
	}
	prefix := strings.TrimSuffix(dir.String(), "/") + "/"

	var paths []string
	for p, file := range m.files {
		if file.IsDirectory || !strings.HasPrefix(p, prefix) {
			continue
		}
		rel := strings.TrimPrefix(p, prefix)
		if !recursive && strings.Contains(rel, "/") {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	files := make([]*drive.LocalFile, 0, len(paths))
	for _, p := range paths {
		files = append(files, &drive.LocalFile{
			Path:         drive.NewLocalPath(p, false, m.info(p, m.files[p])),
			RelativePath: strings.TrimPrefix(p, prefix),
		})
	}
	return files, nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

var _ drive.LocalFilesystem = (*MockFilesystem)(nil)
