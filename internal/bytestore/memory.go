package bytestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"drive-go/internal/drive"
)

// MemoryStore keeps blobs and directories in maps. It is meant for tests and
// the in-memory configuration. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	dirs  map[string]struct{}
}

var _ drive.ByteStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory byte store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
		dirs:  make(map[string]struct{}),
	}
}

func cleanPath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func under(p, dir string) bool {
	return strings.HasPrefix(p, dir+"/")
}

func (m *MemoryStore) EnsureDirectory(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dir := cleanPath(p); dir != "." && dir != ""; dir = path.Dir(dir) {
		if _, ok := m.blobs[dir]; ok {
			return &drive.Error{Kind: drive.KindConflict, Op: "ensure directory", Path: dir, Message: "a blob exists at this path"}
		}
		m.dirs[dir] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) WriteBlob(ctx context.Context, p string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return drive.StorageError("write blob", p, fmt.Errorf("failed to read content: %w", err))
	}
	if int64(len(data)) != size {
		return &drive.Error{Kind: drive.KindValidation, Op: "write blob", Path: p,
			Message: fmt.Sprintf("size mismatch: expected %d bytes, got %d", size, len(data))}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p = cleanPath(p)
	if dir := path.Dir(p); dir != "." {
		for d := dir; d != "."; d = path.Dir(d) {
			m.dirs[d] = struct{}{}
		}
	}
	m.blobs[p] = data
	return nil
}

func (m *MemoryStore) ReadBlob(ctx context.Context, p string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.blobs[cleanPath(p)]
	m.mu.RUnlock()

	if !ok {
		return &drive.Error{Kind: drive.KindNotFound, Op: "read blob", Path: p}
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return drive.StorageError("read blob", p, fmt.Errorf("failed to write content: %w", err))
	}
	return nil
}

func (m *MemoryStore) DeleteBlob(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = cleanPath(p)
	if _, ok := m.blobs[p]; !ok {
		return &drive.Error{Kind: drive.KindNotFound, Op: "delete blob", Path: p}
	}
	delete(m.blobs, p)
	return nil
}

func (m *MemoryStore) DeleteTree(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = cleanPath(p)
	for k := range m.blobs {
		if k == p || under(k, p) {
			delete(m.blobs, k)
		}
	}
	for k := range m.dirs {
		if k == p || under(k, p) {
			delete(m.dirs, k)
		}
	}
	return nil
}

func (m *MemoryStore) RenameEntry(ctx context.Context, oldPath, newPath string) error {
	const op = "rename entry"
	m.mu.Lock()
	defer m.mu.Unlock()

	from, to := cleanPath(oldPath), cleanPath(newPath)
	_, isBlob := m.blobs[from]
	_, isDir := m.dirs[from]
	if !isBlob && !isDir {
		return &drive.Error{Kind: drive.KindNotFound, Op: op, Path: oldPath}
	}
	if from == to {
		return nil
	}
	if under(from, to) {
		return drive.ValidationError(op, "%s lies inside %s", oldPath, newPath)
	}
	for k := range m.blobs {
		if k == to || under(k, to) {
			delete(m.blobs, k)
		}
	}
	for k := range m.dirs {
		if k == to || under(k, to) {
			delete(m.dirs, k)
		}
	}

	for d := path.Dir(to); d != "."; d = path.Dir(d) {
		m.dirs[d] = struct{}{}
	}
	if isBlob {
		m.blobs[to] = m.blobs[from]
		delete(m.blobs, from)
		return nil
	}

	var blobKeys, dirKeys []string
	for k := range m.blobs {
		if under(k, from) {
			blobKeys = append(blobKeys, k)
		}
	}
	for k := range m.dirs {
		if k == from || under(k, from) {
			dirKeys = append(dirKeys, k)
		}
	}
	for _, k := range blobKeys {
		m.blobs[to+strings.TrimPrefix(k, from)] = m.blobs[k]
		delete(m.blobs, k)
	}
	for _, k := range dirKeys {
		delete(m.dirs, k)
		m.dirs[to+strings.TrimPrefix(k, from)] = struct{}{}
	}
	return nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(ctx context.Context) error {
	return nil
}

// Exists reports whether a blob or directory is stored at p.
func (m *MemoryStore) Exists(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = cleanPath(p)
	_, isBlob := m.blobs[p]
	_, isDir := m.dirs[p]
	return isBlob || isDir
}

// BlobCount returns the number of stored blobs.
func (m *MemoryStore) BlobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
