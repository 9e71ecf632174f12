package bytestore

import (
	"context"
	"strings"
	"sync"
	"testing"

	"drive-go/internal/drive"
)

func TestMemoryStore(t *testing.T) {
	runByteStoreTests(t, func(t *testing.T) drive.ByteStore {
		return NewMemoryStore()
	})
}

func TestMemoryStore_Exists(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.EnsureDirectory(ctx, "root/u1/docs"); err != nil {
		t.Fatalf("EnsureDirectory() error = %v", err)
	}
	if err := s.WriteBlob(ctx, "root/u1/docs/a.txt", strings.NewReader("a"), 1); err != nil {
		t.Fatalf("WriteBlob() error = %v", err)
	}

	for _, p := range []string{"root", "root/u1", "root/u1/docs", "root/u1/docs/a.txt"} {
		if !s.Exists(p) {
			t.Errorf("Exists(%q) = false, want true", p)
		}
	}
	if s.Exists("root/u1/other") {
		t.Error("Exists(other) = true, want false")
	}
	if s.BlobCount() != 1 {
		t.Errorf("BlobCount() = %d, want 1", s.BlobCount())
	}
}

func TestMemoryStore_DirectoryOverBlob(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.WriteBlob(ctx, "root/u1/a", strings.NewReader("a"), 1); err != nil {
		t.Fatalf("WriteBlob() error = %v", err)
	}
	if err := s.EnsureDirectory(ctx, "root/u1/a/b"); !drive.IsKind(err, drive.KindConflict) {
		t.Errorf("EnsureDirectory() under a blob error = %v, want conflict", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := "root/u1/f" + strings.Repeat("x", i)
			if err := s.WriteBlob(ctx, p, strings.NewReader("data"), 4); err != nil {
				t.Errorf("WriteBlob() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if s.BlobCount() != 20 {
		t.Errorf("BlobCount() = %d, want 20", s.BlobCount())
	}
}
