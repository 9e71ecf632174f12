package bytestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drive-go/internal/drive"
)

func TestFileSystemStore(t *testing.T) {
	runByteStoreTests(t, func(t *testing.T) drive.ByteStore {
		s, err := NewFileSystemStore(filepath.Join(t.TempDir(), "store"))
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		return s
	})
}

func TestFileSystemStore_Layout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	if err := s.EnsureDirectory(ctx, "root/u1/docs"); err != nil {
		t.Fatalf("EnsureDirectory() error = %v", err)
	}
	if err := s.WriteBlob(ctx, "root/u1/docs/a.txt", strings.NewReader("abc"), 3); err != nil {
		t.Fatalf("WriteBlob() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "root", "u1", "docs", "a.txt"))
	if err != nil {
		t.Fatalf("blob not stored on disk: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("on-disk content = %q, want %q", data, "abc")
	}

	entries, err := os.ReadDir(filepath.Join(root, "root", "u1", "docs"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp files left behind?)", len(entries))
	}
}

func TestFileSystemStore_EscapingPaths(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "store")
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	if err := s.WriteBlob(ctx, "../../outside.txt", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("WriteBlob() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "outside.txt")); err != nil {
		t.Errorf("path was not confined to the root: %v", err)
	}

	if err := s.DeleteTree(ctx, ""); !drive.IsKind(err, drive.KindValidation) {
		t.Errorf("DeleteTree(\"\") error = %v, want validation", err)
	}
}

func TestFileSystemStore_RenameIntoOwnSubtree(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	if err := s.EnsureDirectory(ctx, "a/b"); err != nil {
		t.Fatalf("EnsureDirectory() error = %v", err)
	}
	if err := s.RenameEntry(ctx, "a/b", "a"); !drive.IsKind(err, drive.KindValidation) {
		t.Errorf("RenameEntry() onto own ancestor error = %v, want validation", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "a", "b")); err != nil {
		t.Error("source removed by rejected rename")
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "store")
		s, err := NewFileSystemStore(root)
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		os.RemoveAll(root)

		if err := s.ValidateSetup(context.Background()); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})

	t.Run("root is a file", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(root, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		s := &FileSystemStore{root: root}
		if err := s.ValidateSetup(context.Background()); err == nil {
			t.Error("ValidateSetup() expected error when root is a file")
		}
	})
}
