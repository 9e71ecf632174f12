package bytestore

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"drive-go/internal/drive"
)

// runByteStoreTests exercises the behaviour every backend shares.
func runByteStoreTests(t *testing.T, newStore func(t *testing.T) drive.ByteStore) {
	ctx := context.Background()

	write := func(t *testing.T, s drive.ByteStore, p, data string) {
		t.Helper()
		if err := s.WriteBlob(ctx, p, strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("WriteBlob(%s) error = %v", p, err)
		}
	}
	read := func(t *testing.T, s drive.ByteStore, p string) string {
		t.Helper()
		var buf bytes.Buffer
		if err := s.ReadBlob(ctx, p, &buf); err != nil {
			t.Fatalf("ReadBlob(%s) error = %v", p, err)
		}
		return buf.String()
	}

	t.Run("write and read", func(t *testing.T) {
		s := newStore(t)
		write(t, s, "root/u1/a.txt", "hello world")
		if got := read(t, s, "root/u1/a.txt"); got != "hello world" {
			t.Errorf("ReadBlob() = %q, want %q", got, "hello world")
		}
	})

	t.Run("empty blob", func(t *testing.T) {
		s := newStore(t)
		write(t, s, "root/u1/empty", "")
		if got := read(t, s, "root/u1/empty"); got != "" {
			t.Errorf("ReadBlob() = %q, want empty", got)
		}
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		s := newStore(t)
		write(t, s, "root/u1/a.txt", "first")
		write(t, s, "root/u1/a.txt", "second")
		if got := read(t, s, "root/u1/a.txt"); got != "second" {
			t.Errorf("ReadBlob() = %q, want %q", got, "second")
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		s := newStore(t)
		err := s.WriteBlob(ctx, "root/u1/a.txt", strings.NewReader("short"), 100)
		if !drive.IsKind(err, drive.KindValidation) {
			t.Fatalf("WriteBlob() error = %v, want validation", err)
		}
		var buf bytes.Buffer
		if err := s.ReadBlob(ctx, "root/u1/a.txt", &buf); !drive.IsKind(err, drive.KindNotFound) {
			t.Errorf("ReadBlob() after failed write error = %v, want not found", err)
		}
	})

	t.Run("read missing", func(t *testing.T) {
		s := newStore(t)
		var buf bytes.Buffer
		if err := s.ReadBlob(ctx, "root/u1/missing", &buf); !drive.IsKind(err, drive.KindNotFound) {
			t.Errorf("ReadBlob() error = %v, want not found", err)
		}
	})

	t.Run("delete blob", func(t *testing.T) {
		s := newStore(t)
		write(t, s, "root/u1/a.txt", "data")
		if err := s.DeleteBlob(ctx, "root/u1/a.txt"); err != nil {
			t.Fatalf("DeleteBlob() error = %v", err)
		}
		if err := s.DeleteBlob(ctx, "root/u1/a.txt"); !drive.IsKind(err, drive.KindNotFound) {
			t.Errorf("second DeleteBlob() error = %v, want not found", err)
		}
	})

	t.Run("rename blob", func(t *testing.T) {
		s := newStore(t)
		write(t, s, "root/u1/a.txt", "data")
		if err := s.RenameEntry(ctx, "root/u1/a.txt", "root/u1/b.txt"); err != nil {
			t.Fatalf("RenameEntry() error = %v", err)
		}
		if got := read(t, s, "root/u1/b.txt"); got != "data" {
			t.Errorf("ReadBlob(new) = %q", got)
		}
		var buf bytes.Buffer
		if err := s.ReadBlob(ctx, "root/u1/a.txt", &buf); !drive.IsKind(err, drive.KindNotFound) {
			t.Errorf("ReadBlob(old) error = %v, want not found", err)
		}
	})

	t.Run("rename directory moves subtree", func(t *testing.T) {
		s := newStore(t)
		if err := s.EnsureDirectory(ctx, "root/u1/docs/inner"); err != nil {
			t.Fatalf("EnsureDirectory() error = %v", err)
		}
		write(t, s, "root/u1/docs/a.txt", "a")
		write(t, s, "root/u1/docs/inner/b.txt", "b")

		if err := s.EnsureDirectory(ctx, "root/u1/archive"); err != nil {
			t.Fatalf("EnsureDirectory() error = %v", err)
		}
		if err := s.RenameEntry(ctx, "root/u1/docs", "root/u1/archive/docs"); err != nil {
			t.Fatalf("RenameEntry() error = %v", err)
		}
		if got := read(t, s, "root/u1/archive/docs/inner/b.txt"); got != "b" {
			t.Errorf("moved nested blob = %q, want %q", got, "b")
		}
		var buf bytes.Buffer
		if err := s.ReadBlob(ctx, "root/u1/docs/a.txt", &buf); !drive.IsKind(err, drive.KindNotFound) {
			t.Errorf("old blob still readable, err = %v", err)
		}
	})

	t.Run("rename replaces leftover blob", func(t *testing.T) {
		s := newStore(t)
		write(t, s, "root/u1/a.txt", "orphan")
		write(t, s, "root/u1/b.txt", "current")
		if err := s.RenameEntry(ctx, "root/u1/b.txt", "root/u1/a.txt"); err != nil {
			t.Fatalf("RenameEntry() error = %v", err)
		}
		if got := read(t, s, "root/u1/a.txt"); got != "current" {
			t.Errorf("ReadBlob(dest) = %q, want %q", got, "current")
		}
	})

	t.Run("rename replaces leftover directory", func(t *testing.T) {
		s := newStore(t)
		if err := s.EnsureDirectory(ctx, "root/u1/old"); err != nil {
			t.Fatalf("EnsureDirectory() error = %v", err)
		}
		write(t, s, "root/u1/old/stale.txt", "stale")
		if err := s.EnsureDirectory(ctx, "root/u1/new"); err != nil {
			t.Fatalf("EnsureDirectory() error = %v", err)
		}
		write(t, s, "root/u1/new/kept.txt", "kept")

		if err := s.RenameEntry(ctx, "root/u1/new", "root/u1/old"); err != nil {
			t.Fatalf("RenameEntry() error = %v", err)
		}
		if got := read(t, s, "root/u1/old/kept.txt"); got != "kept" {
			t.Errorf("moved blob = %q, want %q", got, "kept")
		}
		var buf bytes.Buffer
		if err := s.ReadBlob(ctx, "root/u1/old/stale.txt", &buf); !drive.IsKind(err, drive.KindNotFound) {
			t.Errorf("leftover blob survived, err = %v", err)
		}
	})

	t.Run("rename missing", func(t *testing.T) {
		s := newStore(t)
		if err := s.RenameEntry(ctx, "root/u1/nope", "root/u1/other"); !drive.IsKind(err, drive.KindNotFound) {
			t.Errorf("RenameEntry() error = %v, want not found", err)
		}
	})

	t.Run("delete tree", func(t *testing.T) {
		s := newStore(t)
		if err := s.EnsureDirectory(ctx, "root/u1/docs"); err != nil {
			t.Fatalf("EnsureDirectory() error = %v", err)
		}
		write(t, s, "root/u1/docs/a.txt", "a")
		write(t, s, "root/u1/docs-other.txt", "keep")

		if err := s.DeleteTree(ctx, "root/u1/docs"); err != nil {
			t.Fatalf("DeleteTree() error = %v", err)
		}
		var buf bytes.Buffer
		if err := s.ReadBlob(ctx, "root/u1/docs/a.txt", &buf); !drive.IsKind(err, drive.KindNotFound) {
			t.Errorf("blob survived DeleteTree, err = %v", err)
		}
		if got := read(t, s, "root/u1/docs-other.txt"); got != "keep" {
			t.Errorf("sibling blob = %q, want %q", got, "keep")
		}
		if err := s.DeleteTree(ctx, "root/u1/docs"); err != nil {
			t.Errorf("DeleteTree() on missing directory error = %v", err)
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		s := newStore(t)
		if err := s.ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}
