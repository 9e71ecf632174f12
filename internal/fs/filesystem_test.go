package fs

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"drive-go/internal/drive"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func relativePaths(files []*drive.LocalFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelativePath
	}
	return out
}

func TestOSFilesystem_Resolve(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	writeFile(t, file, "hello")
	fsys := NewOSFilesystem(nil)

	t.Run("file", func(t *testing.T) {
		p, err := fsys.Resolve(file)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.IsDir() || p.String() != file {
			t.Errorf("got %s dir=%v", p, p.IsDir())
		}
	})

	t.Run("directory", func(t *testing.T) {
		p, err := fsys.Resolve(dir)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !p.IsDir() {
			t.Error("expected directory")
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := fsys.Resolve(filepath.Join(dir, "nope"))
		if !drive.IsKind(err, drive.KindNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("symlink", func(t *testing.T) {
		link := filepath.Join(dir, "link")
		if err := os.Symlink(file, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		_, err := fsys.Resolve(link)
		if !drive.IsKind(err, drive.KindValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestOSFilesystem_Open(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	writeFile(t, file, "hello")
	fsys := NewOSFilesystem(nil)

	p, err := fsys.Resolve(file)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	rc, err := fsys.Open(p)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q", data)
	}

	d, _ := fsys.Resolve(dir)
	if _, err := fsys.Open(d); !drive.IsKind(err, drive.KindValidation) {
		t.Errorf("opening a directory: expected validation error, got %v", err)
	}
}

func TestOSFilesystem_FindFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "debug.log"), "log")
	writeFile(t, filepath.Join(root, "docs", "b.md"), "b")
	writeFile(t, filepath.Join(root, "docs", "draft", "c.md"), "c")
	writeFile(t, filepath.Join(root, "node_modules", "x.js"), "x")
	writeFile(t, filepath.Join(root, "docs", IgnoreFileName), "draft/\n")

	tests := []struct {
		name      string
		ignore    []string
		recursive bool
		want      []string
	}{
		{
			name:      "non-recursive lists top level files",
			recursive: false,
			want:      []string{"a.txt", "debug.log"},
		},
		{
			name:      "recursive honours nested ignore file",
			recursive: true,
			want:      []string{"a.txt", "debug.log", "docs/b.md", "node_modules/x.js"},
		},
		{
			name:      "config patterns prune files and directories",
			ignore:    []string{"*.log", "node_modules/"},
			recursive: true,
			want:      []string{"a.txt", "docs/b.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := NewOSFilesystem(tt.ignore)
			dir, err := fsys.Resolve(root)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			files, err := fsys.FindFiles(dir, tt.recursive)
			if err != nil {
				t.Fatalf("FindFiles() error = %v", err)
			}
			if got := relativePaths(files); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindFiles() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("root ignore file applies", func(t *testing.T) {
		writeFile(t, filepath.Join(root, IgnoreFileName), "docs/b.md\n")
		defer os.Remove(filepath.Join(root, IgnoreFileName))

		fsys := NewOSFilesystem(nil)
		dir, _ := fsys.Resolve(root)
		files, err := fsys.FindFiles(dir, true)
		if err != nil {
			t.Fatalf("FindFiles() error = %v", err)
		}
		want := []string{"a.txt", "debug.log", "node_modules/x.js"}
		if got := relativePaths(files); !reflect.DeepEqual(got, want) {
			t.Errorf("FindFiles() = %v, want %v", got, want)
		}
	})

	t.Run("file is rejected", func(t *testing.T) {
		fsys := NewOSFilesystem(nil)
		p, _ := fsys.Resolve(filepath.Join(root, "a.txt"))
		if _, err := fsys.FindFiles(p, false); !drive.IsKind(err, drive.KindValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}
