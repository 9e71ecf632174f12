package drive

import (
	"strings"
	"testing"
)

func TestPathBuilder(t *testing.T) {
	b := NewPathBuilder("")
	if b.StorageRoot != DefaultStorageRoot {
		t.Fatalf("StorageRoot = %q, want %q", b.StorageRoot, DefaultStorageRoot)
	}

	tests := []struct {
		name   string
		parent *Node
		child  string
		want   string
	}{
		{"root level", nil, "docs", "root/u1/docs"},
		{"nested", &Node{StoragePath: "root/u1/docs"}, "a.txt", "root/u1/docs/a.txt"},
		{"deep", &Node{StoragePath: "root/u1/a/b/c"}, "d", "root/u1/a/b/c/d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Build("u1", tt.parent, tt.child); got != tt.want {
				t.Errorf("Build() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := NewPathBuilder("files").RootPath("u2"); got != "files/u2" {
		t.Errorf("RootPath() = %q", got)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "report.pdf", false},
		{"spaces and unicode", "Résumé final.docx", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"nul", "a\x00b", true},
		{"too long", strings.Repeat("x", 256), true},
		{"max length", strings.Repeat("x", 255), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName("test", tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !IsKind(err, KindValidation) {
				t.Errorf("expected validation kind, got %v", KindOf(err))
			}
		})
	}
}
