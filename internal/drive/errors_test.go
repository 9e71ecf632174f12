package drive

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"validation", ValidationError("op", "bad"), KindValidation},
		{"wrapped conflict", fmt.Errorf("outer: %w", ConflictError("op", "dup")), KindConflict},
		{"plain error", errors.New("boom"), KindInternal},
		{"storage not exist", StorageError("op", "p", fs.ErrNotExist), KindNotFound},
		{"storage other", StorageError("op", "p", fs.ErrPermission), KindStorageIO},
		{"storage wraps not found", StorageError("op", "p", NotFoundError("read", "gone")), KindNotFound},
		{"storage keeps conflict", StorageError("op", "p", ConflictError("rename", "exists")), KindConflict},
		{"storage keeps authorization", StorageError("op", "p", AuthorizationError("read", "locked")), KindAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsKind_nil(t *testing.T) {
	if IsKind(nil, KindInternal) {
		t.Error("nil error should not have a kind")
	}
}

func TestError_Error(t *testing.T) {
	err := &Error{Kind: KindStorageIO, Op: "upload", Path: "root/u/a.txt", Err: errors.New("disk full")}
	want := "upload: storage io (root/u/a.txt): disk full"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFoundError("stat", "node x not found"))
	if !errors.Is(err, &Error{Kind: KindNotFound}) {
		t.Error("errors.Is should match on kind")
	}
	if errors.Is(err, &Error{Kind: KindConflict}) {
		t.Error("errors.Is matched the wrong kind")
	}
}
