package crypto

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"drive-go/internal/drive"
)

func TestBcryptHasher_HashCompare(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("Hash() returned the plaintext")
	}

	if err := h.Compare(hash, "correct horse"); err != nil {
		t.Errorf("Compare(correct) error = %v", err)
	}
	if err := h.Compare(hash, "wrong horse"); !drive.IsKind(err, drive.KindAuthorization) {
		t.Errorf("Compare(wrong) error = %v, want authorization", err)
	}
}

func TestBcryptHasher_Salted(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	a, _ := h.Hash("same password")
	b, _ := h.Hash("same password")
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}

func TestBcryptHasher_Validation(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
	}{
		{"too short", "short"},
		{"empty", ""},
		{"too long", strings.Repeat("x", 73)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.Hash(tt.password); !drive.IsKind(err, drive.KindValidation) {
				t.Errorf("Hash() error = %v, want validation", err)
			}
		})
	}
}

func TestBcryptHasher_MalformedHash(t *testing.T) {
	h := NewBcryptHasher(0)
	err := h.Compare("not-a-bcrypt-hash", "whatever1")
	if err == nil {
		t.Fatal("Compare() with malformed hash should fail")
	}
	if drive.IsKind(err, drive.KindAuthorization) {
		t.Error("malformed hash should not look like a password mismatch")
	}
}
