package encryption

import (
	"bytes"
	"strings"
	"testing"
	"testing/iotest"

	"drive-go/internal/drive"
)

func TestTestEncryptor_Setup(t *testing.T) {
	e := NewTestEncryptor()
	if err := e.Setup(""); !drive.IsKind(err, drive.KindValidation) {
		t.Errorf("Setup(\"\") error = %v, want validation", err)
	}
	if err := e.Setup("passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if e.setups != 1 {
		t.Errorf("setups = %d, want 1", e.setups)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false, want true")
	}
}

func TestTestEncryptor_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "text", input: []byte("quarterly report, final draft")},
		{name: "empty", input: nil},
		{name: "binary", input: []byte{0x00, 0xff, 'd', 0x7f}},
		{name: "longer than the mask", input: bytes.Repeat([]byte("0123456789"), 5000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewTestEncryptor()

			var sealed bytes.Buffer
			if err := e.Encrypt(iotest.OneByteReader(bytes.NewReader(tt.input)), &sealed); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if got, want := sealed.Len(), len(maskHeader)+len(tt.input); got != want {
				t.Errorf("ciphertext length = %d, want %d", got, want)
			}
			if len(tt.input) > 4 && bytes.Contains(sealed.Bytes(), tt.input) {
				t.Error("ciphertext contains the plaintext")
			}

			dc, err := e.Unlock("passphrase")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var opened bytes.Buffer
			if err := dc.Decrypt(&sealed, &opened); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(opened.Bytes(), tt.input) {
				t.Errorf("Decrypt() = %q, want %q", opened.Bytes(), tt.input)
			}
		})
	}
}

func TestTestDecryptionContext_Rejects(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{name: "plaintext", blob: "not a masked blob at all"},
		{name: "truncated header", blob: "DRVM"},
		{name: "empty", blob: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := (TestDecryptionContext{}).Decrypt(strings.NewReader(tt.blob), &out); err == nil {
				t.Error("Decrypt() expected error")
			}
		})
	}
}

func TestTestEncryptor_WrongPassphrase(t *testing.T) {
	e := NewTestEncryptor()
	if _, err := e.Unlock("wrong"); !drive.IsKind(err, drive.KindAuthorization) {
		t.Errorf("Unlock(wrong) error = %v, want authorization", err)
	}
}
