package testutil

import (
	"drive-go/internal/drive"
	"drive-go/internal/encryption"
)

// NewTestEncryptor returns a reversible, keyless encryptor. Unlocking with
// the passphrase "wrong" fails.
func NewTestEncryptor() drive.Encryptor {
	return encryption.NewTestEncryptor()
}
