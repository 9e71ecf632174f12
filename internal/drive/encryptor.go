package drive

import "io"

// Encryptor protects blob contents at rest.
// Encryption needs only the public key; decryption requires unlocking the
// private key with a passphrase.
type Encryptor interface {
	// Setup generates and stores a key pair, sealing the private key with
	// passphrase. Run once when encryption is first configured.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key for the rest of the process.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether the key pair exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
