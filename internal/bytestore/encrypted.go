package bytestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"drive-go/internal/drive"
)

// EncryptedStore encrypts blob contents before handing them to the wrapped
// store. Writes need only the public key. Reads fail with an authorization
// error until Unlock has been called with the passphrase.
//
// The ciphertext length is not known up front, so each write is spooled
// to a temp file in spoolDir before being passed on with its exact size.
type EncryptedStore struct {
	drive.ByteStore
	encryptor drive.Encryptor
	spoolDir  string

	mu  sync.RWMutex
	dec drive.DecryptionContext
}

var _ drive.ByteStore = (*EncryptedStore)(nil)

// NewEncryptedStore wraps inner. An empty spoolDir uses the system temp dir.
func NewEncryptedStore(inner drive.ByteStore, encryptor drive.Encryptor, spoolDir string) *EncryptedStore {
	return &EncryptedStore{ByteStore: inner, encryptor: encryptor, spoolDir: spoolDir}
}

// Unlock opens the private key for subsequent reads.
func (s *EncryptedStore) Unlock(passphrase string) error {
	dec, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.dec = dec
	s.mu.Unlock()
	return nil
}

func (s *EncryptedStore) WriteBlob(ctx context.Context, p string, r io.Reader, size int64) error {
	const op = "write blob"
	if !s.encryptor.IsConfigured() {
		return &drive.Error{Kind: drive.KindValidation, Op: op, Path: p, Message: "encryption keys are not set up"}
	}

	spool, err := os.CreateTemp(s.spoolDir, ".enc-*")
	if err != nil {
		return drive.StorageError(op, p, fmt.Errorf("creating spool file: %w", err))
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	counter := &countingReader{r: contextReader{ctx: ctx, r: r}}
	if err := s.encryptor.Encrypt(counter, spool); err != nil {
		return drive.StorageError(op, p, err)
	}
	if counter.n != size {
		return &drive.Error{Kind: drive.KindValidation, Op: op, Path: p,
			Message: fmt.Sprintf("size mismatch: expected %d bytes, got %d", size, counter.n)}
	}

	cipherSize, err := spool.Seek(0, io.SeekCurrent)
	if err != nil {
		return drive.StorageError(op, p, err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return drive.StorageError(op, p, err)
	}
	return s.ByteStore.WriteBlob(ctx, p, spool, cipherSize)
}

func (s *EncryptedStore) ReadBlob(ctx context.Context, p string, w io.Writer) error {
	s.mu.RLock()
	dec := s.dec
	s.mu.RUnlock()
	if dec == nil {
		return &drive.Error{Kind: drive.KindAuthorization, Op: "read blob", Path: p, Message: "encrypted store is locked"}
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.ByteStore.ReadBlob(ctx, p, pw))
	}()

	err := dec.Decrypt(pr, w)
	pr.CloseWithError(err)
	if err != nil {
		if drive.KindOf(err) != drive.KindInternal {
			return err
		}
		return drive.StorageError("read blob", p, err)
	}
	return nil
}
