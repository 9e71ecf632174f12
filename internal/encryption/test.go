package encryption

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"drive-go/internal/drive"
)

// maskHeader prefixes every blob written by TestEncryptor.
var maskHeader = []byte("DRVMASK1")

const maskKey = "drive-test-mask"

// TestEncryptor obscures bytes with a fixed repeating XOR mask. It holds no
// keys and protects nothing, but stored blobs never contain the plaintext,
// which lets tests observe the encrypted path end to end. Every passphrase
// except "wrong" unlocks it.
type TestEncryptor struct {
	setups int
}

var _ drive.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return drive.ValidationError("encryption setup", "passphrase must not be empty")
	}
	e.setups++
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(maskHeader); err != nil {
		return fmt.Errorf("writing mask header: %w", err)
	}
	return applyMask(r, w)
}

func (e *TestEncryptor) Unlock(passphrase string) (drive.DecryptionContext, error) {
	if passphrase == "wrong" {
		return nil, drive.AuthorizationError("unlock", "incorrect passphrase")
	}
	return TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

var _ drive.DecryptionContext = TestDecryptionContext{}

func (TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(maskHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading mask header: %w", err)
	}
	if !bytes.Equal(header, maskHeader) {
		return fmt.Errorf("blob was not written by the test encryptor")
	}
	return applyMask(r, w)
}

// applyMask XORs the stream with maskKey. Masking is its own inverse.
func applyMask(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	for i := 0; ; i++ {
		b, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading data: %w", err)
		}
		if err := bw.WriteByte(b ^ maskKey[i%len(maskKey)]); err != nil {
			return fmt.Errorf("writing data: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	return nil
}
