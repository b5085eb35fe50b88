package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the required master key size (256 bits for AES-256).
	KeySize = 32

	// hkdfInfo provides domain separation for the derived encryption key.
	hkdfInfo = "twofactor-vault-v1"
)

// deriveKey expands the master key into the AES key actually used by the cipher.
// The caller must clear the returned slice once the cipher has been built.
func deriveKey(master []byte) ([]byte, error) {
	if len(master) != KeySize {
		return nil, ErrInvalidKeyLength
	}

	r := hkdf.New(sha256.New, master, nil, []byte(hkdfInfo))
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(r, derived); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return derived, nil
}

// GenerateKey creates a new random 32-byte master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Join(ErrFailedToGenerateKey, err)
	}
	return key, nil
}

// GenerateEncodedKey generates a master key and returns it base64-encoded,
// ready to be stored in the TWOFA_VAULT_KEY environment variable.
func GenerateEncodedKey() (string, error) {
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	defer clear(key)
	return base64.StdEncoding.EncodeToString(key), nil
}

// DecodeKey decodes a base64-encoded master key and checks its length.
func DecodeKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrKeyNotSet
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Join(ErrInvalidKeyEncoding, err)
	}
	if len(key) != KeySize {
		clear(key)
		return nil, ErrInvalidKeyLength
	}
	return key, nil
}
