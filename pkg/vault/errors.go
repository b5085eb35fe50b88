package vault

import "errors"

var (
	// Key errors
	ErrKeyNotSet           = errors.New("vault key not set")
	ErrInvalidKeyLength    = errors.New("invalid vault key: must be 32 bytes")
	ErrInvalidKeyEncoding  = errors.New("invalid vault key: must be base64 encoded")
	ErrKeyDerivationFailed = errors.New("vault key derivation failed")
	ErrFailedToGenerateKey = errors.New("failed to generate vault key")

	// Encryption/decryption errors
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidBlob      = errors.New("invalid ciphertext blob")
	ErrUnknownVersion   = errors.New("unknown ciphertext blob version")
)
