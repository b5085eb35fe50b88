package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// blobVersion prefixes every blob so the format can evolve without ambiguity.
// Layout: version(1) | nonce(12) | ciphertext | tag(16), base64 std encoded.
const blobVersion byte = 0x01

// Vault seals secret material with AES-256-GCM.
// A Vault holds no per-user state and is safe for concurrent use.
type Vault struct {
	primary  cipher.AEAD
	previous []cipher.AEAD
}

// Option configures a Vault.
type Option func(*options)

type options struct {
	previous [][]byte
}

// WithPreviousKeys registers retired master keys. They are only used for
// decryption, so blobs written before a key rotation remain readable.
func WithPreviousKeys(keys ...[]byte) Option {
	return func(o *options) {
		for _, k := range keys {
			if len(k) > 0 {
				o.previous = append(o.previous, k)
			}
		}
	}
}

// New creates a Vault from a 32-byte master key.
func New(key []byte, opts ...Option) (*Vault, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	primary, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	v := &Vault{primary: primary}
	for _, k := range o.previous {
		aead, err := newAEAD(k)
		if err != nil {
			return nil, err
		}
		v.previous = append(v.previous, aead)
	}
	return v, nil
}

// NewFromBase64 creates a Vault from base64-encoded master keys.
func NewFromBase64(key string, previous ...string) (*Vault, error) {
	raw, err := DecodeKey(key)
	if err != nil {
		return nil, err
	}
	defer clear(raw)

	old := make([][]byte, 0, len(previous))
	defer func() {
		for _, k := range old {
			clear(k)
		}
	}()
	for _, p := range previous {
		k, err := DecodeKey(p)
		if err != nil {
			return nil, err
		}
		old = append(old, k)
	}

	return New(raw, WithPreviousKeys(old...))
}

func newAEAD(master []byte) (cipher.AEAD, error) {
	key, err := deriveKey(master)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}
	return aead, nil
}

// Encrypt seals plaintext and returns a transport-encoded blob.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	return v.Seal(plaintext, nil)
}

// Decrypt opens a blob produced by Encrypt.
func (v *Vault) Decrypt(blob string) ([]byte, error) {
	return v.Open(blob, nil)
}

// Seal encrypts plaintext and authenticates binding as associated data.
// The same binding must be presented to Open.
func (v *Vault) Seal(plaintext, binding []byte) (string, error) {
	nonceSize := v.primary.NonceSize()
	out := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+v.primary.Overhead())
	out[0] = blobVersion

	nonce := out[1 : 1+nonceSize]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	out = v.primary.Seal(out, nonce, plaintext, binding)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a blob produced by Seal.
// Any failure, including a wrong key, a wrong binding or a tampered blob,
// is reported as ErrDecryptionFailed and never yields partial plaintext.
func (v *Vault) Open(blob string, binding []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, ErrInvalidBlob, err)
	}

	nonceSize := v.primary.NonceSize()
	if len(raw) < 1+nonceSize+v.primary.Overhead() {
		return nil, errors.Join(ErrDecryptionFailed, ErrInvalidBlob)
	}
	if raw[0] != blobVersion {
		return nil, errors.Join(ErrDecryptionFailed, ErrUnknownVersion)
	}

	nonce, sealed := raw[1:1+nonceSize], raw[1+nonceSize:]

	if plaintext, err := v.primary.Open(nil, nonce, sealed, binding); err == nil {
		return plaintext, nil
	}
	for _, aead := range v.previous {
		if plaintext, err := aead.Open(nil, nonce, sealed, binding); err == nil {
			return plaintext, nil
		}
	}

	return nil, ErrDecryptionFailed
}
