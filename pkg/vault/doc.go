// Package vault protects TOTP secrets and backup-code sets at rest.
//
// A Vault is built from a 32-byte master key supplied by configuration. The
// key actually used by the cipher is derived with HKDF-SHA256, and every blob
// is sealed with AES-256-GCM under a fresh random nonce:
//
//	base64( version(1) | nonce(12) | ciphertext | tag(16) )
//
// GCM is an AEAD construction: decrypting with the wrong key, or decrypting a
// corrupted or tampered blob, fails with ErrDecryptionFailed instead of
// returning garbage that could accidentally match a comparison.
//
// Seal and Open additionally authenticate a caller-supplied binding as
// associated data. Binding a blob to its owner and purpose (for example
// "totp-secret:42") prevents a blob copied into another row or column from
// decrypting there.
//
// # Key Rotation
//
// WithPreviousKeys registers retired master keys that are tried, in order,
// after the primary key during decryption. New blobs are always sealed with
// the primary key, so credentials migrate as they are rewritten.
//
// # Usage
//
//	v, err := vault.NewFromBase64(os.Getenv("TWOFA_VAULT_KEY"))
//	blob, err := v.Seal([]byte("secret"), []byte("totp-secret:42"))
//	plain, err := v.Open(blob, []byte("totp-secret:42"))
package vault
