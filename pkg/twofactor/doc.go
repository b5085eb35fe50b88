// Package twofactor implements TOTP second-factor authentication on top of
// pluggable storage: enrollment, verification with clock-drift tolerance,
// single-use backup codes and an append-only attempt log.
//
// # Architecture
//
// Service composes the lower level packages:
//
//   - pkg/totp generates secrets, codes and backup codes and validates codes
//     across the drift window with constant-time comparison.
//   - pkg/vault seals the secret and the backup-code set with AES-256-GCM.
//     Each blob is bound to "<purpose>:<userID>" so it cannot be replayed into
//     another user's row or another column.
//   - Storage persists one Credential per user and appends Attempt records.
//     Adapters live in pkg/store.
//
// A credential moves through the states NotConfigured, Enabled,
// Enabled-with-rotated-secret and Disabled. Enable is accepted from every
// state and replaces the secret and the backup codes in one upsert. Disable
// erases both blobs, so re-enabling never revives an old secret or old codes.
//
// # Concurrency
//
// Every state change after enrollment is a read-modify-write guarded by a
// compare-and-swap on Credential.Version. When two requests race to consume
// the same backup code, exactly one write lands; the loser retries, no longer
// finds the code and fails. Decrypted secrets live only for the duration of a
// call and are zeroed before returning.
//
// # Usage
//
//	cfg := twofactor.DefaultConfig()
//	cfg.VaultKey = os.Getenv("TWOFA_VAULT_KEY")
//	cfg.Issuer = "Acme"
//
//	svc, err := twofactor.NewFromConfig(memstore.New(), cfg,
//		twofactor.WithLogger(log),
//		twofactor.WithLockout(5, 15*time.Minute),
//	)
//
//	secret, _ := svc.GenerateSecret()
//	uri, _ := svc.ProvisioningURI("alice@example.com", secret) // render as QR
//	codes, err := svc.Enable(ctx, "42", secret)                // show once
//
//	ctx = twofactor.WithSource(ctx, twofactor.Source{IP: ip, UserAgent: ua})
//	if !svc.Verify(ctx, "42", submitted) {
//		// deny
//	}
//
// # Error Handling
//
// Verify is fail-closed and collapses every failure to false. VerifyDetailed
// returns the typed Outcome and an error wrapping one of the classes
// ErrValidation, ErrNotConfigured, ErrCrypto or ErrStorage, so a broken
// dependency is never mistaken for a wrong code:
//
//	res, err := svc.VerifyDetailed(ctx, userID, code)
//	if res.Outcome.Operational() {
//		// page someone
//	}
//
// Operational failures are logged at error level, rejected codes at info.
package twofactor
