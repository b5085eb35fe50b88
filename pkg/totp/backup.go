package totp

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	DefaultBackupCodeCount = 10
	backupCodeBytes        = 4
	// BackupCodeLength is the length of a generated backup code in characters.
	BackupCodeLength = backupCodeBytes * 2
)

// GenerateBackupCodes creates count single-use backup codes.
// Each code is 8 upper-case hexadecimal characters derived from 4 random bytes.
func GenerateBackupCodes(count int) ([]string, error) {
	if count < 1 {
		return nil, ErrInvalidBackupCodeCount
	}

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	buf := make([]byte, backupCodeBytes)
	defer clear(buf)

	for len(codes) < count {
		if _, err := rand.Read(buf); err != nil {
			return nil, errors.Join(ErrFailedToGenerateBackupCode, err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		// 32 bits per code makes collisions rare, but a batch must never repeat a code.
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// NormalizeBackupCode canonicalizes user input: spaces and dashes are removed and letters upper-cased.
func NormalizeBackupCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.NewReplacer(" ", "", "-", "").Replace(code)
	return strings.ToUpper(code)
}

// IsBackupCodeShape reports whether code looks like a generated backup code.
func IsBackupCodeShape(code string) bool {
	if len(code) != BackupCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
