package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the dedup fingerprint for a record's content:
// hex-encoded SHA-256. Pure and deterministic; identical content always
// maps to the same fingerprint. The fingerprint is only used for the
// uniqueness constraint, never displayed.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
