package audit

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSubjectID returns the hex SHA-256 of a normalized tax ID for SubjectIDHash.
func HashSubjectID(digits string) string {
	if digits == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(digits))
	return hex.EncodeToString(sum[:])
}
