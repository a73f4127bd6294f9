package shared

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAPICookie returns the sha256 hex digest of the upstream session
// cookie value. Sessions carry the hash instead of the cookie so rotation
// can be detected without storing the credential itself.
func HashAPICookie(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
