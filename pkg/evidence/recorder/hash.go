package recorder

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPayload returns the hex SHA-256 of a dispatch payload, or "" for an
// empty one. Payloads are already capped by the dispatcher, so the whole
// text is hashed.
func HashPayload(payload string) string {
	if payload == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
