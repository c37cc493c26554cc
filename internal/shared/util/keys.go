package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// OwnerSegment maps an owner id to the storage path segment its documents
// live under. Raw user ids never appear in object keys.
func OwnerSegment(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:])
}
