package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random 32-character hex id, used for request ids and
// opaque session tokens.
func NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
