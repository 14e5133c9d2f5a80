package realtime

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRandomHex returns 2*n hex characters of secure randomness.
func NewRandomHex(n int) string {
	if n <= 0 {
		n = 8
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
