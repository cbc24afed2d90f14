package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRequestID returns a random 128-bit hex token used to correlate the log
// lines of one request.
func NewRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
