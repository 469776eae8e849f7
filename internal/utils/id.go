package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateToken returns length random bytes as lowercase hex.
func GenerateToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewRequestID returns a 32 character id for correlating log lines of one request.
func NewRequestID() string {
	id, err := GenerateToken(16)
	if err != nil {
		return ""
	}
	return id
}
