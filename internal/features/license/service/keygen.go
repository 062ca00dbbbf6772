package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// generateKey returns a 32-character hex credential.
func generateKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
