package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret generates a cryptographically secure random secret
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSigningSecrets mints the three independent 256-bit keys the service
// signs with: operator access tokens, refresh tokens, and offer links. Each
// key must differ so a leaked offer URL can never mint an operator session.
func GenerateSigningSecrets() (accessSecret, refreshSecret, offerSecret string, err error) {
	accessSecret, err = GenerateSecret(32)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate access secret: %w", err)
	}

	refreshSecret, err = GenerateSecret(32)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate refresh secret: %w", err)
	}

	offerSecret, err = GenerateSecret(32)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate offer secret: %w", err)
	}

	return accessSecret, refreshSecret, offerSecret, nil
}
