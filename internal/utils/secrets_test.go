package utils

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	secret, err := GenerateSecret(32)
	require.NoError(t, err)

	// 32 random bytes hex-encoded
	assert.Len(t, secret, 64)
	_, err = hex.DecodeString(secret)
	assert.NoError(t, err)
}

func TestGenerateSigningSecrets(t *testing.T) {
	access, refresh, offer, err := GenerateSigningSecrets()
	require.NoError(t, err)

	// three independent keys: an offer link must never validate as a session
	assert.NotEqual(t, access, refresh)
	assert.NotEqual(t, access, offer)
	assert.NotEqual(t, refresh, offer)
	assert.Len(t, access, 64)
	assert.Len(t, refresh, 64)
	assert.Len(t, offer, 64)
}
