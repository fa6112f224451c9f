package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoRandomString(t *testing.T) {
	s1, err := CryptoRandomString(40)
	require.NoError(t, err)
	assert.Len(t, s1, 40)

	s2, err := CryptoRandomString(40)
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)

	// Odd lengths are honored exactly.
	odd, err := CryptoRandomString(15)
	require.NoError(t, err)
	assert.Len(t, odd, 15)
}

func TestHashAndVerifySecret(t *testing.T) {
	secret, err := CryptoRandomString(40)
	require.NoError(t, err)
	salt, err := CryptoRandomString(16)
	require.NoError(t, err)

	hash := HashSecret(secret, salt)
	assert.NotEmpty(t, hash)
	assert.NotContains(t, hash, secret)

	assert.True(t, VerifySecret(secret, salt, hash))
	assert.False(t, VerifySecret("wrong", salt, hash))
	assert.False(t, VerifySecret(secret, "wrong-salt", hash))
}

func TestHashSecret_SaltChangesHash(t *testing.T) {
	h1 := HashSecret("secret", "salt-a")
	h2 := HashSecret("secret", "salt-b")
	assert.NotEqual(t, h1, h2)
}

func TestSHA256Hex(t *testing.T) {
	// Known vector for the empty string.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SHA256Hex(""),
	)
	assert.Len(t, SHA256Hex("anything"), 64)
}
