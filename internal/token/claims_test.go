package token

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestParseIDClaims(t *testing.T) {
	raw := signTestIDToken(t, jwt.MapClaims{
		"sub":                "user-42",
		"email":              "user@example.com",
		"name":               "Test User",
		"preferred_username": "tuser",
	})

	claims, err := ParseIDClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "Test User", claims.Name)
	assert.Equal(t, "tuser", claims.PreferredUsername)
}

func TestParseIDClaims_PartialClaims(t *testing.T) {
	raw := signTestIDToken(t, jwt.MapClaims{"sub": "user-42"})

	claims, err := ParseIDClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Empty(t, claims.Email)
	assert.Empty(t, claims.Name)
}

func TestParseIDClaims_Malformed(t *testing.T) {
	_, err := ParseIDClaims("not-a-jwt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderInvalidResp)
}
