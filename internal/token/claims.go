package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// IDClaims holds the subset of OIDC ID token claims the session view needs.
type IDClaims struct {
	Subject           string
	Email             string
	Name              string
	PreferredUsername string
}

// ParseIDClaims extracts profile claims from an ID token without verifying
// the signature. The ID token arrives over the provider's TLS channel and is
// only used for display; access control never depends on these values.
func ParseIDClaims(idToken string) (*IDClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderInvalidResp, err)
	}

	out := &IDClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		out.Name = name
	}
	if username, ok := claims["preferred_username"].(string); ok {
		out.PreferredUsername = username
	}
	return out, nil
}
