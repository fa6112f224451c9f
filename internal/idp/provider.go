package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-sessiond/sessiond/internal/config"
	"github.com/go-sessiond/sessiond/internal/core"
	"github.com/go-sessiond/sessiond/internal/token"

	retry "github.com/appleboy/go-httpretry"
)

// OAuth2 error codes the provider may return on the token endpoint
const (
	errInvalidGrant = "invalid_grant"
	errInvalidToken = "invalid_token"
)

// Compile-time interface check.
var _ core.Provider = (*HTTPProvider)(nil)

// HTTPProvider talks to an OAuth2/OIDC identity provider's token and
// end-session endpoints.
type HTTPProvider struct {
	config      *config.Config
	retryClient *retry.Client
	baseClient  *http.Client
}

// New creates an identity-provider client from configuration.
func New(cfg *config.Config) (*HTTPProvider, error) {
	base, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	retryClient, err := newRetryClient(base, cfg)
	if err != nil {
		return nil, err
	}
	return &HTTPProvider{
		config:      cfg,
		retryClient: retryClient,
		baseClient:  base,
	}, nil
}

// tokenResponse is the token endpoint's success payload (RFC 6749 §5.1)
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
}

// tokenError is the token endpoint's failure payload (RFC 6749 §5.2)
type tokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Refresh exchanges a refresh token for a fresh grant. Failures are mapped
// onto the token package's sentinel errors: invalid_grant is terminal,
// transport errors and provider-side 5xx are ErrProviderConnection
// (retryable), anything else is ErrProviderRejected (retryable-unknown).
func (p *HTTPProvider) Refresh(ctx context.Context, refreshToken string) (*core.Grant, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", p.config.ClientID)
	if p.config.ClientSecret != "" {
		form.Set("client_secret", p.config.ClientSecret)
	}
	form.Set("refresh_token", refreshToken)

	resp, err := p.retryClient.Post(
		ctx,
		p.config.TokenEndpoint,
		retry.WithBody("application/x-www-form-urlencoded", strings.NewReader(form.Encode())),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrProviderConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response", token.ErrProviderInvalidResp)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyTokenError(resp.StatusCode, body)
	}

	var grant tokenResponse
	if err := json.Unmarshal(body, &grant); err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrProviderInvalidResp, err)
	}
	if grant.AccessToken == "" {
		return nil, fmt.Errorf(
			"%w: token endpoint returned 2xx but missing access_token",
			token.ErrProviderInvalidResp,
		)
	}

	tokenType := grant.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &core.Grant{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		IDToken:      grant.IDToken,
		ExpiresIn:    grant.ExpiresIn,
		TokenType:    tokenType,
	}, nil
}

// classifyTokenError maps a non-2xx token endpoint response onto the error
// taxonomy. The expired-grant class must never be confused with a transient
// failure: it forces a full re-login.
func classifyTokenError(statusCode int, body []byte) error {
	var apiErr tokenError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		if apiErr.Error == errInvalidGrant || apiErr.Error == errInvalidToken {
			return fmt.Errorf("%w: %s", token.ErrExpiredGrant, apiErr.ErrorDescription)
		}
		if statusCode >= 500 || statusCode == http.StatusTooManyRequests {
			return fmt.Errorf(
				"%w: HTTP %d - %s",
				token.ErrProviderConnection, statusCode, apiErr.Error,
			)
		}
		return fmt.Errorf("%w: %s - %s", token.ErrProviderRejected, apiErr.Error, apiErr.ErrorDescription)
	}

	if statusCode >= 500 || statusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: HTTP %d", token.ErrProviderConnection, statusCode)
	}

	bodyPreview := string(body)
	if len(bodyPreview) > 200 {
		bodyPreview = bodyPreview[:200] + "..."
	}
	return fmt.Errorf("%w: HTTP %d - %s", token.ErrProviderRejected, statusCode, bodyPreview)
}

// Logout notifies the provider's end-session endpoint. Best effort: the
// local session is torn down regardless, so failures are logged and
// swallowed. No retries; a dead provider should not delay sign-out.
func (p *HTTPProvider) Logout(ctx context.Context, idTokenHint string) {
	if p.config.EndSessionEndpoint == "" {
		return
	}

	q := url.Values{}
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if p.config.LogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", p.config.LogoutRedirectURL)
	}

	endpoint := p.config.EndSessionEndpoint
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		log.Printf("idp: failed to build logout request: %v", err)
		return
	}

	resp, err := p.baseClient.Do(req)
	if err != nil {
		log.Printf("idp: logout call failed: %v", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("idp: logout returned HTTP %d", resp.StatusCode)
	}
}

// Name returns provider name for logging
func (p *HTTPProvider) Name() string {
	return "oidc"
}
