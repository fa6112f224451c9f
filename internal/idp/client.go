package idp

import (
	"fmt"
	"net/http"

	"github.com/go-sessiond/sessiond/internal/config"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

// newHTTPClient creates the base HTTP client for identity-provider calls,
// with optional shared-secret authentication.
func newHTTPClient(cfg *config.Config) (*http.Client, error) {
	client, err := httpclient.NewAuthClient(
		cfg.IdPAuthMode,
		cfg.IdPAuthSecret,
		httpclient.WithTimeout(cfg.IdPTimeout),
		httpclient.WithHeaderName(cfg.IdPAuthHeader),
		httpclient.WithInsecureSkipVerify(cfg.IdPInsecureSkipVerify),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}
	return client, nil
}

// newRetryClient wraps the base client with retry support for the token
// endpoint. Retries here cover transport-level flakiness inside a single
// refresh attempt; attempt-level retry policy lives in the refresher.
func newRetryClient(base *http.Client, cfg *config.Config) (*retry.Client, error) {
	retryClient, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(base),
		retry.WithMaxRetries(cfg.IdPMaxRetries),
		retry.WithInitialRetryDelay(cfg.IdPRetryDelay),
		retry.WithMaxRetryDelay(cfg.IdPMaxRetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return retryClient, nil
}
