// Package auth supplies backend credentials to the sync queue manager.
// Tokens are fetched fresh on every drain attempt; the queue never stores
// them, since they may rotate while items sit queued.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StaticTokenSource returns a fixed token from configuration. Used for
// long-lived device credentials.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a source that always returns token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// AccessToken returns the configured token.
func (s *StaticTokenSource) AccessToken(ctx context.Context) (string, error) {
	return s.token, nil
}

// EndpointTokenSource exchanges a device key for a short-lived access token
// on every call.
type EndpointTokenSource struct {
	url       string
	deviceKey string
	client    *http.Client
}

// NewEndpointTokenSource creates a source backed by a token endpoint.
func NewEndpointTokenSource(url, deviceKey string, client *http.Client) *EndpointTokenSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &EndpointTokenSource{url: url, deviceKey: deviceKey, client: client}
}

// AccessToken requests a fresh token. An empty token with nil error never
// happens: any failure is reported as an error.
func (s *EndpointTokenSource) AccessToken(ctx context.Context) (string, error) {
	body := fmt.Sprintf(`{"device_key":%q}`, s.deviceKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}
	return payload.AccessToken, nil
}
