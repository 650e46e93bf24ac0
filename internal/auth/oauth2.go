package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// OAuth2ClientCredentialsProvider implements the OAuth2 client credentials flow.
type OAuth2ClientCredentialsProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scopes       []string
	httpClient   *http.Client
	mu           sync.Mutex
	cachedToken  string
	tokenExpiry  time.Time
}

type oauth2TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}

// NewOAuth2ClientCredentialsProvider creates a new OAuth2 client credentials provider.
func NewOAuth2ClientCredentialsProvider(tokenURL, clientID, clientSecret string, scopes []string, timeout time.Duration) (*OAuth2ClientCredentialsProvider, error) {
	if strings.TrimSpace(tokenURL) == "" {
		return nil, fmt.Errorf("token URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OAuth2ClientCredentialsProvider{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       scopes,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// Token retrieves an access token, reusing a cached one until it expires.
func (p *OAuth2ClientCredentialsProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.cachedToken, nil
	}

	token, expiresIn, err := p.fetchToken(ctx)
	if err != nil {
		return "", err
	}

	p.cachedToken = token
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	p.tokenExpiry = time.Now().Add(time.Duration(expiresIn) * time.Second)

	return p.cachedToken, nil
}

func (p *OAuth2ClientCredentialsProvider) fetchToken(ctx context.Context) (string, int, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	if len(p.scopes) > 0 {
		data.Set("scope", strings.Join(p.scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var tokenResp oauth2TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}

	if tokenResp.Error != "" {
		return "", 0, fmt.Errorf("oauth2 error: %s - %s", tokenResp.Error, tokenResp.ErrorDesc)
	}

	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("no access token in response")
	}

	return tokenResp.AccessToken, tokenResp.ExpiresIn, nil
}

// Close releases resources held by the provider.
func (p *OAuth2ClientCredentialsProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
