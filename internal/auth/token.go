// Package auth supplies authentication material for catalog and transfer
// operations. The search engine treats it as an opaque provider of a bearer
// token or an access-key pair.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// S3Keys is an access-key pair for the object-store transfer path.
type S3Keys struct {
	AccessKey string
	SecretKey string
}

// PasswordGrant exchanges a username/password for a bearer token against the
// identity server's OAuth2 password grant endpoint. Tokens are cached until
// shortly before expiry.
type PasswordGrant struct {
	tokenURL   string
	clientID   string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewPasswordGrant creates a password-grant token source.
func NewPasswordGrant(tokenURL, clientID, username, password string, timeout time.Duration) *PasswordGrant {
	return &PasswordGrant{
		tokenURL:   tokenURL,
		clientID:   clientID,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (g *PasswordGrant) WithLogger(logger *slog.Logger) *PasswordGrant {
	g.logger = logger
	return g
}

// tokenResponse mirrors the identity server's token payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Token returns a valid bearer token, fetching a new one when the cached
// token is missing or about to expire.
func (g *PasswordGrant) Token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && time.Now().Before(g.expires) {
		return g.token, nil
	}

	if g.username == "" || g.password == "" {
		return "", fmt.Errorf("identity credentials are not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", g.clientID)
	form.Set("username", g.username)
	form.Set("password", g.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		g.logger.ErrorContext(ctx, "identity server rejected token request",
			slog.Int("status_code", resp.StatusCode),
		)
		return "", fmt.Errorf("identity server returned status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("identity server returned an empty access token")
	}

	g.token = tr.AccessToken
	// Refresh a little early so in-flight requests don't race expiry.
	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl > 30*time.Second {
		ttl -= 30 * time.Second
	}
	g.expires = time.Now().Add(ttl)

	g.logger.DebugContext(ctx, "acquired bearer token",
		slog.Duration("ttl", ttl),
	)
	return g.token, nil
}
