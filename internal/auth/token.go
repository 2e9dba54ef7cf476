package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"giveaway/internal/models"
)

// DefaultTokenURL is the Twitch OAuth token endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// ErrNoToken indicates that no credentials were configured.
var ErrNoToken = errors.New("no token configured")

// Credentials identify the registered Twitch application.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// LoadAppFile reads credentials stored as "client_id:client_secret".
func LoadAppFile(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read app file: %w", err)
	}
	id, secret, ok := strings.Cut(strings.TrimSpace(string(data)), ":")
	if !ok || strings.TrimSpace(id) == "" || strings.TrimSpace(secret) == "" {
		return Credentials{}, fmt.Errorf("app file %s: expected client_id:client_secret", path)
	}
	return Credentials{ClientID: strings.TrimSpace(id), ClientSecret: strings.TrimSpace(secret)}, nil
}

// ClientCredentials returns a fetcher that requests an app access token with
// the client-credentials grant. Rejected credentials (401/403) and a response
// without a token are *models.AuthError; other statuses are
// *models.UpstreamError, network failures *models.TransportError and
// unreadable bodies *models.DecodeError.
func ClientCredentials(client *http.Client, tokenURL string, creds Credentials) AppTokenFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	return func(ctx context.Context) (string, time.Duration, error) {
		return requestAppToken(ctx, client, tokenURL, creds)
	}
}

const appTokenOp = "app token"

func requestAppToken(ctx context.Context, client *http.Client, tokenURL string, creds Credentials) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &models.TransportError{Op: appTokenOp, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, &models.TransportError{Op: appTokenOp, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.TrimSpace(string(body))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", 0, &models.AuthError{Op: appTokenOp, Err: fmt.Errorf("credentials rejected (%s): %s", resp.Status, msg)}
		}
		return "", 0, &models.UpstreamError{Op: appTokenOp, Status: resp.StatusCode, Body: msg}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, &models.DecodeError{Op: appTokenOp, Err: err}
	}
	if payload.AccessToken == "" {
		return "", 0, &models.AuthError{Op: appTokenOp, Err: errors.New("response carried no access_token")}
	}

	return payload.AccessToken, time.Duration(payload.ExpiresIn) * time.Second, nil
}

// StaticToken is a bearer token supplied by the operator, such as a
// broadcaster user token.
type StaticToken string

// Token returns the configured token.
func (s StaticToken) Token(_ context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", &models.AuthError{Op: "user token", Err: ErrNoToken}
	}
	return strings.TrimSpace(string(s)), nil
}
