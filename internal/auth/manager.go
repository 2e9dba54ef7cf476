// Package auth supplies bearer credentials for the Twitch API.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/logger"
)

// refreshMargin is how long before expiry a cached token is replaced.
const refreshMargin = 5 * time.Minute

// AppTokenFetcher requests a fresh app access token.
type AppTokenFetcher func(ctx context.Context) (accessToken string, expiresIn time.Duration, err error)

// AppTokenManager caches the app access token and refreshes it when it is
// about to expire.
type AppTokenManager struct {
	mu        sync.Mutex
	fetch     AppTokenFetcher
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewAppTokenManager creates a token manager around fetch.
func NewAppTokenManager(fetch AppTokenFetcher) *AppTokenManager {
	return &AppTokenManager{fetch: fetch, now: time.Now}
}

// Token returns a valid app access token, fetching a new one when needed.
func (m *AppTokenManager) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Add(refreshMargin).Before(m.expiresAt) {
		return m.token, nil
	}

	logger.Infof("Authenticating app against twitch")
	token, expiresIn, err := m.fetch(ctx)
	if err != nil {
		return "", err
	}
	m.token = token
	m.expiresAt = m.now().Add(expiresIn)
	return token, nil
}
