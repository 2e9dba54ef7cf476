package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway/internal/models"
)

func TestClientCredentials_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"abc","expires_in":3600,"token_type":"bearer"}`))
	}))
	defer srv.Close()

	fetch := ClientCredentials(srv.Client(), srv.URL, Credentials{ClientID: "id", ClientSecret: "secret"})
	token, expiresIn, err := fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.Equal(t, time.Hour, expiresIn)
}

func TestClientCredentials_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "rejected credentials",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"message":"invalid client secret"}`, http.StatusForbidden)
			},
			check: func(t *testing.T, err error) {
				var ae *models.AuthError
				require.True(t, errors.As(err, &ae), "got %v", err)
				assert.Equal(t, "app token", ae.Op)
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			check: func(t *testing.T, err error) {
				var ae *models.AuthError
				assert.True(t, errors.As(err, &ae), "got %v", err)
			},
		},
		{
			name: "token endpoint outage",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "maintenance", http.StatusServiceUnavailable)
			},
			check: func(t *testing.T, err error) {
				var ue *models.UpstreamError
				require.True(t, errors.As(err, &ue), "got %v", err)
				assert.Equal(t, http.StatusServiceUnavailable, ue.Status)
				assert.True(t, ue.Retryable())
				var ae *models.AuthError
				assert.False(t, errors.As(err, &ae))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			check: func(t *testing.T, err error) {
				var de *models.DecodeError
				assert.True(t, errors.As(err, &de), "got %v", err)
			},
		},
		{
			name: "missing token",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"expires_in":10}`))
			},
			check: func(t *testing.T, err error) {
				var ae *models.AuthError
				assert.True(t, errors.As(err, &ae), "got %v", err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, _, err := ClientCredentials(srv.Client(), srv.URL, Credentials{ClientID: "id", ClientSecret: "s"})(context.Background())

			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClientCredentials_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, _, err := ClientCredentials(nil, endpoint, Credentials{ClientID: "id", ClientSecret: "s"})(context.Background())

	var te *models.TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, "app token", te.Op)
}

func TestLoadAppFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "app")
	require.NoError(t, os.WriteFile(good, []byte("my-id:my-secret\n"), 0o600))
	creds, err := LoadAppFile(good)
	require.NoError(t, err)
	assert.Equal(t, Credentials{ClientID: "my-id", ClientSecret: "my-secret"}, creds)

	bad := filepath.Join(dir, "bad")
	require.NoError(t, os.WriteFile(bad, []byte("no-separator"), 0o600))
	_, err = LoadAppFile(bad)
	assert.Error(t, err)

	_, err = LoadAppFile(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStaticToken(t *testing.T) {
	token, err := StaticToken(" user-token ").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-token", token)

	_, err = StaticToken("").Token(context.Background())
	var ae *models.AuthError
	require.True(t, errors.As(err, &ae))
	assert.ErrorIs(t, err, ErrNoToken)
}
