package oauthvendor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"helpdesk-integration-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProvider(Config{
		Platform:     domain.PlatformGmail,
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://app.example.com/auth/gmail/callback",
		Scopes:       GmailScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Timeout: 5 * time.Second,
	}, nil, zerolog.Nop())
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    error
		wantAccess string
		wantTTL    time.Duration
	}{
		{
			name:       "rotated token",
			status:     http.StatusOK,
			body:       `{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3599,"token_type":"Bearer","scope":"a b"}`,
			wantAccess: "new-access",
			wantTTL:    3599 * time.Second,
		},
		{
			name:       "no lifetime",
			status:     http.StatusOK,
			body:       `{"access_token":"new-access","token_type":"Bearer"}`,
			wantAccess: "new-access",
		},
		{
			name:    "revoked grant",
			status:  http.StatusBadRequest,
			body:    `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`,
			wantErr: domain.ErrReauthRequired,
		},
		{
			name:    "vendor outage",
			status:  http.StatusServiceUnavailable,
			body:    `{"error":"backend_error"}`,
			wantErr: domain.ErrVendorTransient,
		},
		{
			name:    "bad client secret",
			status:  http.StatusUnauthorized,
			body:    `{"error":"invalid_client"}`,
			wantErr: domain.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
				assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := p.Refresh(context.Background(), "old-refresh")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotContains(t, err.Error(), "old-refresh")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccess, res.AccessToken)
			assert.Equal(t, tt.wantTTL, res.ExpiresIn)
		})
	}
}

func TestRefreshNetworkFailure(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {})
	p.oauthCfg.Endpoint.TokenURL = "http://127.0.0.1:1/token"

	_, err := p.Refresh(context.Background(), "old-refresh")
	assert.ErrorIs(t, err, domain.ErrVendorTransient)
}

func TestAuthorizeURL(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	raw, err := p.AuthorizeURL("nonce-1", "")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "nonce-1", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "client", q.Get("client_id"))
}

func TestExchangeCode(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","expires_in":"3600","scope":"x y"}`))
	})

	res, err := p.ExchangeCode(context.Background(), "the-code", "")
	require.NoError(t, err)
	assert.Equal(t, "r", res.RefreshToken)
	assert.Equal(t, time.Hour, res.ExpiresIn)
	assert.Equal(t, []string{"x", "y"}, res.Scopes)
}
