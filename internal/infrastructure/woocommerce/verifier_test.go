package woocommerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"helpdesk-integration-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, systemStatusPath, r.URL.Path)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ck_good" || pass != "cs_good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"environment":{}}`))
	}))
	defer srv.Close()

	v := NewVerifier(time.Second, zerolog.Nop())

	tests := []struct {
		name    string
		key     string
		secret  string
		wantErr error
	}{
		{name: "valid keys", key: "ck_good", secret: "cs_good"},
		{name: "rejected keys", key: "ck_bad", secret: "cs_bad", wantErr: domain.ErrInvalidInput},
		{name: "missing secret", key: "ck_good", wantErr: domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(context.Background(), map[string]any{
				domain.ExtraStoreURL:       srv.URL,
				domain.ExtraConsumerKey:    tt.key,
				domain.ExtraConsumerSecret: tt.secret,
			})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.secret != "" {
				assert.NotContains(t, err.Error(), tt.secret)
			}
		})
	}
}

func TestVerifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewVerifier(time.Second, zerolog.Nop()).Verify(context.Background(), map[string]any{
		domain.ExtraStoreURL:       srv.URL,
		domain.ExtraConsumerKey:    "ck",
		domain.ExtraConsumerSecret: "cs",
	})
	assert.ErrorIs(t, err, domain.ErrVendorTransient)
}
