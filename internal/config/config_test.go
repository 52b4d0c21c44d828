package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		EncryptionKey:      "k",
		JWTSecret:          "s",
		StoreDriver:        StoreMemory,
		StateDriver:        StateStore,
		VendorTimeout:      15 * time.Second,
		OAuthStateTTL:      10 * time.Minute,
		StateSweepInterval: 5 * time.Minute,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing encryption key", mutate: func(c *Config) { c.EncryptionKey = "" }, wantErr: "ENCRYPTION_KEY"},
		{name: "missing jwt secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "SUPABASE_JWT_SECRET"},
		{name: "unknown store", mutate: func(c *Config) { c.StoreDriver = "dynamo" }, wantErr: "STORE_DRIVER"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StoreDriver = StorePostgres }, wantErr: "DATABASE_URL"},
		{name: "redis without url", mutate: func(c *Config) { c.StateDriver = StateRedis }, wantErr: "REDIS_URL"},
		{name: "google id without secret", mutate: func(c *Config) { c.GoogleClientID = "id" }, wantErr: "GOOGLE_CLIENT_SECRET"},
		{
			name: "shopify without webhook secret",
			mutate: func(c *Config) {
				c.ShopifyAPIKey = "key"
				c.ShopifyAPISecret = "secret"
			},
			wantErr: "SHOPIFY_WEBHOOK_SECRET",
		},
		{name: "timeout too long", mutate: func(c *Config) { c.VendorTimeout = 2 * time.Minute }, wantErr: "VENDOR_HTTP_TIMEOUT"},
		{name: "timeout too short", mutate: func(c *Config) { c.VendorTimeout = 100 * time.Millisecond }, wantErr: "VENDOR_HTTP_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("SUPABASE_JWT_SECRET", "jwt-secret")
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("OAUTH_STATE_TTL", "2m")
	t.Setenv("APP_URL", "https://api.example.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 2*time.Minute, cfg.OAuthStateTTL)
	assert.Equal(t, 15*time.Second, cfg.VendorTimeout)
	assert.Equal(t, "https://api.example.com", cfg.AppURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.GmailEnabled())
}

func TestLoadFailsFast(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	t.Setenv("SUPABASE_JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", StoreMemory)

	_, err := Load(zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENCRYPTION_KEY")
}

func TestParsedLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, (&Config{LogLevel: "DEBUG"}).ParsedLogLevel())
	assert.Equal(t, zerolog.InfoLevel, (&Config{LogLevel: "chatty"}).ParsedLogLevel())
}
