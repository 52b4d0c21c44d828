package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	StateStore = "store"
	StateRedis = "redis"
)

// Config holds every setting read at startup
type Config struct {
	Port        string `mapstructure:"PORT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	AppURL      string `mapstructure:"APP_URL"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`
	PostgresDSN   string `mapstructure:"DATABASE_URL"`
	StateDriver   string `mapstructure:"OAUTH_STATE_DRIVER"`
	RedisURL      string `mapstructure:"REDIS_URL"`

	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`
	JWTSecret     string `mapstructure:"SUPABASE_JWT_SECRET"`

	ShopifyAPIKey        string `mapstructure:"SHOPIFY_API_KEY"`
	ShopifyAPISecret     string `mapstructure:"SHOPIFY_API_SECRET"`
	ShopifyWebhookSecret string `mapstructure:"SHOPIFY_WEBHOOK_SECRET"`
	ShopifyAPIVersion    string `mapstructure:"SHOPIFY_API_VERSION"`

	GoogleClientID        string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	MicrosoftClientID     string `mapstructure:"MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `mapstructure:"MICROSOFT_CLIENT_SECRET"`
	MicrosoftTenantID     string `mapstructure:"MICROSOFT_TENANT_ID"`

	VendorTimeout      time.Duration `mapstructure:"VENDOR_HTTP_TIMEOUT"`
	OAuthStateTTL      time.Duration `mapstructure:"OAUTH_STATE_TTL"`
	StateSweepInterval time.Duration `mapstructure:"OAUTH_STATE_SWEEP_INTERVAL"`
	TokenRefreshSkew   time.Duration `mapstructure:"TOKEN_REFRESH_SKEW"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var defaults = map[string]any{
	"PORT":                       "8080",
	"LOG_LEVEL":                  "info",
	"APP_URL":                    "http://localhost:8080",
	"FRONTEND_URL":               "http://localhost:3000",
	"STORE_DRIVER":               StoreMongo,
	"MONGODB_URI":                "mongodb://localhost:27017",
	"MONGODB_DATABASE":           "helpdesk",
	"DATABASE_URL":               "",
	"OAUTH_STATE_DRIVER":         StateStore,
	"REDIS_URL":                  "",
	"ENCRYPTION_KEY":             "",
	"SUPABASE_JWT_SECRET":        "",
	"SHOPIFY_API_KEY":            "",
	"SHOPIFY_API_SECRET":         "",
	"SHOPIFY_WEBHOOK_SECRET":     "",
	"SHOPIFY_API_VERSION":        "2023-10",
	"GOOGLE_CLIENT_ID":           "",
	"GOOGLE_CLIENT_SECRET":       "",
	"MICROSOFT_CLIENT_ID":        "",
	"MICROSOFT_CLIENT_SECRET":    "",
	"MICROSOFT_TENANT_ID":        "common",
	"VENDOR_HTTP_TIMEOUT":        "15s",
	"OAUTH_STATE_TTL":            "10m",
	"OAUTH_STATE_SWEEP_INTERVAL": "5m",
	"TOKEN_REFRESH_SKEW":         "0s",
	"SHUTDOWN_TIMEOUT":           "15s",
	"CORS_ALLOWED_ORIGINS":       "http://localhost:3000",
}

// Load reads .env when present, then config.yaml and the environment, and validates the result
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment only")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		logger.Info().Str("file", v.ConfigFileUsed()).Msg("Using config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)
	cfg.AppURL = strings.TrimSuffix(cfg.AppURL, "/")
	cfg.FrontendURL = strings.TrimSuffix(cfg.FrontendURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList accepts both YAML lists and comma separated env values
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every problem at once
func (c *Config) Validate() error {
	var errs []error
	missing := func(name string) {
		errs = append(errs, fmt.Errorf("%s is required", name))
	}

	if c.EncryptionKey == "" {
		missing("ENCRYPTION_KEY")
	}
	if c.JWTSecret == "" {
		missing("SUPABASE_JWT_SECRET")
	}

	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			missing("MONGODB_URI")
		}
		if c.MongoDatabase == "" {
			missing("MONGODB_DATABASE")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			missing("DATABASE_URL")
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.StateDriver {
	case StateStore:
	case StateRedis:
		if c.RedisURL == "" {
			missing("REDIS_URL")
		}
	default:
		errs = append(errs, fmt.Errorf("unknown OAUTH_STATE_DRIVER %q", c.StateDriver))
	}

	if c.ShopifyAPIKey != "" {
		if c.ShopifyAPISecret == "" {
			missing("SHOPIFY_API_SECRET")
		}
		if c.ShopifyWebhookSecret == "" {
			missing("SHOPIFY_WEBHOOK_SECRET")
		}
	}
	if c.GoogleClientID != "" && c.GoogleClientSecret == "" {
		missing("GOOGLE_CLIENT_SECRET")
	}
	if c.MicrosoftClientID != "" && c.MicrosoftClientSecret == "" {
		missing("MICROSOFT_CLIENT_SECRET")
	}

	if c.VendorTimeout < time.Second || c.VendorTimeout > time.Minute {
		errs = append(errs, fmt.Errorf("VENDOR_HTTP_TIMEOUT must be between 1s and 60s, got %s", c.VendorTimeout))
	}
	if c.OAuthStateTTL <= 0 {
		errs = append(errs, errors.New("OAUTH_STATE_TTL must be positive"))
	}
	if c.StateSweepInterval <= 0 {
		errs = append(errs, errors.New("OAUTH_STATE_SWEEP_INTERVAL must be positive"))
	}
	if c.TokenRefreshSkew < 0 {
		errs = append(errs, errors.New("TOKEN_REFRESH_SKEW must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ShopifyEnabled reports whether the Shopify app is configured
func (c *Config) ShopifyEnabled() bool { return c.ShopifyAPIKey != "" }

func (c *Config) GmailEnabled() bool { return c.GoogleClientID != "" }

func (c *Config) OutlookEnabled() bool { return c.MicrosoftClientID != "" }

// ParsedLogLevel falls back to info for unknown levels
func (c *Config) ParsedLogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
