package oauthvendor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

var (
	// GmailScopes grants read and send access plus the account email
	GmailScopes = []string{
		"https://www.googleapis.com/auth/gmail.readonly",
		"https://www.googleapis.com/auth/gmail.send",
		"https://www.googleapis.com/auth/userinfo.email",
	}

	OutlookScopes = []string{
		"offline_access",
		"https://graph.microsoft.com/Mail.Read",
		"https://graph.microsoft.com/Mail.Send",
		"https://graph.microsoft.com/User.Read",
	}
)

// AccountInfoFunc looks up descriptive account data with a freshly issued access token
type AccountInfoFunc func(ctx context.Context, accessToken string) (map[string]any, error)

// Config describes one OAuth2 client registration
type Config struct {
	Platform     domain.Platform
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
	Timeout      time.Duration
}

// Provider refreshes tokens and runs the authorization-code exchange for an OAuth2 vendor
type Provider struct {
	platform    domain.Platform
	oauthCfg    *oauth2.Config
	httpClient  *http.Client
	accountInfo AccountInfoFunc
	logger      zerolog.Logger
}

// NewProvider creates a provider. accountInfo may be nil.
func NewProvider(cfg Config, accountInfo AccountInfoFunc, logger zerolog.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Provider{
		platform: cfg.Platform,
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		accountInfo: accountInfo,
		logger:      logger.With().Str("platform", cfg.Platform.String()).Logger(),
	}
}

// NewGoogleProvider configures Gmail against Google's endpoints
func NewGoogleProvider(clientID, clientSecret, redirectURL string, timeout time.Duration, accountInfo AccountInfoFunc, logger zerolog.Logger) *Provider {
	return NewProvider(Config{
		Platform:     domain.PlatformGmail,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       GmailScopes,
		Endpoint:     google.Endpoint,
		Timeout:      timeout,
	}, accountInfo, logger)
}

// NewMicrosoftProvider configures Outlook against the Azure AD v2 endpoints of tenant
func NewMicrosoftProvider(clientID, clientSecret, tenant, redirectURL string, timeout time.Duration, logger zerolog.Logger) *Provider {
	if tenant == "" {
		tenant = "common"
	}
	return NewProvider(Config{
		Platform:     domain.PlatformOutlook,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       OutlookScopes,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
		Timeout:      timeout,
	}, nil, logger)
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Refresh exchanges refreshToken for a new access token
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*ports.TokenResult, error) {
	if p.oauthCfg.ClientID == "" {
		return nil, fmt.Errorf("%w: %s client id", domain.ErrConfiguration, p.platform)
	}
	tok, err := p.oauthCfg.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, p.classify("refresh token", err)
	}
	return tokenResult(tok), nil
}

// AuthorizeURL requests offline access and forces the consent screen so a refresh token is always issued
func (p *Provider) AuthorizeURL(state, _ string) (string, error) {
	if p.oauthCfg.ClientID == "" {
		return "", fmt.Errorf("%w: %s client id", domain.ErrConfiguration, p.platform)
	}
	return p.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (p *Provider) ExchangeCode(ctx context.Context, code, _ string) (*ports.TokenResult, error) {
	tok, err := p.oauthCfg.Exchange(p.withClient(ctx), code)
	if err != nil {
		return nil, p.classify("exchange code", err)
	}
	return tokenResult(tok), nil
}

func (p *Provider) AccountInfo(ctx context.Context, token *ports.TokenResult, _ string) (map[string]any, error) {
	if p.accountInfo == nil {
		return nil, nil
	}
	return p.accountInfo(ctx, token.AccessToken)
}

// classify maps token endpoint failures onto the domain taxonomy without echoing the response body
func (p *Provider) classify(op string, err error) error {
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) {
		return fmt.Errorf("%w: failed to %s: %w", domain.ErrVendorTransient, op, err)
	}

	status := 0
	if rErr.Response != nil {
		status = rErr.Response.StatusCode
	}
	p.logger.Warn().
		Int("status", status).
		Str("errorCode", rErr.ErrorCode).
		Msg("Token endpoint returned an error")

	switch {
	case rErr.ErrorCode == "invalid_client":
		return fmt.Errorf("%w: %s client credentials rejected", domain.ErrConfiguration, p.platform)
	case rErr.ErrorCode == "invalid_grant", rErr.ErrorCode == "unauthorized_client":
		return fmt.Errorf("%w: %s: failed to %s: %s", domain.ErrReauthRequired, p.platform, op, rErr.ErrorCode)
	case status == http.StatusTooManyRequests, status >= 500:
		return fmt.Errorf("%w: %s: failed to %s: status %d", domain.ErrVendorTransient, p.platform, op, status)
	case status == http.StatusBadRequest, status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s: failed to %s: status %d", domain.ErrReauthRequired, p.platform, op, status)
	}
	return fmt.Errorf("%w: %s: failed to %s: status %d", domain.ErrVendorTransient, p.platform, op, status)
}

func tokenResult(tok *oauth2.Token) *ports.TokenResult {
	res := &ports.TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn(tok.Extra("expires_in")),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		res.Scopes = strings.Fields(scope)
	}
	return res
}

// expiresIn reads the raw lifetime; vendors send it as a number or a numeric string
func expiresIn(v any) time.Duration {
	var secs int64
	switch t := v.(type) {
	case float64:
		secs = int64(t)
	case int64:
		secs = t
	case json.Number:
		secs, _ = t.Int64()
	case string:
		secs, _ = strconv.ParseInt(t, 10, 64)
	}
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
