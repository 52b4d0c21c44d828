package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/rs/zerolog"
)

const DefaultStateTTL = 10 * time.Minute

// DefaultWebhookTopics are subscribed for every newly connected shop
var DefaultWebhookTopics = []string{
	"orders/create",
	"orders/updated",
	"customers/create",
	"app/uninstalled",
}

// OAuthConfig configures the authorization-code flow
type OAuthConfig struct {
	StateTTL time.Duration
	// WebhookBaseURL is the public prefix topics are appended to, e.g. https://app.example.com/webhooks/shopify
	WebhookBaseURL string
	WebhookTopics  []string
}

// OAuthService runs the authorization-code flow for every platform with a registered provider
type OAuthService struct {
	manager   *CredentialManager
	states    ports.OAuthStateRepository
	providers map[domain.Platform]ports.AuthorizationProvider
	webhooks  ports.WebhookRegistrar
	clock     ports.Clock
	nonces    ports.NonceGenerator
	metrics   ports.MetricsRecorder
	cfg       OAuthConfig
	logger    zerolog.Logger
}

// NewOAuthService creates the OAuth flow service. webhooks may be nil.
func NewOAuthService(
	manager *CredentialManager,
	states ports.OAuthStateRepository,
	providers map[domain.Platform]ports.AuthorizationProvider,
	webhooks ports.WebhookRegistrar,
	clock ports.Clock,
	nonces ports.NonceGenerator,
	metrics ports.MetricsRecorder,
	cfg OAuthConfig,
	logger zerolog.Logger,
) *OAuthService {
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultStateTTL
	}
	if cfg.WebhookTopics == nil {
		cfg.WebhookTopics = DefaultWebhookTopics
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if nonces == nil {
		nonces = RandomNonceGenerator{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &OAuthService{
		manager:   manager,
		states:    states,
		providers: providers,
		webhooks:  webhooks,
		clock:     clock,
		nonces:    nonces,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// AuthorizationRedirect is where the browser is sent to grant access
type AuthorizationRedirect struct {
	URL   string `json:"authUrl"`
	State string `json:"state"`
}

// BeginOAuth persists a fresh nonce bound to (userID, platform, shopDomain) and returns the vendor consent URL
func (s *OAuthService) BeginOAuth(ctx context.Context, userID string, platform domain.Platform, shopDomain string) (*AuthorizationRedirect, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	provider, ok := s.providers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: oauth is not available for %s", domain.ErrConfiguration, platform)
	}

	boundShop := ""
	if platform == domain.PlatformShopify {
		normalized, err := domain.NormalizeShopDomain(shopDomain)
		if err != nil {
			return nil, err
		}
		boundShop = normalized
	}

	nonce, err := s.nonces.NewNonce()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC().Truncate(time.Millisecond)
	state := &domain.OAuthState{
		State:      nonce,
		UserID:     userID,
		Platform:   platform,
		ShopDomain: boundShop,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.StateTTL),
	}
	if err := s.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("%w: failed to save oauth state: %w", domain.ErrStorageFailed, err)
	}

	authURL, err := provider.AuthorizeURL(nonce, boundShop)
	if err != nil {
		return nil, fmt.Errorf("failed to build authorization url: %w", err)
	}

	s.logger.Info().
		Str("userId", userID).
		Str("platform", platform.String()).
		Str("shop", boundShop).
		Str("state", domain.ShortNonce(nonce)).
		Msg("OAuth flow started")

	return &AuthorizationRedirect{URL: authURL, State: nonce}, nil
}

// CallbackParams are the values the vendor redirected back with
type CallbackParams struct {
	// Platform is the platform named by the callback route; empty accepts whatever the nonce is bound to
	Platform   domain.Platform
	Code       string
	State      string
	ShopDomain string
}

// CompleteOAuth verifies the nonce, exchanges the code and stores the resulting credential.
// Failures are returned as *domain.OAuthError; no credential is written on any failure.
func (s *OAuthService) CompleteOAuth(ctx context.Context, params CallbackParams) (*domain.IntegrationCredential, error) {
	cred, err := s.completeOAuth(ctx, params)
	platform := params.Platform.String()
	if cred != nil {
		platform = cred.Platform.String()
	}
	if reason, ok := domain.OAuthFailure(err); ok {
		s.metrics.OAuthOutcome(platform, string(reason))
		s.logger.Warn().
			Err(err).
			Str("platform", platform).
			Str("reason", string(reason)).
			Str("state", domain.ShortNonce(params.State)).
			Msg("OAuth flow failed")
		return nil, err
	}
	s.metrics.OAuthOutcome(platform, "success")
	return cred, nil
}

func (s *OAuthService) completeOAuth(ctx context.Context, params CallbackParams) (*domain.IntegrationCredential, error) {
	if params.Code == "" || params.State == "" {
		return nil, domain.NewOAuthError(domain.OAuthMissingParameters, nil)
	}
	if params.Platform == domain.PlatformShopify && params.ShopDomain == "" {
		return nil, domain.NewOAuthError(domain.OAuthMissingParameters, nil)
	}

	state, err := s.states.Take(ctx, params.State)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewOAuthError(domain.OAuthInvalidState, err)
		}
		return nil, domain.NewOAuthError(domain.OAuthStorageFailed, err)
	}

	if params.Platform != "" && params.Platform != state.Platform {
		return nil, domain.NewOAuthError(domain.OAuthPlatformMismatch, nil)
	}
	if state.IsExpired(s.clock.Now()) {
		return nil, domain.NewOAuthError(domain.OAuthStateExpired, nil)
	}
	if state.Platform == domain.PlatformShopify {
		callbackShop, err := domain.NormalizeShopDomain(params.ShopDomain)
		if err != nil || callbackShop != state.ShopDomain {
			return nil, domain.NewOAuthError(domain.OAuthShopMismatch, err)
		}
	}

	provider, ok := s.providers[state.Platform]
	if !ok {
		return nil, domain.NewOAuthError(domain.OAuthTokenExchangeFailed, domain.ErrConfiguration)
	}

	token, err := provider.ExchangeCode(ctx, params.Code, state.ShopDomain)
	if err != nil {
		return nil, domain.NewOAuthError(domain.OAuthTokenExchangeFailed, err)
	}

	extra := map[string]any{
		domain.ExtraAuthType: domain.AuthTypeOAuth,
		domain.ExtraScope:    token.Scopes,
	}
	if state.ShopDomain != "" {
		extra[domain.ExtraShopDomain] = state.ShopDomain
	}

	info, err := provider.AccountInfo(ctx, token, state.ShopDomain)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("platform", state.Platform.String()).
			Str("shop", state.ShopDomain).
			Msg("Failed to fetch account info, continuing without it")
	}
	for k, v := range info {
		extra[k] = v
	}
	if state.Platform == domain.PlatformShopify {
		if _, ok := extra[domain.ExtraShopInfo]; !ok {
			extra[domain.ExtraShopInfo] = map[string]any{}
		}
	}

	cred := &domain.IntegrationCredential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Extra:        extra,
		Status:       domain.StatusConnected,
	}
	if s.manager.IsRefreshable(state.Platform) {
		lifetime := token.ExpiresIn
		if lifetime <= 0 {
			lifetime = s.manager.DefaultTokenLifetime()
		}
		cred.ExpiresAt = s.clock.Now().Add(lifetime)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultPersistTimeout)
	defer cancel()
	if err := s.manager.UpsertCredential(writeCtx, state.UserID, state.Platform, cred); err != nil {
		return nil, domain.NewOAuthError(domain.OAuthStorageFailed, err)
	}

	if state.Platform == domain.PlatformShopify {
		s.registerWebhooks(ctx, state.ShopDomain, token.AccessToken)
	}

	s.logger.Info().
		Str("userId", state.UserID).
		Str("platform", state.Platform.String()).
		Str("shop", state.ShopDomain).
		Msg("OAuth flow completed")
	return cred, nil
}

// registerWebhooks is best-effort; failures are logged and never undo the connection
func (s *OAuthService) registerWebhooks(ctx context.Context, shopDomain, accessToken string) {
	if s.webhooks == nil || s.cfg.WebhookBaseURL == "" {
		return
	}
	for _, topic := range s.cfg.WebhookTopics {
		address := s.cfg.WebhookBaseURL + "/" + topic
		if err := s.webhooks.RegisterWebhook(ctx, shopDomain, accessToken, topic, address); err != nil {
			s.logger.Warn().
				Err(err).
				Str("shop", shopDomain).
				Str("topic", topic).
				Msg("Failed to register webhook")
			continue
		}
		s.logger.Debug().
			Str("shop", shopDomain).
			Str("topic", topic).
			Msg("Webhook registered")
	}
}
