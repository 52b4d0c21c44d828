package application

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/rs/zerolog"
)

// ConnectService stores credentials users enter by hand for API-key platforms
type ConnectService struct {
	manager   *CredentialManager
	shopify   ports.ShopifyAdmin
	verifiers map[domain.Platform]ports.CredentialVerifier
	logger    zerolog.Logger
}

// NewConnectService creates a manual connection service
func NewConnectService(
	manager *CredentialManager,
	shopify ports.ShopifyAdmin,
	verifiers map[domain.Platform]ports.CredentialVerifier,
	logger zerolog.Logger,
) *ConnectService {
	return &ConnectService{
		manager:   manager,
		shopify:   shopify,
		verifiers: verifiers,
		logger:    logger,
	}
}

// ShopifyPrivateAppInput holds private-app credentials for a shop
type ShopifyPrivateAppInput struct {
	ShopDomain string `json:"shopDomain"`
	APIKey     string `json:"apiKey"`
	Password   string `json:"password"`
}

// ConnectShopifyPrivateApp validates the private-app credentials against the shop and stores them
func (s *ConnectService) ConnectShopifyPrivateApp(ctx context.Context, userID string, in ShopifyPrivateAppInput) (*domain.IntegrationCredential, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if in.APIKey == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: apiKey and password are required", domain.ErrInvalidInput)
	}
	if !strings.HasSuffix(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(in.ShopDomain)), "/"), ".myshopify.com") {
		return nil, fmt.Errorf("%w: shop domain must end with .myshopify.com", domain.ErrInvalidInput)
	}
	shopDomain, err := domain.NormalizeShopDomain(in.ShopDomain)
	if err != nil {
		return nil, err
	}
	if s.shopify == nil {
		return nil, fmt.Errorf("%w: shopify", domain.ErrConfiguration)
	}

	shop, err := s.shopify.GetShop(ctx, ports.ShopifyCredentials{
		ShopDomain: shopDomain,
		APIKey:     in.APIKey,
		Password:   in.Password,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("userId", userID).Str("shop", shopDomain).Msg("Shopify private app validation failed")
		return nil, err
	}

	cred := &domain.IntegrationCredential{
		Status: domain.StatusConnected,
		Extra: map[string]any{
			domain.ExtraAuthType:   domain.AuthTypePrivateApp,
			domain.ExtraShopDomain: shopDomain,
			domain.ExtraAPIKey:     in.APIKey,
			domain.ExtraPassword:   in.Password,
			domain.ExtraShopInfo:   ShopInfoExtra(shop),
		},
	}
	if err := s.manager.UpsertCredential(ctx, userID, domain.PlatformShopify, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// ShopInfoExtra converts a shop summary to the shop_info extra entry
func ShopInfoExtra(shop *ports.ShopSummary) map[string]any {
	if shop == nil {
		return map[string]any{}
	}
	return map[string]any{
		"name":     shop.Name,
		"email":    shop.Email,
		"domain":   shop.Domain,
		"plan":     shop.Plan,
		"currency": shop.Currency,
	}
}

// WooCommerceInput holds REST API keys for a WooCommerce store
type WooCommerceInput struct {
	StoreURL       string `json:"storeUrl"`
	ConsumerKey    string `json:"consumerKey"`
	ConsumerSecret string `json:"consumerSecret"`
}

// ConnectWooCommerce validates the store keys and stores them
func (s *ConnectService) ConnectWooCommerce(ctx context.Context, userID string, in WooCommerceInput) (*domain.IntegrationCredential, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	u, err := url.Parse(strings.TrimSpace(in.StoreURL))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: storeUrl must be an https URL", domain.ErrInvalidInput)
	}
	if in.ConsumerKey == "" || in.ConsumerSecret == "" {
		return nil, fmt.Errorf("%w: consumerKey and consumerSecret are required", domain.ErrInvalidInput)
	}

	extra := map[string]any{
		domain.ExtraStoreURL:       strings.TrimSuffix(u.String(), "/"),
		domain.ExtraConsumerKey:    in.ConsumerKey,
		domain.ExtraConsumerSecret: in.ConsumerSecret,
	}
	return s.verifyAndStore(ctx, userID, domain.PlatformWooCommerce, extra)
}

// IMAPInput holds mailbox login details
type IMAPInput struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ConnectIMAP logs in to the mailbox once and stores the login on success
func (s *ConnectService) ConnectIMAP(ctx context.Context, userID string, in IMAPInput) (*domain.IntegrationCredential, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if in.Host == "" || in.Username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: host, username and password are required", domain.ErrInvalidInput)
	}
	if in.Port <= 0 || in.Port > 65535 {
		return nil, fmt.Errorf("%w: invalid port %d", domain.ErrInvalidInput, in.Port)
	}

	extra := map[string]any{
		domain.ExtraHost:     in.Host,
		domain.ExtraPort:     in.Port,
		domain.ExtraUsername: in.Username,
		domain.ExtraPassword: in.Password,
	}
	return s.verifyAndStore(ctx, userID, domain.PlatformIMAP, extra)
}

func (s *ConnectService) verifyAndStore(ctx context.Context, userID string, platform domain.Platform, extra map[string]any) (*domain.IntegrationCredential, error) {
	verifier, ok := s.verifiers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrConfiguration, platform)
	}
	if err := verifier.Verify(ctx, extra); err != nil {
		s.logger.Warn().
			Err(err).
			Str("userId", userID).
			Str("platform", platform.String()).
			Msg("Credential verification failed")
		return nil, err
	}

	cred := &domain.IntegrationCredential{
		Status: domain.StatusConnected,
		Extra:  extra,
	}
	if err := s.manager.UpsertCredential(ctx, userID, platform, cred); err != nil {
		return nil, err
	}
	return cred, nil
}
