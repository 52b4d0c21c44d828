package application

import (
	"context"
	"fmt"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/rs/zerolog"
)

const defaultOrderLimit = 50

// StoreService reads data from the user's connected Shopify store
type StoreService struct {
	manager *CredentialManager
	shopify ports.ShopifyAdmin
	logger  zerolog.Logger
}

func NewStoreService(manager *CredentialManager, shopify ports.ShopifyAdmin, logger zerolog.Logger) *StoreService {
	return &StoreService{
		manager: manager,
		shopify: shopify,
		logger:  logger,
	}
}

// RecentOrders lists the newest orders of the connected shop
func (s *StoreService) RecentOrders(ctx context.Context, userID string, limit int) ([]ports.OrderSummary, error) {
	if limit <= 0 || limit > 250 {
		limit = defaultOrderLimit
	}
	if s.shopify == nil {
		return nil, fmt.Errorf("%w: shopify", domain.ErrConfiguration)
	}

	cred, err := s.manager.GetFreshCredential(ctx, userID, domain.PlatformShopify)
	if err != nil {
		return nil, err
	}

	orders, err := s.shopify.ListOrders(ctx, ShopifyCredentialsOf(cred), limit)
	if err != nil {
		s.logger.Error().Err(err).Str("userId", userID).Str("shop", cred.ExtraString(domain.ExtraShopDomain)).Msg("Failed to list orders")
		return nil, err
	}
	return orders, nil
}

// ShopifyCredentialsOf picks token or private-app authentication from a stored credential
func ShopifyCredentialsOf(cred *domain.IntegrationCredential) ports.ShopifyCredentials {
	creds := ports.ShopifyCredentials{
		ShopDomain: cred.ExtraString(domain.ExtraShopDomain),
	}
	if cred.ExtraString(domain.ExtraAuthType) == domain.AuthTypePrivateApp {
		creds.APIKey = cred.ExtraString(domain.ExtraAPIKey)
		creds.Password = cred.ExtraString(domain.ExtraPassword)
		return creds
	}
	creds.AccessToken = cred.AccessToken
	return creds
}
