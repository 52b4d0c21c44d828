package webhook_handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/rs/zerolog"
)

// credentialRemover is the part of the credential manager this handler needs
type credentialRemover interface {
	DeleteCredential(ctx context.Context, userID string, platform domain.Platform) error
}

// AppUninstalledHandler disconnects the owning user once the shop revokes the app
type AppUninstalledHandler struct {
	credentials ports.CredentialRepository
	remover     credentialRemover
	logger      zerolog.Logger
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(credentials ports.CredentialRepository, remover credentialRemover, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		credentials: credentials,
		remover:     remover,
		logger:      logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Handle processes an app uninstalled webhook event
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain := event.Shop
	if shopDomain == "" {
		var shop struct {
			MyshopifyDomain string `json:"myshopify_domain"`
		}
		if err := json.Unmarshal(event.Payload, &shop); err != nil {
			return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
		}
		shopDomain = shop.MyshopifyDomain
	}

	integration, err := h.credentials.FindByShopDomain(ctx, domain.PlatformShopify, shopDomain)
	if errors.Is(err, domain.ErrNotFound) {
		h.logger.Info().Str("shop", shopDomain).Msg("App uninstalled for unknown shop")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find integration for shop: %w", err)
	}

	if err := h.remover.DeleteCredential(ctx, integration.UserID, domain.PlatformShopify); err != nil {
		return err
	}

	h.logger.Info().
		Str("shop", shopDomain).
		Str("userId", integration.UserID).
		Msg("App uninstalled, integration disconnected")
	return nil
}
