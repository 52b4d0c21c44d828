package webhook_handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// orderPayload is the part of a Shopify order webhook body we keep
type orderPayload struct {
	ID              int64  `json:"id"`
	OrderNumber     int64  `json:"order_number"`
	Email           string `json:"email"`
	TotalPrice      string `json:"total_price"`
	Currency        string `json:"currency"`
	FinancialStatus string `json:"financial_status"`
	BillingAddress  *struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"billing_address"`
}

// OrderHandler records orders and queues confirmation emails
type OrderHandler struct {
	credentials ports.CredentialRepository
	records     ports.WebhookRecordRepository
	clock       ports.Clock
	logger      zerolog.Logger
}

// NewOrderHandler creates a new order webhook handler
func NewOrderHandler(
	credentials ports.CredentialRepository,
	records ports.WebhookRecordRepository,
	clock ports.Clock,
	logger zerolog.Logger,
) *OrderHandler {
	return &OrderHandler{
		credentials: credentials,
		records:     records,
		clock:       clock,
		logger:      logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *OrderHandler) CanHandle(topic string) bool {
	return topic == "orders/create" || topic == "orders/updated"
}

// Handle processes an order webhook event
func (h *OrderHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var order orderPayload
	if err := json.Unmarshal(event.Payload, &order); err != nil {
		return fmt.Errorf("failed to parse order webhook payload: %w", err)
	}

	integration, err := h.credentials.FindByShopDomain(ctx, domain.PlatformShopify, event.Shop)
	if errors.Is(err, domain.ErrNotFound) {
		h.logger.Warn().
			Str("topic", event.Topic).
			Str("shop", event.Shop).
			Int64("orderId", order.ID).
			Msg("No integration for shop, ignoring order webhook")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find integration for shop: %w", err)
	}

	now := h.clock.Now().UTC()
	customerName := ""
	if order.BillingAddress != nil {
		customerName = strings.TrimSpace(order.BillingAddress.FirstName + " " + order.BillingAddress.LastName)
	}

	record := &domain.ShopifyOrder{
		ID:              uuid.NewString(),
		UserID:          integration.UserID,
		IntegrationID:   integration.ID,
		ShopDomain:      event.Shop,
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerEmail:   order.Email,
		CustomerName:    customerName,
		TotalPrice:      order.TotalPrice,
		Currency:        order.Currency,
		FinancialStatus: order.FinancialStatus,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.records.SaveOrder(ctx, record); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Str("userId", integration.UserID).
		Int64("orderId", order.ID).
		Int64("orderNumber", order.OrderNumber).
		Msg("Order recorded")

	if event.Topic != "orders/create" || order.Email == "" {
		return nil
	}

	activity := &domain.EmailActivity{
		ID:             uuid.NewString(),
		UserID:         integration.UserID,
		IntegrationID:  integration.ID,
		RecipientEmail: order.Email,
		Subject:        fmt.Sprintf("Order Confirmation - #%d", order.OrderNumber),
		Intent:         domain.IntentOrderConfirmation,
		Status:         domain.ActivityStatusPending,
		CreatedAt:      now,
	}
	if err := h.records.SaveEmailActivity(ctx, activity); err != nil {
		return fmt.Errorf("failed to queue order confirmation: %w", err)
	}
	return nil
}
