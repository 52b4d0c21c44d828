package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"helpdesk-integration-layer/internal/domain"

	"github.com/rs/zerolog"
)

// CustomerHandler handles customer-related webhook events
type CustomerHandler struct {
	logger zerolog.Logger
}

// NewCustomerHandler creates a new customer webhook handler
func NewCustomerHandler(logger zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *CustomerHandler) CanHandle(topic string) bool {
	return topic == "customers/create" || topic == "customers/update"
}

// Handle logs the customer event; live subscribers already received it from the event hub
func (h *CustomerHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var customer struct {
		ID          int64 `json:"id"`
		OrdersCount int   `json:"orders_count"`
	}
	if err := json.Unmarshal(event.Payload, &customer); err != nil {
		return fmt.Errorf("failed to parse customer webhook payload: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Int64("customerId", customer.ID).
		Int("ordersCount", customer.OrdersCount).
		Msg("Customer webhook received")
	return nil
}
