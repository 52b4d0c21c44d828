package domain

import "time"

// WebhookEvent is a verified vendor webhook delivery
type WebhookEvent struct {
	Topic      string    `json:"topic"`
	Shop       string    `json:"shop"`
	WebhookID  string    `json:"webhook_id,omitempty"`
	Payload    []byte    `json:"-"`
	ReceivedAt time.Time `json:"received_at"`
}

// ShopifyOrder is the order record derived from orders/* webhooks
type ShopifyOrder struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	IntegrationID   string    `json:"integration_id"`
	ShopDomain      string    `json:"shop_domain"`
	OrderID         int64     `json:"order_id"`
	OrderNumber     int64     `json:"order_number"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerName    string    `json:"customer_name"`
	TotalPrice      string    `json:"total_price"`
	Currency        string    `json:"currency"`
	FinancialStatus string    `json:"financial_status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EmailActivity is a queued outbound email the reply pipeline picks up
type EmailActivity struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	IntegrationID  string    `json:"integration_id"`
	RecipientEmail string    `json:"recipient_email"`
	Subject        string    `json:"subject"`
	Intent         string    `json:"intent"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	IntentOrderConfirmation = "order_confirmation"
	ActivityStatusPending   = "pending"
)
