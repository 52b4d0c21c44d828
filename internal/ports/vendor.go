package ports

import (
	"context"
	"time"

	"helpdesk-integration-layer/internal/domain"
)

// TokenResult is what a vendor token endpoint returned
type TokenResult struct {
	AccessToken  string
	RefreshToken string        // empty when the vendor did not rotate it
	ExpiresIn    time.Duration // zero when the vendor omitted a lifetime
	Scopes       []string
}

// TokenRefresher mints a new access token from a refresh token.
// Implementations return errors wrapping domain.ErrReauthRequired when the grant is rejected
// and domain.ErrVendorTransient for network failures and 5xx responses.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResult, error)
}

// AuthorizationProvider drives the vendor side of an authorization-code flow
type AuthorizationProvider interface {
	// AuthorizeURL builds the vendor consent URL; shopDomain is empty for non-Shopify vendors
	AuthorizeURL(state, shopDomain string) (string, error)

	// ExchangeCode trades the authorization code for tokens
	ExchangeCode(ctx context.Context, code, shopDomain string) (*TokenResult, error)

	// AccountInfo fetches descriptive account data for the extra bag; callers treat failures as best-effort
	AccountInfo(ctx context.Context, token *TokenResult, shopDomain string) (map[string]any, error)
}

// WebhookRegistrar subscribes a connected shop to vendor webhooks
type WebhookRegistrar interface {
	RegisterWebhook(ctx context.Context, shopDomain, accessToken, topic, address string) error
}

// ShopifyCredentials identifies how to call the Admin API for one shop
type ShopifyCredentials struct {
	ShopDomain  string
	AccessToken string // OAuth connections
	APIKey      string // private-app connections
	Password    string
}

// ShopSummary is the subset of shop.json kept with a credential
type ShopSummary struct {
	Name     string
	Email    string
	Domain   string
	Plan     string
	Currency string
}

// OrderSummary is the subset of an Admin API order returned to the dashboard
type OrderSummary struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	TotalPrice        string    `json:"totalPrice"`
	Currency          string    `json:"currency"`
	FinancialStatus   string    `json:"financialStatus"`
	FulfillmentStatus string    `json:"fulfillmentStatus"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ShopifyAdmin performs Admin API calls on behalf of a connected shop
type ShopifyAdmin interface {
	GetShop(ctx context.Context, creds ShopifyCredentials) (*ShopSummary, error)
	ListOrders(ctx context.Context, creds ShopifyCredentials, limit int) ([]OrderSummary, error)
}

// MessageQuery selects a page of mailbox messages
type MessageQuery struct {
	Query     string
	Limit     int64
	PageToken string
}

// MessageSummary is the metadata of one mailbox message
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Date     string `json:"date"`
	Snippet  string `json:"snippet"`
	Unread   bool   `json:"unread"`
}

// MessagePage is one page of a mailbox listing
type MessagePage struct {
	Messages           []MessageSummary `json:"messages"`
	NextPageToken      string           `json:"nextPageToken,omitempty"`
	HasMore            bool             `json:"hasMore"`
	ResultSizeEstimate int64            `json:"resultSizeEstimate"`
}

// Mailbox lists messages using a fresh access token
type Mailbox interface {
	ListMessages(ctx context.Context, accessToken string, query MessageQuery) (*MessagePage, error)
}

// CredentialVerifier checks manually entered credentials against the vendor before they are stored
type CredentialVerifier interface {
	Verify(ctx context.Context, extra map[string]any) error
}

// EventPublisher fans verified webhook events out to live subscribers
type EventPublisher interface {
	Publish(event *domain.WebhookEvent)
}

// WebhookVerifier authenticates a raw webhook body against its signature header
type WebhookVerifier interface {
	Verify(rawBody []byte, signatureHeader string) bool
}
