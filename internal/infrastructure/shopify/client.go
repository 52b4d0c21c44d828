package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

const DefaultAPIVersion = "2023-10"

// DefaultScopes are requested for every OAuth connection
var DefaultScopes = []string{
	"read_orders",
	"read_products",
	"read_customers",
	"read_inventory",
	"write_orders",
	"write_products",
	"write_customers",
}

// Config holds the public app credentials
type Config struct {
	APIKey      string
	APISecret   string
	RedirectURI string
	Scopes      []string
	APIVersion  string
	Timeout     time.Duration
	// HTTPClient replaces the client built from Timeout
	HTTPClient *http.Client
}

// Client talks to the Shopify Admin API and OAuth endpoints
type Client struct {
	app        goshopify.App
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new Shopify client adapter
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		app: goshopify.App{
			ApiKey:      cfg.APIKey,
			ApiSecret:   cfg.APISecret,
			RedirectUrl: cfg.RedirectURI,
			Scope:       strings.Join(cfg.Scopes, ","),
		},
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

// createClient is a helper to create a goshopify client for one shop
func (c *Client) createClient(creds ports.ShopifyCredentials) (*goshopify.Client, error) {
	app := c.app
	token := creds.AccessToken
	if token == "" {
		// private apps authenticate with basic auth
		app = goshopify.App{ApiKey: creds.APIKey, Password: creds.Password}
	}
	client, err := goshopify.NewClient(app, creds.ShopDomain, token,
		goshopify.WithVersion(c.cfg.APIVersion),
		goshopify.WithHTTPClient(c.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// Authentication methods

// AuthorizeURL builds the per-user consent URL for shop
func (c *Client) AuthorizeURL(state, shop string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: shopify api key", domain.ErrConfiguration)
	}
	q := url.Values{}
	q.Set("client_id", c.cfg.APIKey)
	q.Set("scope", strings.Join(c.cfg.Scopes, ","))
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("state", state)
	q.Add("grant_options[]", "per-user")

	return fmt.Sprintf("https://%s/admin/oauth/authorize?%s", shop, q.Encode()), nil
}

// ExchangeCode posts the code to the shop's token endpoint. go-shopify's GetAccessToken does not send
// redirect_uri, so the call is made directly.
func (c *Client) ExchangeCode(ctx context.Context, code, shop string) (*ports.TokenResult, error) {
	tokenURL := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)

	values := url.Values{}
	values.Set("client_id", c.cfg.APIKey)
	values.Set("client_secret", c.cfg.APISecret)
	values.Set("code", code)
	values.Set("redirect_uri", c.cfg.RedirectURI)

	return c.exchange(ctx, tokenURL, values)
}

func (c *Client) exchange(ctx context.Context, tokenURL string, values url.Values) (*ports.TokenResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange token: %w", domain.ErrVendorTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// the body may echo request parameters, so only its size is logged
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Int("bodyBytes", len(body)).
			Msg("Shopify token exchange rejected")
		return nil, fmt.Errorf("failed to exchange token: status %d", resp.StatusCode)
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return nil, fmt.Errorf("failed to exchange token: empty access token")
	}

	var scopes []string
	for _, s := range strings.Split(tokenResponse.Scope, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return &ports.TokenResult{AccessToken: tokenResponse.AccessToken, Scopes: scopes}, nil
}

// AccountInfo returns the shop_info extra entry for a new connection
func (c *Client) AccountInfo(ctx context.Context, token *ports.TokenResult, shop string) (map[string]any, error) {
	summary, err := c.GetShop(ctx, ports.ShopifyCredentials{ShopDomain: shop, AccessToken: token.AccessToken})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		domain.ExtraShopInfo: map[string]any{
			"name":     summary.Name,
			"email":    summary.Email,
			"domain":   summary.Domain,
			"plan":     summary.Plan,
			"currency": summary.Currency,
		},
	}, nil
}

// VerifyCallback checks the hmac Shopify appends to the OAuth redirect
func (c *Client) VerifyCallback(u *url.URL) bool {
	ok, err := c.app.VerifyAuthorizationURL(u)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Failed to verify authorization callback")
		return false
	}
	return ok
}

// Shop API

func (c *Client) GetShop(ctx context.Context, creds ports.ShopifyCredentials) (*ports.ShopSummary, error) {
	client, err := c.createClient(creds)
	if err != nil {
		return nil, err
	}
	shop, err := client.Shop.Get(ctx, nil)
	if err != nil {
		return nil, c.classifyError("get shop", err)
	}
	return &ports.ShopSummary{
		Name:     shop.Name,
		Email:    shop.Email,
		Domain:   shop.MyshopifyDomain,
		Plan:     shop.PlanName,
		Currency: shop.Currency,
	}, nil
}

// Order API

func (c *Client) ListOrders(ctx context.Context, creds ports.ShopifyCredentials, limit int) ([]ports.OrderSummary, error) {
	client, err := c.createClient(creds)
	if err != nil {
		return nil, err
	}
	orders, err := client.Order.List(ctx, goshopify.OrderListOptions{
		ListOptions: goshopify.ListOptions{Limit: limit},
		Status:      "any",
	})
	if err != nil {
		return nil, c.classifyError("list orders", err)
	}

	out := make([]ports.OrderSummary, 0, len(orders))
	for _, o := range orders {
		summary := ports.OrderSummary{
			ID:                int64(o.Id),
			Name:              o.Name,
			Email:             o.Email,
			Currency:          o.Currency,
			FinancialStatus:   string(o.FinancialStatus),
			FulfillmentStatus: string(o.FulfillmentStatus),
		}
		if o.TotalPrice != nil {
			summary.TotalPrice = o.TotalPrice.String()
		}
		if o.CreatedAt != nil {
			summary.CreatedAt = *o.CreatedAt
		}
		out = append(out, summary)
	}
	return out, nil
}

// Webhook API

func (c *Client) RegisterWebhook(ctx context.Context, shop, accessToken, topic, address string) error {
	client, err := c.createClient(ports.ShopifyCredentials{ShopDomain: shop, AccessToken: accessToken})
	if err != nil {
		return err
	}
	_, err = client.Webhook.Create(ctx, goshopify.Webhook{
		Topic:   topic,
		Address: address,
		Format:  "json",
	})
	if err != nil {
		return c.classifyError("create webhook", err)
	}
	return nil
}
