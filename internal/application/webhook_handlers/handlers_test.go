package webhook_handlers

import (
	"context"
	"testing"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/infrastructure/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return fixedNow }

const orderBody = `{
	"id": 450789469,
	"order_number": 1001,
	"email": "jane@example.com",
	"total_price": "199.00",
	"currency": "EUR",
	"financial_status": "paid",
	"billing_address": {"first_name": "Jane", "last_name": "Doe"}
}`

func connectedShop(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), &domain.IntegrationCredential{
		ID:       "int-1",
		UserID:   "u1",
		Platform: domain.PlatformShopify,
		Extra:    map[string]any{domain.ExtraShopDomain: "acme.myshopify.com"},
	}))
	return store
}

func TestOrderHandler(t *testing.T) {
	tests := []struct {
		name           string
		topic          string
		shop           string
		wantOrders     int
		wantActivities int
	}{
		{name: "new order queues confirmation", topic: "orders/create", shop: "acme.myshopify.com", wantOrders: 1, wantActivities: 1},
		{name: "updated order is only recorded", topic: "orders/updated", shop: "acme.myshopify.com", wantOrders: 1},
		{name: "unknown shop is ignored", topic: "orders/create", shop: "other.myshopify.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := connectedShop(t)
			h := NewOrderHandler(store, store, fixedClock{}, zerolog.Nop())
			require.True(t, h.CanHandle(tt.topic))

			err := h.Handle(context.Background(), &domain.WebhookEvent{Topic: tt.topic, Shop: tt.shop, Payload: []byte(orderBody)})
			require.NoError(t, err)

			orders := store.Orders()
			activities := store.EmailActivities()
			require.Len(t, orders, tt.wantOrders)
			require.Len(t, activities, tt.wantActivities)

			if tt.wantOrders > 0 {
				o := orders[0]
				assert.Equal(t, "u1", o.UserID)
				assert.Equal(t, "int-1", o.IntegrationID)
				assert.Equal(t, int64(450789469), o.OrderID)
				assert.Equal(t, "Jane Doe", o.CustomerName)
				assert.Equal(t, fixedNow, o.CreatedAt)
			}
			if tt.wantActivities > 0 {
				a := activities[0]
				assert.Equal(t, "jane@example.com", a.RecipientEmail)
				assert.Equal(t, "Order Confirmation - #1001", a.Subject)
				assert.Equal(t, domain.ActivityStatusPending, a.Status)
			}
		})
	}
}

func TestOrderHandlerRejectsMalformedPayload(t *testing.T) {
	store := connectedShop(t)
	h := NewOrderHandler(store, store, fixedClock{}, zerolog.Nop())

	err := h.Handle(context.Background(), &domain.WebhookEvent{Topic: "orders/create", Shop: "acme.myshopify.com", Payload: []byte("not json")})
	assert.Error(t, err)
	assert.Empty(t, store.Orders())
}

type removerFunc func(ctx context.Context, userID string, platform domain.Platform) error

func (f removerFunc) DeleteCredential(ctx context.Context, userID string, platform domain.Platform) error {
	return f(ctx, userID, platform)
}

func TestAppUninstalledHandler(t *testing.T) {
	tests := []struct {
		name      string
		shop      string
		payload   string
		wantCount int
	}{
		{name: "shop header", shop: "acme.myshopify.com", payload: `{}`},
		{name: "shop from payload", payload: `{"myshopify_domain":"acme.myshopify.com"}`},
		{name: "unknown shop", shop: "other.myshopify.com", payload: `{}`, wantCount: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := connectedShop(t)
			remover := removerFunc(func(ctx context.Context, userID string, platform domain.Platform) error {
				return store.Delete(ctx, userID, platform)
			})
			h := NewAppUninstalledHandler(store, remover, zerolog.Nop())
			require.True(t, h.CanHandle("app/uninstalled"))

			err := h.Handle(context.Background(), &domain.WebhookEvent{Topic: "app/uninstalled", Shop: tt.shop, Payload: []byte(tt.payload)})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, store.Count())
		})
	}
}

func TestCustomerHandlerTopics(t *testing.T) {
	h := NewCustomerHandler(zerolog.Nop())
	assert.True(t, h.CanHandle("customers/create"))
	assert.True(t, h.CanHandle("customers/update"))
	assert.False(t, h.CanHandle("orders/create"))

	assert.NoError(t, h.Handle(context.Background(), &domain.WebhookEvent{Topic: "customers/create", Payload: []byte(`{"id":7,"orders_count":2}`)}))
	assert.Error(t, h.Handle(context.Background(), &domain.WebhookEvent{Topic: "customers/create", Payload: []byte(`[`)}))
}
