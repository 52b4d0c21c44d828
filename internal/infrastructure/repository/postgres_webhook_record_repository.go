package repository

import (
	"context"

	"helpdesk-integration-layer/internal/domain"

	"github.com/jmoiron/sqlx"
)

// PostgresWebhookRecordRepository stores webhook-derived rows
type PostgresWebhookRecordRepository struct {
	db *sqlx.DB
}

func NewPostgresWebhookRecordRepository(db *sqlx.DB) *PostgresWebhookRecordRepository {
	return &PostgresWebhookRecordRepository{db: db}
}

func (r *PostgresWebhookRecordRepository) SaveOrder(ctx context.Context, o *domain.ShopifyOrder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shopify_orders (id, user_id, integration_id, shop_domain, order_id, order_number,
			customer_email, customer_name, total_price, currency, financial_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (shop_domain, order_id) DO UPDATE SET
			customer_email = EXCLUDED.customer_email,
			customer_name = EXCLUDED.customer_name,
			total_price = EXCLUDED.total_price,
			currency = EXCLUDED.currency,
			financial_status = EXCLUDED.financial_status,
			updated_at = EXCLUDED.updated_at`,
		o.ID, o.UserID, o.IntegrationID, o.ShopDomain, o.OrderID, o.OrderNumber,
		o.CustomerEmail, o.CustomerName, o.TotalPrice, o.Currency, o.FinancialStatus, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return storeError("save order", err)
	}
	return nil
}

func (r *PostgresWebhookRecordRepository) SaveEmailActivity(ctx context.Context, a *domain.EmailActivity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_activity (id, user_id, integration_id, recipient_email, subject, intent, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UserID, a.IntegrationID, a.RecipientEmail, a.Subject, a.Intent, a.Status, a.CreatedAt,
	)
	if err != nil {
		return storeError("save email activity", err)
	}
	return nil
}
