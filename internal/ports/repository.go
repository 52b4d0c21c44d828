package ports

import (
	"context"
	"time"

	"helpdesk-integration-layer/internal/domain"
)

// CredentialRepository persists at most one credential per (user, platform)
type CredentialRepository interface {
	// Get returns the credential or domain.ErrNotFound
	Get(ctx context.Context, userID string, platform domain.Platform) (*domain.IntegrationCredential, error)

	// ListByUser returns every credential the user has
	ListByUser(ctx context.Context, userID string) ([]*domain.IntegrationCredential, error)

	// FindByShopDomain returns the credential bound to a shop, or domain.ErrNotFound
	FindByShopDomain(ctx context.Context, platform domain.Platform, shopDomain string) (*domain.IntegrationCredential, error)

	// Upsert atomically replaces the record for (cred.UserID, cred.Platform)
	Upsert(ctx context.Context, cred *domain.IntegrationCredential) error

	// CompareAndSwap replaces the record only if its stored UpdatedAt equals expectedUpdatedAt.
	// Returns domain.ErrConflict when it does not, domain.ErrNotFound when the record is gone.
	CompareAndSwap(ctx context.Context, cred *domain.IntegrationCredential, expectedUpdatedAt time.Time) error

	// Delete removes the record; deleting an absent record is not an error
	Delete(ctx context.Context, userID string, platform domain.Platform) error
}

// OAuthStateRepository stores single-use authorization nonces
type OAuthStateRepository interface {
	Save(ctx context.Context, state *domain.OAuthState) error

	// Take atomically loads and deletes the nonce. Returns domain.ErrNotFound if it does not exist.
	Take(ctx context.Context, state string) (*domain.OAuthState, error)

	// DeleteExpired removes nonces whose expiry is at or before the given time
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// WebhookRecordRepository persists records derived from vendor webhooks
type WebhookRecordRepository interface {
	SaveOrder(ctx context.Context, order *domain.ShopifyOrder) error
	SaveEmailActivity(ctx context.Context, activity *domain.EmailActivity) error
}

// EncryptionService seals secrets stored at rest
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
