package entity

import (
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/jmoiron/sqlx/types"
)

// PostgresCredentialRow maps a row of the integrations table
type PostgresCredentialRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Platform    string         `db:"platform"`
	Credentials types.JSONText `db:"credentials"`
	Status      string         `db:"status"`
	ConnectedAt time.Time      `db:"connected_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *PostgresCredentialRow) ToDomain(enc ports.EncryptionService) (*domain.IntegrationCredential, error) {
	cred := &domain.IntegrationCredential{
		ID:          r.ID,
		UserID:      r.UserID,
		Platform:    domain.Platform(r.Platform),
		Status:      domain.Status(r.Status),
		ConnectedAt: r.ConnectedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if err := OpenCredential(r.Credentials, cred, enc); err != nil {
		return nil, err
	}
	return cred, nil
}

func PostgresCredentialRowFromDomain(cred *domain.IntegrationCredential, enc ports.EncryptionService) (*PostgresCredentialRow, error) {
	payload, err := SealCredential(cred, enc)
	if err != nil {
		return nil, err
	}
	return &PostgresCredentialRow{
		ID:          cred.ID,
		UserID:      cred.UserID,
		Platform:    cred.Platform.String(),
		Credentials: types.JSONText(payload),
		Status:      string(cred.Status),
		ConnectedAt: cred.ConnectedAt,
		UpdatedAt:   cred.UpdatedAt,
	}, nil
}

// PostgresOAuthStateRow maps a row of the oauth_states table
type PostgresOAuthStateRow struct {
	State      string    `db:"state"`
	UserID     string    `db:"user_id"`
	Platform   string    `db:"platform"`
	ShopDomain string    `db:"shop_domain"`
	CreatedAt  time.Time `db:"created_at"`
	ExpiresAt  time.Time `db:"expires_at"`
}

func (r *PostgresOAuthStateRow) ToDomain() *domain.OAuthState {
	return &domain.OAuthState{
		State:      r.State,
		UserID:     r.UserID,
		Platform:   domain.Platform(r.Platform),
		ShopDomain: r.ShopDomain,
		CreatedAt:  r.CreatedAt.UTC(),
		ExpiresAt:  r.ExpiresAt.UTC(),
	}
}
