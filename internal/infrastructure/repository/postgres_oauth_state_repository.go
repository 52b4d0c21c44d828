package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/infrastructure/repository/entity"

	"github.com/jmoiron/sqlx"
)

// PostgresOAuthStateRepository implements OAuthStateRepository on the oauth_states table
type PostgresOAuthStateRepository struct {
	db *sqlx.DB
}

func NewPostgresOAuthStateRepository(db *sqlx.DB) *PostgresOAuthStateRepository {
	return &PostgresOAuthStateRepository{db: db}
}

func (r *PostgresOAuthStateRepository) Save(ctx context.Context, state *domain.OAuthState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_states (state, user_id, platform, shop_domain, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		state.State, state.UserID, state.Platform.String(), state.ShopDomain, state.CreatedAt, state.ExpiresAt,
	)
	if err != nil {
		return storeError("save oauth state", err)
	}
	return nil
}

// Take deletes the nonce and returns the deleted row, so concurrent callbacks cannot both consume it
func (r *PostgresOAuthStateRepository) Take(ctx context.Context, state string) (*domain.OAuthState, error) {
	var row entity.PostgresOAuthStateRow
	err := r.db.GetContext(ctx, &row,
		`DELETE FROM oauth_states WHERE state = $1
		 RETURNING state, user_id, platform, shop_domain, created_at, expires_at`,
		state,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeError("take oauth state", err)
	}
	return row.ToDomain(), nil
}

func (r *PostgresOAuthStateRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, storeError("delete expired oauth states", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted oauth states: %w", err)
	}
	return n, nil
}
