package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/infrastructure/repository/entity"
	"helpdesk-integration-layer/internal/ports"

	"github.com/jmoiron/sqlx"
)

const credentialColumns = `id, user_id, platform, credentials, status, connected_at, updated_at`

// PostgresCredentialRepository implements CredentialRepository on the integrations table
type PostgresCredentialRepository struct {
	db  *sqlx.DB
	enc ports.EncryptionService
}

func NewPostgresCredentialRepository(db *sqlx.DB, enc ports.EncryptionService) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{db: db, enc: enc}
}

func (r *PostgresCredentialRepository) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.IntegrationCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM integrations WHERE user_id = $1 AND platform = $2`
	return r.getOne(ctx, query, userID, platform.String())
}

func (r *PostgresCredentialRepository) FindByShopDomain(ctx context.Context, platform domain.Platform, shopDomain string) (*domain.IntegrationCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM integrations
		WHERE platform = $1 AND credentials -> 'extra' ->> 'shop_domain' = $2
		ORDER BY updated_at DESC, user_id LIMIT 1`
	return r.getOne(ctx, query, platform.String(), shopDomain)
}

func (r *PostgresCredentialRepository) getOne(ctx context.Context, query string, args ...any) (*domain.IntegrationCredential, error) {
	var row entity.PostgresCredentialRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeError("get credential", err)
	}
	return row.ToDomain(r.enc)
}

func (r *PostgresCredentialRepository) ListByUser(ctx context.Context, userID string) ([]*domain.IntegrationCredential, error) {
	var rows []entity.PostgresCredentialRow
	query := `SELECT ` + credentialColumns + ` FROM integrations WHERE user_id = $1 ORDER BY platform`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, storeError("list credentials", err)
	}

	creds := make([]*domain.IntegrationCredential, 0, len(rows))
	for i := range rows {
		cred, err := rows[i].ToDomain(r.enc)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// Upsert relies on the (user_id, platform) unique constraint so a pair never has two rows
func (r *PostgresCredentialRepository) Upsert(ctx context.Context, cred *domain.IntegrationCredential) error {
	row, err := entity.PostgresCredentialRowFromDomain(cred, r.enc)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO integrations (` + credentialColumns + `)
		VALUES (:id, :user_id, :platform, :credentials, :status, :connected_at, :updated_at)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			id = EXCLUDED.id,
			credentials = EXCLUDED.credentials,
			status = EXCLUDED.status,
			connected_at = EXCLUDED.connected_at,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return storeError("save credential", err)
	}
	return nil
}

func (r *PostgresCredentialRepository) CompareAndSwap(ctx context.Context, cred *domain.IntegrationCredential, expectedUpdatedAt time.Time) error {
	row, err := entity.PostgresCredentialRowFromDomain(cred, r.enc)
	if err != nil {
		return err
	}

	query := `
		UPDATE integrations
		SET credentials = $1, status = $2, updated_at = $3
		WHERE user_id = $4 AND platform = $5 AND updated_at = $6`

	result, err := r.db.ExecContext(ctx, query,
		row.Credentials, row.Status, row.UpdatedAt,
		row.UserID, row.Platform, expectedUpdatedAt,
	)
	if err != nil {
		return storeError("update credential", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeError("update credential", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM integrations WHERE user_id = $1 AND platform = $2)`,
		row.UserID, row.Platform,
	)
	if err != nil {
		return storeError("check credential", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func (r *PostgresCredentialRepository) Delete(ctx context.Context, userID string, platform domain.Platform) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM integrations WHERE user_id = $1 AND platform = $2`,
		userID, platform.String(),
	)
	if err != nil {
		return storeError("delete credential", err)
	}
	return nil
}
