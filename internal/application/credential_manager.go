package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultTokenLifetime  = time.Hour
	DefaultPersistTimeout = 10 * time.Second
)

// ManagerConfig tunes token freshness handling
type ManagerConfig struct {
	// DefaultTokenLifetime applies when a vendor omits expires_in
	DefaultTokenLifetime time.Duration
	// RefreshSkew refreshes tokens this long before they actually expire
	RefreshSkew time.Duration
	// PersistTimeout bounds the write phase, which outlives request cancellation
	PersistTimeout time.Duration
}

// Refresh outcomes reported to metrics
const (
	outcomeRefreshed     = "refreshed"
	outcomeReauth        = "reauth_required"
	outcomeTransient     = "vendor_transient"
	outcomePersistFailed = "persist_failed"
	outcomeRaceResolved  = "race_resolved"
)

// CredentialManager owns load, refresh and replacement of integration credentials
type CredentialManager struct {
	store      ports.CredentialRepository
	refreshers map[domain.Platform]ports.TokenRefresher
	clock      ports.Clock
	metrics    ports.MetricsRecorder
	cfg        ManagerConfig
	logger     zerolog.Logger
}

// NewCredentialManager creates a credential manager. Platforms without a refresher are treated as non-expiring.
func NewCredentialManager(
	store ports.CredentialRepository,
	refreshers map[domain.Platform]ports.TokenRefresher,
	clock ports.Clock,
	metrics ports.MetricsRecorder,
	cfg ManagerConfig,
	logger zerolog.Logger,
) *CredentialManager {
	if cfg.DefaultTokenLifetime <= 0 {
		cfg.DefaultTokenLifetime = DefaultTokenLifetime
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if refreshers == nil {
		refreshers = map[domain.Platform]ports.TokenRefresher{}
	}
	return &CredentialManager{
		store:      store,
		refreshers: refreshers,
		clock:      clock,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// now is truncated to milliseconds so stored and in-memory UpdatedAt compare equal on every store
func (m *CredentialManager) now() time.Time {
	return m.clock.Now().UTC().Truncate(time.Millisecond)
}

// IsRefreshable reports whether credentials of platform expire and can be refreshed
func (m *CredentialManager) IsRefreshable(platform domain.Platform) bool {
	_, ok := m.refreshers[platform]
	return ok
}

// DefaultTokenLifetime is the lifetime assumed when a vendor omits one
func (m *CredentialManager) DefaultTokenLifetime() time.Duration {
	return m.cfg.DefaultTokenLifetime
}

// LoadCredential returns the stored credential for (userID, platform).
// Errors wrap domain.ErrNotFound or domain.ErrStoreUnavailable.
func (m *CredentialManager) LoadCredential(ctx context.Context, userID string, platform domain.Platform) (*domain.IntegrationCredential, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	scope := scopeFrom(ctx)
	if cached := scope.get(userID, platform); cached != nil {
		return cached, nil
	}

	cred, err := m.store.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	scope.put(cred)
	return cred, nil
}

// EnsureFresh returns a credential that is valid for immediate use.
//
// A non-expired credential is returned unchanged without contacting the vendor. An expired one is
// refreshed once and persisted before it is returned. If the vendor refresh succeeded but the write
// failed, both the fresh credential and an error wrapping domain.ErrRefreshPersistFailed are returned;
// the caller may use the token for the current request only.
func (m *CredentialManager) EnsureFresh(ctx context.Context, cred *domain.IntegrationCredential) (*domain.IntegrationCredential, error) {
	if cred == nil {
		return nil, fmt.Errorf("%w: nil credential", domain.ErrInvalidInput)
	}

	refresher, ok := m.refreshers[cred.Platform]
	if !ok {
		return cred, nil
	}

	if cred.HasExpiry() && m.now().Add(m.cfg.RefreshSkew).Before(cred.ExpiresAt) {
		return cred, nil
	}

	log := m.logger.With().
		Str("userId", cred.UserID).
		Str("platform", cred.Platform.String()).
		Logger()

	if cred.RefreshToken == "" {
		m.metrics.RefreshOutcome(cred.Platform.String(), outcomeReauth)
		log.Warn().Msg("Credential expired and no refresh token is stored")
		return nil, fmt.Errorf("%w: no refresh token for %s", domain.ErrReauthRequired, cred.Platform)
	}

	result, err := refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrReauthRequired) {
			m.metrics.RefreshOutcome(cred.Platform.String(), outcomeReauth)
			log.Warn().Err(err).Msg("Vendor rejected refresh token")
			return nil, err
		}
		m.metrics.RefreshOutcome(cred.Platform.String(), outcomeTransient)
		log.Error().Err(err).Msg("Token refresh failed")
		if !errors.Is(err, domain.ErrVendorTransient) && !errors.Is(err, domain.ErrConfiguration) {
			err = fmt.Errorf("%w: %w", domain.ErrVendorTransient, err)
		}
		return nil, err
	}

	fresh := cred.Clone()
	fresh.AccessToken = result.AccessToken
	if result.RefreshToken != "" {
		fresh.RefreshToken = result.RefreshToken
	}
	lifetime := result.ExpiresIn
	if lifetime <= 0 {
		lifetime = m.cfg.DefaultTokenLifetime
	}
	now := m.now()
	fresh.ExpiresAt = now.Add(lifetime)
	fresh.UpdatedAt = now
	fresh.Status = domain.StatusConnected

	stored, err := m.persistRefresh(ctx, cred, fresh)
	if err != nil {
		scopeFrom(ctx).evict(cred.UserID, cred.Platform)
		if stored == nil {
			return nil, err
		}
		m.metrics.RefreshOutcome(cred.Platform.String(), outcomePersistFailed)
		log.Error().Err(err).Msg("Refreshed token could not be persisted")
		return stored, err
	}

	scopeFrom(ctx).put(stored)
	m.metrics.RefreshOutcome(cred.Platform.String(), outcomeRefreshed)
	log.Info().Time("expiresAt", stored.ExpiresAt).Msg("Access token refreshed")
	return stored, nil
}

// persistRefresh writes fresh only if prev is still the stored version. A lost race resolves to the
// winner when the winner is still valid, otherwise to last-write-wins.
func (m *CredentialManager) persistRefresh(ctx context.Context, prev, fresh *domain.IntegrationCredential) (*domain.IntegrationCredential, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.PersistTimeout)
	defer cancel()

	err := m.store.CompareAndSwap(writeCtx, fresh, prev.UpdatedAt)
	switch {
	case err == nil:
		return fresh, nil
	case errors.Is(err, domain.ErrNotFound):
		// disconnected while refreshing; never resurrect the record
		return nil, err
	case errors.Is(err, domain.ErrConflict):
		current, getErr := m.store.Get(writeCtx, fresh.UserID, fresh.Platform)
		if getErr == nil && current.HasExpiry() && !current.IsExpired(m.now()) {
			m.metrics.RefreshOutcome(fresh.Platform.String(), outcomeRaceResolved)
			return current, nil
		}
		if errors.Is(getErr, domain.ErrNotFound) {
			return nil, getErr
		}
		if err = m.store.Upsert(writeCtx, fresh); err == nil {
			return fresh, nil
		}
	}
	return fresh, fmt.Errorf("%w: %w: %w", domain.ErrRefreshPersistFailed, domain.ErrStorageFailed, err)
}

// GetFreshCredential loads and, when needed, refreshes the credential for (userID, platform)
func (m *CredentialManager) GetFreshCredential(ctx context.Context, userID string, platform domain.Platform) (*domain.IntegrationCredential, error) {
	cred, err := m.LoadCredential(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	return m.EnsureFresh(ctx, cred)
}

// UpsertCredential replaces whatever is stored for (userID, platform) with cred
func (m *CredentialManager) UpsertCredential(ctx context.Context, userID string, platform domain.Platform, cred *domain.IntegrationCredential) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	if cred == nil {
		return fmt.Errorf("%w: nil credential", domain.ErrInvalidInput)
	}

	now := m.now()
	cred.UserID = userID
	cred.Platform = platform
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	if cred.Status == "" {
		cred.Status = domain.StatusConnected
	}
	if cred.ConnectedAt.IsZero() {
		cred.ConnectedAt = now
	}
	cred.ConnectedAt = cred.ConnectedAt.UTC().Truncate(time.Millisecond)
	if cred.HasExpiry() {
		cred.ExpiresAt = cred.ExpiresAt.UTC().Truncate(time.Millisecond)
	}
	cred.UpdatedAt = now

	if err := m.store.Upsert(ctx, cred); err != nil {
		scopeFrom(ctx).evict(userID, platform)
		m.logger.Error().
			Err(err).
			Str("userId", userID).
			Str("platform", platform.String()).
			Msg("Failed to store credential")
		return fmt.Errorf("%w: %w", domain.ErrStorageFailed, err)
	}

	scopeFrom(ctx).put(cred)
	m.logger.Info().
		Str("userId", userID).
		Str("platform", platform.String()).
		Msg("Integration connected")
	return nil
}

// DeleteCredential disconnects (userID, platform); disconnecting twice is not an error
func (m *CredentialManager) DeleteCredential(ctx context.Context, userID string, platform domain.Platform) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	scopeFrom(ctx).evict(userID, platform)
	if err := m.store.Delete(ctx, userID, platform); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	m.logger.Info().
		Str("userId", userID).
		Str("platform", platform.String()).
		Msg("Integration disconnected")
	return nil
}

// IntegrationView is the client-safe projection of a credential
type IntegrationView struct {
	Platform    domain.Platform `json:"platform"`
	Status      domain.Status   `json:"status"`
	ConnectedAt *time.Time      `json:"connectedAt,omitempty"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
	Details     map[string]any  `json:"details,omitempty"`
}

// NewIntegrationView projects cred without any secret
func NewIntegrationView(platform domain.Platform, cred *domain.IntegrationCredential) IntegrationView {
	if cred == nil {
		return IntegrationView{Platform: platform, Status: domain.StatusNotConnected}
	}
	view := IntegrationView{
		Platform:    cred.Platform,
		Status:      cred.Status,
		ConnectedAt: timePtr(cred.ConnectedAt),
		UpdatedAt:   timePtr(cred.UpdatedAt),
		ExpiresAt:   timePtr(cred.ExpiresAt),
		Details:     cred.PublicExtra(),
	}
	return view
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ListIntegrations reports the connection status of every platform for userID
func (m *CredentialManager) ListIntegrations(ctx context.Context, userID string) ([]IntegrationView, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	creds, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byPlatform := make(map[domain.Platform]*domain.IntegrationCredential, len(creds))
	for _, c := range creds {
		byPlatform[c.Platform] = c
	}

	views := make([]IntegrationView, 0, len(domain.AllPlatforms))
	for _, p := range domain.AllPlatforms {
		views = append(views, NewIntegrationView(p, byPlatform[p]))
	}
	return views, nil
}

// PurgeExpiredStates is run periodically to drop abandoned authorization nonces
func PurgeExpiredStates(ctx context.Context, states ports.OAuthStateRepository, clock ports.Clock, logger zerolog.Logger) {
	removed, err := states.DeleteExpired(ctx, clock.Now().UTC())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to purge expired OAuth states")
		return
	}
	if removed > 0 {
		logger.Debug().Int64("removed", removed).Msg("Purged expired OAuth states")
	}
}
