package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/infrastructure/repository"
	"helpdesk-integration-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gmailCredential(expiresAt time.Time) *domain.IntegrationCredential {
	return &domain.IntegrationCredential{
		AccessToken:  "old-access",
		RefreshToken: "refresh-1",
		ExpiresAt:    expiresAt,
		Extra:        map[string]any{domain.ExtraEmailAddress: "support@example.com"},
	}
}

// seed stores cred for u1 through the manager and returns what was persisted
func seed(t *testing.T, m *CredentialManager, store ports.CredentialRepository, platform domain.Platform, cred *domain.IntegrationCredential) *domain.IntegrationCredential {
	t.Helper()
	require.NoError(t, m.UpsertCredential(context.Background(), "u1", platform, cred))
	stored, err := store.Get(context.Background(), "u1", platform)
	require.NoError(t, err)
	return stored
}

func TestUpsertThenLoadReturnsSameRecord(t *testing.T) {
	for _, platform := range domain.AllPlatforms {
		t.Run(platform.String(), func(t *testing.T) {
			store := repository.NewMemoryStore()
			m := newTestManager(store, nil, newStaticClock(), nil)
			ctx := context.Background()

			cred := &domain.IntegrationCredential{
				AccessToken: "token-" + platform.String(),
				Extra:       map[string]any{"k": "v"},
			}
			require.NoError(t, m.UpsertCredential(ctx, "u1", platform, cred))

			got, err := m.LoadCredential(ctx, "u1", platform)
			require.NoError(t, err)
			assert.Equal(t, cred, got)
			assert.Equal(t, domain.StatusConnected, got.Status)

			again := &domain.IntegrationCredential{AccessToken: "second"}
			require.NoError(t, m.UpsertCredential(ctx, "u1", platform, again))

			all, err := store.ListByUser(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "second", all[0].AccessToken)
		})
	}
}

func TestLoadCredentialErrors(t *testing.T) {
	m := newTestManager(repository.NewMemoryStore(), nil, newStaticClock(), nil)

	_, err := m.LoadCredential(context.Background(), "", domain.PlatformGmail)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = m.LoadCredential(context.Background(), "u1", domain.PlatformGmail)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnsureFreshValidTokenMakesNoVendorCall(t *testing.T) {
	store := repository.NewMemoryStore()
	refresher := &fakeRefresher{result: &ports.TokenResult{AccessToken: "new"}}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, newStaticClock(), nil)

	stored := seed(t, m, store, domain.PlatformGmail, gmailCredential(testNow.Add(time.Minute)))

	got, err := m.EnsureFresh(context.Background(), stored)
	require.NoError(t, err)
	assert.Same(t, stored, got)
	assert.Equal(t, 0, refresher.Calls())
}

func TestEnsureFreshExpiredRefreshesOnceAndPersists(t *testing.T) {
	store := repository.NewMemoryStore()
	clock := newStaticClock()
	metrics := &recordingMetrics{}
	refresher := &fakeRefresher{result: &ports.TokenResult{AccessToken: "new-access", ExpiresIn: 3599 * time.Second}}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, clock, metrics)

	stored := seed(t, m, store, domain.PlatformGmail, gmailCredential(testNow.Add(-time.Second)))
	clock.Set(testNow.Add(time.Second))

	got, err := m.EnsureFresh(context.Background(), stored)
	require.NoError(t, err)
	assert.Equal(t, 1, refresher.Calls())
	assert.NotEqual(t, stored.AccessToken, got.AccessToken)
	assert.True(t, got.ExpiresAt.After(stored.ExpiresAt))
	assert.Equal(t, "refresh-1", got.RefreshToken, "refresh token is kept when the vendor does not rotate it")
	assert.Equal(t, "support@example.com", got.ExtraString(domain.ExtraEmailAddress))

	persisted, err := store.Get(context.Background(), "u1", domain.PlatformGmail)
	require.NoError(t, err)
	assert.Equal(t, got, persisted)
	assert.Equal(t, []string{"gmail:refreshed"}, metrics.refresh)
}

func TestEnsureFreshUsesDefaultLifetime(t *testing.T) {
	store := repository.NewMemoryStore()
	clock := newStaticClock()
	refresher := &fakeRefresher{result: &ports.TokenResult{AccessToken: "new-access", RefreshToken: "refresh-2"}}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, clock, nil)

	stored := seed(t, m, store, domain.PlatformGmail, gmailCredential(testNow.Add(-time.Second)))

	got, err := m.EnsureFresh(context.Background(), stored)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.After(testNow.Add(1800*time.Second)))
	assert.Equal(t, testNow.Add(DefaultTokenLifetime), got.ExpiresAt)
	assert.Equal(t, "refresh-2", got.RefreshToken)

	persisted, err := store.Get(context.Background(), "u1", domain.PlatformGmail)
	require.NoError(t, err)
	assert.Equal(t, got.ExpiresAt, persisted.ExpiresAt)
}

func TestEnsureFreshExpiresExactlyAtDeadline(t *testing.T) {
	store := repository.NewMemoryStore()
	refresher := &fakeRefresher{result: &ports.TokenResult{AccessToken: "new"}}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, newStaticClock(), nil)

	stored := seed(t, m, store, domain.PlatformGmail, gmailCredential(testNow))
	_, err := m.EnsureFresh(context.Background(), stored)
	require.NoError(t, err)
	assert.Equal(t, 1, refresher.Calls())
}

func TestEnsureFreshVendorRejectionLeavesRecord(t *testing.T) {
	store := repository.NewMemoryStore()
	metrics := &recordingMetrics{}
	refresher := &fakeRefresher{err: errors.Join(domain.ErrReauthRequired, errors.New("invalid_grant"))}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, newStaticClock(), metrics)

	stored := seed(t, m, store, domain.PlatformGmail, gmailCredential(testNow.Add(-time.Hour)))

	got, err := m.EnsureFresh(context.Background(), stored)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrReauthRequired)

	persisted, err := store.Get(context.Background(), "u1", domain.PlatformGmail)
	require.NoError(t, err)
	assert.Equal(t, stored, persisted)
	assert.Equal(t, []string{"gmail:reauth_required"}, metrics.refresh)
}

func TestEnsureFreshTransientVendorFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	refresher := &fakeRefresher{err: errors.New("connection reset")}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, newStaticClock(), nil)

	stored := seed(t, m, store, domain.PlatformGmail, gmailCredential(testNow.Add(-time.Hour)))

	_, err := m.EnsureFresh(context.Background(), stored)
	assert.ErrorIs(t, err, domain.ErrVendorTransient)
	assert.NotErrorIs(t, err, domain.ErrReauthRequired)
	assert.NotContains(t, err.Error(), "refresh-1")
}

func TestEnsureFreshPlatformRules(t *testing.T) {
	tests := []struct {
		name      string
		platform  domain.Platform
		cred      *domain.IntegrationCredential
		wantCalls int
		wantErr   error
	}{
		{
			name:     "non-expiring platform passes through",
			platform: domain.PlatformShopify,
			cred:     &domain.IntegrationCredential{AccessToken: "shpat"},
		},
		{
			name:      "refreshable without expiry is treated as expired",
			platform:  domain.PlatformGmail,
			cred:      &domain.IntegrationCredential{AccessToken: "a", RefreshToken: "r"},
			wantCalls: 1,
		},
		{
			name:     "expired without refresh token needs reauth",
			platform: domain.PlatformOutlook,
			cred:     &domain.IntegrationCredential{AccessToken: "a", ExpiresAt: testNow.Add(-time.Minute)},
			wantErr:  domain.ErrReauthRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			refresher := &fakeRefresher{result: &ports.TokenResult{AccessToken: "new"}}
			m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{
				domain.PlatformGmail:   refresher,
				domain.PlatformOutlook: refresher,
			}, newStaticClock(), nil)

			stored := seed(t, m, store, tt.platform, tt.cred)
			got, err := m.EnsureFresh(context.Background(), stored)
			assert.Equal(t, tt.wantCalls, refresher.Calls())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantCalls == 0 {
				assert.Same(t, stored, got)
			}
		})
	}
}

func TestEnsureFreshPersistFailureReturnsFreshToken(t *testing.T) {
	mem := repository.NewMemoryStore()
	store := &storeWrapper{CredentialRepository: mem}
	metrics := &recordingMetrics{}
	refresher := &fakeRefresher{result: &ports.TokenResult{AccessToken: "new-access"}}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, newStaticClock(), metrics)

	stored := seed(t, m, mem, domain.PlatformGmail, gmailCredential(testNow.Add(-time.Hour)))
	store.casErr = errors.Join(domain.ErrStoreUnavailable, errors.New("connection refused"))

	got, err := m.EnsureFresh(context.Background(), stored)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRefreshPersistFailed)
	assert.ErrorIs(t, err, domain.ErrStorageFailed)
	require.NotNil(t, got)
	assert.Equal(t, "new-access", got.AccessToken)
	assert.NotContains(t, err.Error(), "new-access")

	persisted, err := mem.Get(context.Background(), "u1", domain.PlatformGmail)
	require.NoError(t, err)
	assert.Equal(t, "old-access", persisted.AccessToken)
	assert.Contains(t, metrics.refresh, "gmail:persist_failed")
}

func TestEnsureFreshLostRaceReturnsWinner(t *testing.T) {
	store := repository.NewMemoryStore()
	metrics := &recordingMetrics{}
	refresher := &fakeRefresher{result: &ports.TokenResult{AccessToken: "loser-access"}}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, newStaticClock(), metrics)

	stored := seed(t, m, store, domain.PlatformGmail, gmailCredential(testNow.Add(-time.Hour)))

	refresher.onRefresh = func(ctx context.Context) {
		winner := stored.Clone()
		winner.AccessToken = "winner-access"
		winner.ExpiresAt = testNow.Add(time.Hour)
		winner.UpdatedAt = testNow.Add(time.Millisecond)
		require.NoError(t, store.Upsert(ctx, winner))
	}

	got, err := m.EnsureFresh(context.Background(), stored)
	require.NoError(t, err)
	assert.Equal(t, "winner-access", got.AccessToken)

	persisted, err := store.Get(context.Background(), "u1", domain.PlatformGmail)
	require.NoError(t, err)
	assert.Equal(t, "winner-access", persisted.AccessToken)
	assert.Contains(t, metrics.refresh, "gmail:race_resolved")
}

func TestEnsureFreshLostRaceToExpiredRecordOverwrites(t *testing.T) {
	store := repository.NewMemoryStore()
	refresher := &fakeRefresher{result: &ports.TokenResult{AccessToken: "fresh-access"}}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, newStaticClock(), nil)

	stored := seed(t, m, store, domain.PlatformGmail, gmailCredential(testNow.Add(-time.Hour)))

	refresher.onRefresh = func(ctx context.Context) {
		other := stored.Clone()
		other.AccessToken = "stale-writer"
		other.UpdatedAt = testNow.Add(time.Millisecond)
		require.NoError(t, store.Upsert(ctx, other))
	}

	got, err := m.EnsureFresh(context.Background(), stored)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", got.AccessToken)

	persisted, err := store.Get(context.Background(), "u1", domain.PlatformGmail)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", persisted.AccessToken)
}

func TestEnsureFreshDoesNotResurrectDisconnected(t *testing.T) {
	store := repository.NewMemoryStore()
	refresher := &fakeRefresher{result: &ports.TokenResult{AccessToken: "new-access"}}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, newStaticClock(), nil)

	stored := seed(t, m, store, domain.PlatformGmail, gmailCredential(testNow.Add(-time.Hour)))
	refresher.onRefresh = func(ctx context.Context) {
		require.NoError(t, store.Delete(ctx, "u1", domain.PlatformGmail))
	}

	got, err := m.EnsureFresh(context.Background(), stored)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, store.Count())
}

func TestEnsureFreshPersistsAfterRequestCancelled(t *testing.T) {
	mem := repository.NewMemoryStore()
	store := &storeWrapper{CredentialRepository: mem, honourCtx: true}
	refresher := &fakeRefresher{result: &ports.TokenResult{AccessToken: "new-access"}}
	m := newTestManager(store, map[domain.Platform]ports.TokenRefresher{domain.PlatformGmail: refresher}, newStaticClock(), nil)

	stored := seed(t, m, mem, domain.PlatformGmail, gmailCredential(testNow.Add(-time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	refresher.onRefresh = func(context.Context) { cancel() }

	got, err := m.EnsureFresh(ctx, stored)
	require.NoError(t, err)
	assert.NoError(t, store.lastCASCtx)

	persisted, err := mem.Get(context.Background(), "u1", domain.PlatformGmail)
	require.NoError(t, err)
	assert.Equal(t, got.AccessToken, persisted.AccessToken)
}

func TestRequestScopeAvoidsRepeatedLoads(t *testing.T) {
	mem := repository.NewMemoryStore()
	store := &storeWrapper{CredentialRepository: mem}
	m := newTestManager(store, nil, newStaticClock(), nil)
	require.NoError(t, m.UpsertCredential(context.Background(), "u1", domain.PlatformShopify, &domain.IntegrationCredential{AccessToken: "a"}))

	ctx := WithRequestScope(context.Background())
	for i := 0; i < 3; i++ {
		_, err := m.LoadCredential(ctx, "u1", domain.PlatformShopify)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.Gets())

	// a new request reloads
	_, err := m.LoadCredential(WithRequestScope(context.Background()), "u1", domain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Gets())

	// without a scope every call goes to the store
	for i := 0; i < 2; i++ {
		_, err := m.LoadCredential(context.Background(), "u1", domain.PlatformShopify)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, store.Gets())
}

func TestRequestScopeEvictedOnDelete(t *testing.T) {
	store := repository.NewMemoryStore()
	m := newTestManager(store, nil, newStaticClock(), nil)
	ctx := WithRequestScope(context.Background())

	require.NoError(t, m.UpsertCredential(ctx, "u1", domain.PlatformIMAP, &domain.IntegrationCredential{}))
	_, err := m.LoadCredential(ctx, "u1", domain.PlatformIMAP)
	require.NoError(t, err)

	require.NoError(t, m.DeleteCredential(ctx, "u1", domain.PlatformIMAP))
	_, err = m.LoadCredential(ctx, "u1", domain.PlatformIMAP)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, m.DeleteCredential(ctx, "u1", domain.PlatformIMAP))
}

func TestListIntegrationsHidesSecrets(t *testing.T) {
	store := repository.NewMemoryStore()
	m := newTestManager(store, nil, newStaticClock(), nil)
	ctx := context.Background()

	require.NoError(t, m.UpsertCredential(ctx, "u1", domain.PlatformShopify, &domain.IntegrationCredential{
		Extra: map[string]any{
			domain.ExtraShopDomain: "acme.myshopify.com",
			domain.ExtraAPIKey:     "key-secret",
			domain.ExtraPassword:   "shppa_secret",
			domain.ExtraAuthType:   domain.AuthTypePrivateApp,
		},
	}))
	require.NoError(t, m.UpsertCredential(ctx, "u1", domain.PlatformGmail, &domain.IntegrationCredential{
		AccessToken:  "ya29.secret",
		RefreshToken: "1//secret",
		ExpiresAt:    testNow.Add(time.Hour),
	}))

	views, err := m.ListIntegrations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, len(domain.AllPlatforms))

	statuses := map[domain.Platform]domain.Status{}
	for _, v := range views {
		statuses[v.Platform] = v.Status
	}
	assert.Equal(t, domain.StatusConnected, statuses[domain.PlatformShopify])
	assert.Equal(t, domain.StatusConnected, statuses[domain.PlatformGmail])
	assert.Equal(t, domain.StatusNotConnected, statuses[domain.PlatformOutlook])

	raw, err := json.Marshal(views)
	require.NoError(t, err)
	for _, secret := range []string{"key-secret", "shppa_secret", "ya29.secret", "1//secret"} {
		assert.NotContains(t, string(raw), secret)
	}
	assert.Contains(t, string(raw), "acme.myshopify.com")
}

func TestPurgeExpiredStates(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.OAuthState{State: "gone", ExpiresAt: testNow.Add(-time.Second)}))
	require.NoError(t, store.Save(ctx, &domain.OAuthState{State: "kept", ExpiresAt: testNow.Add(time.Minute)}))

	PurgeExpiredStates(ctx, store, newStaticClock(), zerolog.Nop())

	assert.False(t, store.HasState("gone"))
	assert.True(t, store.HasState("kept"))
}
