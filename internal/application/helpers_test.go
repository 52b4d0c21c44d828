package application

import (
	"context"
	"sync"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/rs/zerolog"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type staticClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStaticClock() *staticClock { return &staticClock{now: testNow} }

func (c *staticClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *staticClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type staticNonces struct {
	mu     sync.Mutex
	values []string
}

func (n *staticNonces) NewNonce() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.values[0]
	n.values = n.values[1:]
	return v, nil
}

type fakeRefresher struct {
	mu        sync.Mutex
	calls     int
	result    *ports.TokenResult
	err       error
	onRefresh func(ctx context.Context)
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*ports.TokenResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onRefresh != nil {
		f.onRefresh(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingMetrics struct {
	mu       sync.Mutex
	refresh  []string
	oauth    []string
	webhooks []string
}

func (m *recordingMetrics) RefreshOutcome(platform, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = append(m.refresh, platform+":"+outcome)
}

func (m *recordingMetrics) OAuthOutcome(platform, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oauth = append(m.oauth, platform+":"+outcome)
}

func (m *recordingMetrics) WebhookVerification(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, outcome)
}

// storeWrapper intercepts selected repository calls of an underlying store
type storeWrapper struct {
	ports.CredentialRepository
	mu         sync.Mutex
	gets       int
	casErr     error
	upsertErr  error
	honourCtx  bool
	lastCASCtx error
}

func (s *storeWrapper) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.IntegrationCredential, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.CredentialRepository.Get(ctx, userID, platform)
}

func (s *storeWrapper) CompareAndSwap(ctx context.Context, cred *domain.IntegrationCredential, expected time.Time) error {
	s.mu.Lock()
	s.lastCASCtx = ctx.Err()
	s.mu.Unlock()
	if s.honourCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if s.casErr != nil {
		return s.casErr
	}
	return s.CredentialRepository.CompareAndSwap(ctx, cred, expected)
}

func (s *storeWrapper) Upsert(ctx context.Context, cred *domain.IntegrationCredential) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.CredentialRepository.Upsert(ctx, cred)
}

func (s *storeWrapper) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

type fakeProvider struct {
	mu          sync.Mutex
	token       *ports.TokenResult
	exchangeErr error
	info        map[string]any
	infoErr     error
	exchanges   int
}

func (p *fakeProvider) AuthorizeURL(state, shopDomain string) (string, error) {
	return "https://vendor.example.com/authorize?state=" + state + "&shop=" + shopDomain, nil
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, code, shopDomain string) (*ports.TokenResult, error) {
	p.mu.Lock()
	p.exchanges++
	p.mu.Unlock()
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	tok := *p.token
	return &tok, nil
}

func (p *fakeProvider) AccountInfo(ctx context.Context, token *ports.TokenResult, shopDomain string) (map[string]any, error) {
	return p.info, p.infoErr
}

func (p *fakeProvider) Exchanges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchanges
}

type fakeRegistrar struct {
	mu        sync.Mutex
	addresses []string
	err       error
}

func (r *fakeRegistrar) RegisterWebhook(ctx context.Context, shopDomain, accessToken, topic, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addresses = append(r.addresses, address)
	return r.err
}

type fakeShopifyAdmin struct {
	shop   *ports.ShopSummary
	err    error
	orders []ports.OrderSummary
	seen   []ports.ShopifyCredentials
}

func (f *fakeShopifyAdmin) GetShop(ctx context.Context, creds ports.ShopifyCredentials) (*ports.ShopSummary, error) {
	f.seen = append(f.seen, creds)
	return f.shop, f.err
}

func (f *fakeShopifyAdmin) ListOrders(ctx context.Context, creds ports.ShopifyCredentials, limit int) ([]ports.OrderSummary, error) {
	f.seen = append(f.seen, creds)
	return f.orders, f.err
}

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) Verify(ctx context.Context, extra map[string]any) error {
	f.calls++
	return f.err
}

func newTestManager(store ports.CredentialRepository, refreshers map[domain.Platform]ports.TokenRefresher, clock ports.Clock, metrics ports.MetricsRecorder) *CredentialManager {
	return NewCredentialManager(store, refreshers, clock, metrics, ManagerConfig{}, zerolog.Nop())
}
