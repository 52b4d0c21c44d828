package repository

import (
	"context"
	"sync"
	"time"

	"helpdesk-integration-layer/internal/domain"
)

// MemoryStore keeps credentials, nonces and webhook records in process memory. It backs the
// "memory" store driver for local development and tests; it is the store, not a cache in front of one.
type MemoryStore struct {
	mu         sync.Mutex
	creds      map[memoryKey]*domain.IntegrationCredential
	states     map[string]*domain.OAuthState
	orders     []*domain.ShopifyOrder
	activities []*domain.EmailActivity
}

type memoryKey struct {
	userID   string
	platform domain.Platform
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		creds:  make(map[memoryKey]*domain.IntegrationCredential),
		states: make(map[string]*domain.OAuthState),
	}
}

func (s *MemoryStore) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.IntegrationCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[memoryKey{userID, platform}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cred.Clone(), nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*domain.IntegrationCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.IntegrationCredential
	for _, p := range domain.AllPlatforms {
		if cred, ok := s.creds[memoryKey{userID, p}]; ok {
			out = append(out, cred.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) FindByShopDomain(ctx context.Context, platform domain.Platform, shopDomain string) (*domain.IntegrationCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// most recently updated wins, as in the SQL and Mongo stores
	var found *domain.IntegrationCredential
	for k, cred := range s.creds {
		if k.platform != platform || cred.ExtraString(domain.ExtraShopDomain) != shopDomain {
			continue
		}
		if found == nil || cred.UpdatedAt.After(found.UpdatedAt) ||
			(cred.UpdatedAt.Equal(found.UpdatedAt) && cred.UserID < found.UserID) {
			found = cred
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found.Clone(), nil
}

func (s *MemoryStore) Upsert(ctx context.Context, cred *domain.IntegrationCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[memoryKey{cred.UserID, cred.Platform}] = cred.Clone()
	return nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, cred *domain.IntegrationCredential, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey{cred.UserID, cred.Platform}
	current, ok := s.creds[key]
	if !ok {
		return domain.ErrNotFound
	}
	if !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return domain.ErrConflict
	}
	s.creds[key] = cred.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string, platform domain.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, memoryKey{userID, platform})
	return nil
}

// Count returns the number of stored credentials
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creds)
}

func (s *MemoryStore) Save(ctx context.Context, state *domain.OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.states[state.State] = &cp
	return nil
}

func (s *MemoryStore) Take(ctx context.Context, state string) (*domain.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[state]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(s.states, state)
	return st, nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, st := range s.states {
		if st.IsExpired(before) {
			delete(s.states, k)
			n++
		}
	}
	return n, nil
}

// HasState reports whether a nonce is still stored
func (s *MemoryStore) HasState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.states[state]
	return ok
}

func (s *MemoryStore) SaveOrder(ctx context.Context, order *domain.ShopifyOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *order
	for i, existing := range s.orders {
		if existing.ShopDomain == order.ShopDomain && existing.OrderID == order.OrderID {
			cp.ID, cp.CreatedAt = existing.ID, existing.CreatedAt
			s.orders[i] = &cp
			return nil
		}
	}
	s.orders = append(s.orders, &cp)
	return nil
}

func (s *MemoryStore) SaveEmailActivity(ctx context.Context, activity *domain.EmailActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *activity
	s.activities = append(s.activities, &cp)
	return nil
}

// Orders returns the recorded orders
func (s *MemoryStore) Orders() []*domain.ShopifyOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.ShopifyOrder(nil), s.orders...)
}

// EmailActivities returns the queued email activity
func (s *MemoryStore) EmailActivities() []*domain.EmailActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.EmailActivity(nil), s.activities...)
}
