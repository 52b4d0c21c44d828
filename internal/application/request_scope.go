package application

import (
	"context"
	"sync"

	"helpdesk-integration-layer/internal/domain"
)

type requestScopeKey struct{}

type scopeKey struct {
	userID   string
	platform domain.Platform
}

// requestScope memoises credentials for the lifetime of a single request
type requestScope struct {
	mu    sync.Mutex
	creds map[scopeKey]*domain.IntegrationCredential
}

// WithRequestScope attaches a fresh credential memo to ctx. It must be called once per inbound request.
func WithRequestScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestScopeKey{}, &requestScope{
		creds: make(map[scopeKey]*domain.IntegrationCredential),
	})
}

func scopeFrom(ctx context.Context) *requestScope {
	s, _ := ctx.Value(requestScopeKey{}).(*requestScope)
	return s
}

func (s *requestScope) get(userID string, platform domain.Platform) *domain.IntegrationCredential {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds[scopeKey{userID, platform}].Clone()
}

func (s *requestScope) put(cred *domain.IntegrationCredential) {
	if s == nil || cred == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[scopeKey{cred.UserID, cred.Platform}] = cred.Clone()
}

func (s *requestScope) evict(userID string, platform domain.Platform) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, scopeKey{userID, platform})
}
