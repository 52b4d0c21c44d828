package middleware

import (
	"net/http"

	"helpdesk-integration-layer/internal/application"
)

// RequestScope gives every request its own credential memo
func RequestScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(application.WithRequestScope(r.Context())))
	})
}
