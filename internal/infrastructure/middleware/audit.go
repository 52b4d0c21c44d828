package middleware

import (
	"net/http"
	"strconv"
	"time"

	"helpdesk-integration-layer/internal/domain"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestRecorder counts served requests by route pattern
type RequestRecorder interface {
	HTTPRequest(route, status string)
}

// AuditLogging logs one line per request. Query strings are left out because OAuth callbacks carry codes in them.
func AuditLogging(logger zerolog.Logger, recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// the user id is only known after the authenticator ran further down the chain
			holder := &userHolder{}
			r = r.WithContext(withUserHolder(r.Context(), holder))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if recorder != nil {
				recorder.HTTPRequest(route, strconv.Itoa(status/100)+"xx")
			}

			event := logger.Info()
			if status >= 500 {
				event = logger.Error()
			}
			event.
				Str("requestId", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Str("userId", holder.userID).
				Msg("Request handled")
		})
	}
}

// CaptureUser records the authenticated user for the audit line; mount it after the authenticator
func CaptureUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if holder := userHolderFrom(r.Context()); holder != nil {
			holder.userID = domain.UserIDFromContext(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}
