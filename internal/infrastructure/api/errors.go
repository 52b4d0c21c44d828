package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"helpdesk-integration-layer/internal/domain"

	"github.com/rs/zerolog"
)

const retryAfterSeconds = "30"

// apiError is the body of every non-2xx JSON response
type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// classify maps the domain taxonomy onto a status and a stable error code
func classify(err error) (int, apiError) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, apiError{"not_authenticated", "Sign in to continue"}
	case errors.Is(err, domain.ErrUnsupportedPlatform):
		return http.StatusBadRequest, apiError{"invalid_request", "Unsupported platform"}
	case errors.Is(err, domain.ErrReauthRequired):
		return http.StatusConflict, apiError{"reauth_required", "The connection has expired. Reconnect the integration"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, apiError{"not_connected", "Integration is not connected"}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, apiError{"invalid_request", err.Error()}
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable, apiError{"not_configured", "This integration is not configured on the server"}
	case errors.Is(err, domain.ErrVendorTransient):
		return http.StatusBadGateway, apiError{"vendor_unavailable", "The provider is temporarily unavailable. Try again shortly"}
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrStorageFailed):
		return http.StatusServiceUnavailable, apiError{"store_unavailable", "Storage is temporarily unavailable. Try again shortly"}
	}
	return http.StatusInternalServerError, apiError{"internal_error", "Something went wrong"}
}

// writeError logs err server-side and sends only the classified message to the client
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	status, body := classify(err)
	if status >= 500 {
		logger.Error().
			Err(err).
			Str("path", r.URL.Path).
			Str("userId", domain.UserIDFromContext(r.Context())).
			Msg("Request failed")
	}
	if status == http.StatusBadGateway || status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidInput, errors.New("malformed JSON body"))
	}
	return nil
}
