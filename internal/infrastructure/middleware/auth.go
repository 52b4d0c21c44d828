package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"helpdesk-integration-layer/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Authenticator verifies HS256 session JWTs issued by the auth provider and puts the subject in the request context
type Authenticator struct {
	secret []byte
	leeway time.Duration
	logger zerolog.Logger
}

func NewAuthenticator(secret string, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		leeway: 30 * time.Second,
		logger: logger,
	}
}

// UserID validates a raw token and returns its subject
func (a *Authenticator) UserID(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
	)
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", domain.ErrUnauthenticated
	}
	return sub, nil
}

// Middleware rejects requests without a valid bearer token
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			unauthorized(w)
			return
		}
		userID, err := a.UserID(raw)
		if err != nil {
			a.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected session token")
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(domain.WithUserID(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	// EventSource cannot set headers
	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "not_authenticated",
		"message": "Sign in to continue",
	})
}
