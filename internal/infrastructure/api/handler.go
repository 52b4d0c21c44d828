package api

import (
	"net/http"
	"net/url"

	"helpdesk-integration-layer/internal/application"
	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/infrastructure/pubsub"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CallbackVerifier checks a vendor's signature on the OAuth redirect query
type CallbackVerifier interface {
	VerifyCallback(u *url.URL) bool
}

// Handler serves the REST surface
type Handler struct {
	credentials *application.CredentialManager
	oauth       *application.OAuthService
	connect     *application.ConnectService
	mailbox     *application.MailboxService
	store       *application.StoreService
	webhooks    *application.WebhookService
	events      *pubsub.WebhookPubSub
	callbacks   map[domain.Platform]CallbackVerifier
	frontendURL string
	logger      zerolog.Logger
}

// Services groups the application services the handler delegates to
type Services struct {
	Credentials *application.CredentialManager
	OAuth       *application.OAuthService
	Connect     *application.ConnectService
	Mailbox     *application.MailboxService
	Store       *application.StoreService
	Webhooks    *application.WebhookService
	Events      *pubsub.WebhookPubSub
	// Callbacks verify vendor signed callback queries, keyed by platform
	Callbacks map[domain.Platform]CallbackVerifier
}

func NewHandler(svc Services, frontendURL string, logger zerolog.Logger) *Handler {
	return &Handler{
		credentials: svc.Credentials,
		oauth:       svc.OAuth,
		connect:     svc.Connect,
		mailbox:     svc.Mailbox,
		store:       svc.Store,
		webhooks:    svc.Webhooks,
		events:      svc.Events,
		callbacks:   svc.Callbacks,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

func platformParam(r *http.Request) (domain.Platform, error) {
	return domain.ParsePlatform(chi.URLParam(r, "platform"))
}
