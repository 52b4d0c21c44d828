package api

import (
	"net/http"

	"helpdesk-integration-layer/docs"
	securitymiddleware "helpdesk-integration-layer/internal/infrastructure/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

const maxRequestBody = 1 << 20

// RouterConfig carries the cross-cutting pieces the router mounts
type RouterConfig struct {
	Authenticator  *securitymiddleware.Authenticator
	Metrics        http.Handler
	Recorder       securitymiddleware.RequestRecorder
	AllowedOrigins []string
}

// NewRouter mounts public routes, vendor callbacks and the authenticated /api tree
func NewRouter(h *Handler, cfg RouterConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(securitymiddleware.AuditLogging(logger, cfg.Recorder))
	r.Use(middleware.Recoverer)
	r.Use(securitymiddleware.SecurityHeaders)
	r.Use(securitymiddleware.MaxBodySize(maxRequestBody))
	r.Use(securitymiddleware.RequestScope)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(docs.SwaggerJSON)
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Get("/auth/{platform}/callback", h.oauthCallback)
	r.Post("/webhooks/shopify/{topic}/{action}", h.shopifyWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.Authenticator.Middleware)
		r.Use(securitymiddleware.CaptureUser)

		r.Get("/integrations", h.listIntegrations)
		r.Post("/integrations/shopify/connect", h.connectShopify)
		r.Post("/integrations/woocommerce/connect", h.connectWooCommerce)
		r.Post("/integrations/imap/connect", h.connectIMAP)
		r.Get("/integrations/{platform}", h.getIntegration)
		r.Delete("/integrations/{platform}", h.deleteIntegration)
		r.Post("/integrations/{platform}/oauth", h.beginOAuth)

		r.Get("/gmail/messages", h.gmailMessages)
		r.Get("/shopify/orders", h.shopifyOrders)
		r.Get("/events", h.streamEvents)
	})

	return r
}
