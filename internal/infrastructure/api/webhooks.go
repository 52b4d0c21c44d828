package api

import (
	"errors"
	"io"
	"net/http"

	"helpdesk-integration-layer/internal/application"

	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 20

func (h *Handler) shopifyWebhook(w http.ResponseWriter, r *http.Request) {
	topic := r.Header.Get("X-Shopify-Topic")
	if topic == "" {
		topic = chi.URLParam(r, "topic") + "/" + chi.URLParam(r, "action")
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{"invalid_request", "Failed to read request body"})
		return
	}

	err = h.webhooks.Receive(r.Context(), application.Delivery{
		Topic:     topic,
		Shop:      r.Header.Get("X-Shopify-Shop-Domain"),
		WebhookID: r.Header.Get("X-Shopify-Webhook-Id"),
		Signature: r.Header.Get("X-Shopify-Hmac-Sha256"),
		Body:      body,
	})
	switch {
	case errors.Is(err, application.ErrWebhookRejected):
		writeJSON(w, http.StatusUnauthorized, apiError{"invalid_signature", "Webhook signature verification failed"})
	case err != nil:
		// non-2xx makes Shopify retry
		writeJSON(w, http.StatusInternalServerError, apiError{"internal_error", "Failed to process webhook event"})
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
