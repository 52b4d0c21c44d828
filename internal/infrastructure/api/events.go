package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/infrastructure/pubsub"
)

const heartbeatInterval = 25 * time.Second

type streamedEvent struct {
	Topic      string          `json:"topic"`
	Shop       string          `json:"shop"`
	WebhookID  string          `json:"webhookId,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// streamEvents pushes webhook events for the caller's own shop over server-sent events
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := domain.UserIDFromContext(ctx)

	shops := []string{}
	cred, err := h.credentials.LoadCredential(ctx, userID, domain.PlatformShopify)
	switch {
	case err == nil:
		if shop := cred.ExtraString(domain.ExtraShopDomain); shop != "" {
			shops = append(shops, shop)
		}
	case !errors.Is(err, domain.ErrNotFound):
		writeError(w, r, h.logger, err)
		return
	}

	rc := http.NewResponseController(w)
	// the server write timeout would cut the stream
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	sub := h.events.Subscribe(ctx, &pubsub.WebhookEventFilter{Shops: shops})
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(toStreamedEvent(event))
			if err != nil {
				h.logger.Warn().Err(err).Str("topic", event.Topic).Msg("Failed to encode event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func toStreamedEvent(event *domain.WebhookEvent) streamedEvent {
	out := streamedEvent{
		Topic:      event.Topic,
		Shop:       event.Shop,
		WebhookID:  event.WebhookID,
		ReceivedAt: event.ReceivedAt,
	}
	if json.Valid(event.Payload) {
		out.Payload = event.Payload
	}
	return out
}
