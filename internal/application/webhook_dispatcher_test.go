package application

import (
	"context"
	"errors"
	"testing"

	"helpdesk-integration-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signatureVerifier struct{ valid string }

func (v signatureVerifier) Verify(body []byte, signature string) bool {
	return signature != "" && signature == v.valid
}

type capturePublisher struct{ events []*domain.WebhookEvent }

func (p *capturePublisher) Publish(event *domain.WebhookEvent) { p.events = append(p.events, event) }

type topicHandler struct {
	topic  string
	err    error
	events []*domain.WebhookEvent
}

func (h *topicHandler) CanHandle(topic string) bool { return topic == h.topic }

func (h *topicHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func TestWebhookServiceReceive(t *testing.T) {
	tests := []struct {
		name        string
		signature   string
		handlerErr  error
		wantErr     error
		wantAnyErr  bool
		wantHandled int
		wantMetric  string
	}{
		{name: "unsigned", wantErr: ErrWebhookRejected, wantMetric: "rejected"},
		{name: "forged", signature: "forged", wantErr: ErrWebhookRejected, wantMetric: "rejected"},
		{name: "authentic", signature: "good", wantHandled: 1, wantMetric: "accepted"},
		{name: "handler fails", signature: "good", handlerErr: errors.New("db down"), wantAnyErr: true, wantHandled: 1, wantMetric: "accepted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &topicHandler{topic: "orders/create", err: tt.handlerErr}
			other := &topicHandler{topic: "customers/create"}
			dispatcher := NewWebhookDispatcher(zerolog.Nop())
			dispatcher.RegisterHandler(handler)
			dispatcher.RegisterHandler(other)

			publisher := &capturePublisher{}
			metrics := &recordingMetrics{}
			svc := NewWebhookService(signatureVerifier{valid: "good"}, dispatcher, publisher, newStaticClock(), metrics, zerolog.Nop())

			err := svc.Receive(context.Background(), Delivery{
				Topic:     "orders/create",
				Shop:      "acme.myshopify.com",
				WebhookID: "wh-1",
				Signature: tt.signature,
				Body:      []byte(`{"id":1}`),
			})

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAnyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
			}
			assert.Len(t, handler.events, tt.wantHandled)
			assert.Empty(t, other.events)
			assert.Len(t, publisher.events, tt.wantHandled)
			assert.Equal(t, []string{tt.wantMetric}, metrics.webhooks)

			if tt.wantHandled > 0 {
				event := handler.events[0]
				assert.Equal(t, "acme.myshopify.com", event.Shop)
				assert.Equal(t, testNow, event.ReceivedAt)
				assert.JSONEq(t, `{"id":1}`, string(event.Payload))
			}
		})
	}
}

func TestWebhookServiceWithoutVerifierRejects(t *testing.T) {
	handler := &topicHandler{topic: "orders/create"}
	dispatcher := NewWebhookDispatcher(zerolog.Nop())
	dispatcher.RegisterHandler(handler)
	svc := NewWebhookService(nil, dispatcher, nil, nil, nil, zerolog.Nop())

	err := svc.Receive(context.Background(), Delivery{Topic: "orders/create", Signature: "anything"})
	assert.ErrorIs(t, err, ErrWebhookRejected)
	assert.Empty(t, handler.events)
}

func TestDispatchRunsEveryMatchingHandler(t *testing.T) {
	first := &topicHandler{topic: "orders/create", err: errors.New("first")}
	second := &topicHandler{topic: "orders/create"}
	dispatcher := NewWebhookDispatcher(zerolog.Nop())
	dispatcher.RegisterHandler(first)
	dispatcher.RegisterHandler(second)

	err := dispatcher.Dispatch(context.Background(), &domain.WebhookEvent{Topic: "orders/create"})
	assert.ErrorContains(t, err, "first")
	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)

	assert.NoError(t, dispatcher.Dispatch(context.Background(), &domain.WebhookEvent{Topic: "shop/update"}))
}
