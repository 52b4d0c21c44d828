package application

import (
	"context"
	"errors"
	"fmt"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/rs/zerolog"
)

// ErrWebhookRejected is returned for deliveries that fail signature verification
var ErrWebhookRejected = errors.New("webhook signature rejected")

// WebhookHandler processes verified events for the topics it accepts
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes verified events to every handler that accepts the topic
type WebhookDispatcher struct {
	handlers []WebhookHandler
	logger   zerolog.Logger
}

func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{logger: logger}
}

// RegisterHandler adds a handler
func (d *WebhookDispatcher) RegisterHandler(h WebhookHandler) {
	d.handlers = append(d.handlers, h)
}

// Dispatch runs all matching handlers and joins their errors
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	var errs []error
	handled := 0
	for _, h := range d.handlers {
		if !h.CanHandle(event.Topic) {
			continue
		}
		handled++
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", h, err))
		}
	}
	if handled == 0 {
		d.logger.Debug().Str("topic", event.Topic).Str("shop", event.Shop).Msg("No handler for webhook topic")
	}
	return errors.Join(errs...)
}

// WebhookService authenticates inbound deliveries before anything else sees them
type WebhookService struct {
	verifier   ports.WebhookVerifier
	dispatcher *WebhookDispatcher
	publisher  ports.EventPublisher
	clock      ports.Clock
	metrics    ports.MetricsRecorder
	logger     zerolog.Logger
}

// NewWebhookService creates the intake service. publisher may be nil.
func NewWebhookService(
	verifier ports.WebhookVerifier,
	dispatcher *WebhookDispatcher,
	publisher ports.EventPublisher,
	clock ports.Clock,
	metrics ports.MetricsRecorder,
	logger zerolog.Logger,
) *WebhookService {
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &WebhookService{
		verifier:   verifier,
		dispatcher: dispatcher,
		publisher:  publisher,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// Delivery is a raw inbound webhook request
type Delivery struct {
	Topic     string
	Shop      string
	WebhookID string
	Signature string
	Body      []byte
}

// Receive verifies the delivery and, only when authentic, publishes and dispatches it
func (s *WebhookService) Receive(ctx context.Context, d Delivery) error {
	if s.verifier == nil || !s.verifier.Verify(d.Body, d.Signature) {
		s.metrics.WebhookVerification("rejected")
		s.logger.Warn().
			Str("topic", d.Topic).
			Str("shop", d.Shop).
			Bool("signaturePresent", d.Signature != "").
			Msg("Webhook signature verification failed")
		return ErrWebhookRejected
	}
	s.metrics.WebhookVerification("accepted")

	event := &domain.WebhookEvent{
		Topic:      d.Topic,
		Shop:       d.Shop,
		WebhookID:  d.WebhookID,
		Payload:    d.Body,
		ReceivedAt: s.clock.Now().UTC(),
	}

	if s.publisher != nil {
		s.publisher.Publish(event)
	}

	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		s.logger.Error().
			Err(err).
			Str("topic", d.Topic).
			Str("shop", d.Shop).
			Msg("Failed to dispatch webhook event")
		return err
	}
	return nil
}
