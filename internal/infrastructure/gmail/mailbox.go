package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var metadataHeaders = []string{"From", "Subject", "Date"}

// Config tunes the Gmail API client
type Config struct {
	Timeout time.Duration
	// Endpoint overrides the API base URL
	Endpoint string
}

// Mailbox reads a Gmail mailbox with a caller supplied access token
type Mailbox struct {
	cb       *gobreaker.CircuitBreaker
	timeout  time.Duration
	endpoint string
	logger   zerolog.Logger
}

func NewMailbox(cfg Config, logger zerolog.Logger) *Mailbox {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	logger = logger.With().Str("component", "gmail").Logger()

	settings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		// client errors belong to one caller's token or message and say nothing about Gmail's health
		IsSuccessful: func(err error) bool {
			var nce *nonCircuitError
			return err == nil || errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &Mailbox{
		cb:       gobreaker.NewCircuitBreaker(settings),
		timeout:  cfg.Timeout,
		endpoint: cfg.Endpoint,
		logger:   logger,
	}
}

func (m *Mailbox) service(ctx context.Context, accessToken string) (*gmailapi.Service, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	httpClient.Timeout = m.timeout

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if m.endpoint != "" {
		opts = append(opts, option.WithEndpoint(m.endpoint))
	}
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return svc, nil
}

// ListMessages lists one page of messages matching query with From, Subject and Date headers
func (m *Mailbox) ListMessages(ctx context.Context, accessToken string, query ports.MessageQuery) (*ports.MessagePage, error) {
	svc, err := m.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var list *gmailapi.ListMessagesResponse
	err = m.execute("list messages", func() error {
		call := svc.Users.Messages.List("me").Q(query.Query).MaxResults(query.Limit)
		if query.PageToken != "" {
			call = call.PageToken(query.PageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return err
		}
		list = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	page := &ports.MessagePage{
		Messages:           make([]ports.MessageSummary, 0, len(list.Messages)),
		NextPageToken:      list.NextPageToken,
		HasMore:            list.NextPageToken != "",
		ResultSizeEstimate: list.ResultSizeEstimate,
	}

	for _, ref := range list.Messages {
		var msg *gmailapi.Message
		err := m.execute("get message", func() error {
			resp, err := svc.Users.Messages.Get("me", ref.Id).
				Format("metadata").
				MetadataHeaders(metadataHeaders...).
				Context(ctx).
				Do()
			if err != nil {
				return err
			}
			msg = resp
			return nil
		})
		if err != nil {
			if errors.Is(err, domain.ErrReauthRequired) || errors.Is(err, domain.ErrVendorTransient) {
				return nil, err
			}
			// message deleted between list and get
			m.logger.Debug().Err(err).Str("messageId", ref.Id).Msg("Skipping message")
			continue
		}
		page.Messages = append(page.Messages, summarize(msg))
	}

	return page, nil
}

// Profile returns the mailbox address owning accessToken
func (m *Mailbox) Profile(ctx context.Context, accessToken string) (string, error) {
	svc, err := m.service(ctx, accessToken)
	if err != nil {
		return "", err
	}
	var email string
	err = m.execute("get profile", func() error {
		profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
		if err != nil {
			return err
		}
		email = profile.EmailAddress
		return nil
	})
	return email, err
}

// AccountInfo adapts Profile to the extra bag stored with a Gmail credential
func (m *Mailbox) AccountInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	email, err := m.Profile(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return map[string]any{domain.ExtraEmailAddress: email}, nil
}

// execute runs fn through the circuit breaker. Client errors are returned without counting as failures.
func (m *Mailbox) execute(op string, fn func() error) error {
	_, err := m.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
				return nil, &nonCircuitError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})
	if err == nil {
		return nil
	}

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		err = nce.err
	}
	return classifyError(op, err)
}

// nonCircuitError wraps errors that should not trip the circuit breaker
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

func classifyError(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: gmail: %s: %w", domain.ErrVendorTransient, op, err)
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: gmail: failed to %s: %w", domain.ErrVendorTransient, op, err)
	}
	switch {
	case apiErr.Code == http.StatusUnauthorized:
		return fmt.Errorf("%w: gmail rejected the access token", domain.ErrReauthRequired)
	case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= 500:
		return fmt.Errorf("%w: gmail: failed to %s: status %d", domain.ErrVendorTransient, op, apiErr.Code)
	}
	return fmt.Errorf("gmail: failed to %s: status %d: %s", op, apiErr.Code, apiErr.Message)
}

func summarize(msg *gmailapi.Message) ports.MessageSummary {
	s := ports.MessageSummary{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Unread:   slices.Contains(msg.LabelIds, "UNREAD"),
	}
	if msg.Payload == nil {
		return s
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "From":
			s.From = h.Value
		case "Subject":
			s.Subject = h.Value
		case "Date":
			s.Date = h.Value
		}
	}
	return s
}
