package application

import (
	"context"
	"errors"
	"fmt"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"

	"github.com/rs/zerolog"
)

const (
	DefaultMessageLimit = 20
	MaxMessageLimit     = 100
)

// mailboxQueries maps inbox views to Gmail search expressions
var mailboxQueries = map[string]string{
	"inbox":     "in:inbox",
	"unread":    "in:inbox category:primary is:unread",
	"important": "is:important",
	"sent":      "in:sent",
}

// MailboxQuery selects an inbox view page
type MailboxQuery struct {
	Type      string
	Limit     int
	PageToken string
}

// MailboxService lists the connected Gmail mailbox
type MailboxService struct {
	manager *CredentialManager
	mailbox ports.Mailbox
	logger  zerolog.Logger
}

func NewMailboxService(manager *CredentialManager, mailbox ports.Mailbox, logger zerolog.Logger) *MailboxService {
	return &MailboxService{
		manager: manager,
		mailbox: mailbox,
		logger:  logger,
	}
}

// ListMessages returns one page of the requested view using a fresh Gmail token
func (s *MailboxService) ListMessages(ctx context.Context, userID string, q MailboxQuery) (*ports.MessagePage, error) {
	if q.Type == "" {
		q.Type = "inbox"
	}
	expr, ok := mailboxQueries[q.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown mailbox view %q", domain.ErrInvalidInput, q.Type)
	}
	if q.Limit <= 0 {
		q.Limit = DefaultMessageLimit
	}
	if q.Limit > MaxMessageLimit {
		q.Limit = MaxMessageLimit
	}
	if s.mailbox == nil {
		return nil, fmt.Errorf("%w: gmail", domain.ErrConfiguration)
	}

	cred, err := s.manager.GetFreshCredential(ctx, userID, domain.PlatformGmail)
	if err != nil {
		if cred == nil || !errors.Is(err, domain.ErrRefreshPersistFailed) {
			return nil, err
		}
		s.logger.Warn().Err(err).Str("userId", userID).Msg("Using refreshed token that was not persisted")
	}

	page, err := s.mailbox.ListMessages(ctx, cred.AccessToken, ports.MessageQuery{
		Query:     expr,
		Limit:     int64(q.Limit),
		PageToken: q.PageToken,
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
