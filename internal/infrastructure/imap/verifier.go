package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"helpdesk-integration-layer/internal/domain"

	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"
)

const tlsPort = 993

// Verifier checks IMAP logins by authenticating once and logging out
type Verifier struct {
	timeout   time.Duration
	tlsConfig *tls.Config
	logger    zerolog.Logger
}

func NewVerifier(timeout time.Duration, logger zerolog.Logger) *Verifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Verifier{
		timeout: timeout,
		logger:  logger.With().Str("component", "imap").Logger(),
	}
}

// Verify logs in with the host, port, username and password entries of extra
func (v *Verifier) Verify(ctx context.Context, extra map[string]any) error {
	host, _ := extra[domain.ExtraHost].(string)
	username, _ := extra[domain.ExtraUsername].(string)
	password, _ := extra[domain.ExtraPassword].(string)
	port, err := portOf(extra[domain.ExtraPort])
	if err != nil {
		return err
	}
	if host == "" || username == "" || password == "" {
		return fmt.Errorf("%w: imap host, username and password are required", domain.ErrInvalidInput)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: v.timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	tlsCfg := v.tlsConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}

	var c *client.Client
	if port == tlsPort {
		c, err = client.DialWithDialerTLS(dialer, addr, tlsCfg)
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		v.logger.Warn().Err(err).Str("host", host).Int("port", port).Msg("IMAP dial failed")
		return fmt.Errorf("%w: failed to reach imap server %s", domain.ErrVendorTransient, addr)
	}
	c.Timeout = v.timeout
	defer func() {
		if err := c.Logout(); err != nil {
			v.logger.Debug().Err(err).Str("host", host).Msg("IMAP logout failed")
		}
	}()

	if port != tlsPort {
		if ok, _ := c.SupportStartTLS(); ok {
			if err := c.StartTLS(tlsCfg); err != nil {
				return fmt.Errorf("%w: imap starttls failed", domain.ErrVendorTransient)
			}
		}
	}

	if err := c.Login(username, password); err != nil {
		v.logger.Info().Str("host", host).Str("username", username).Msg("IMAP login rejected")
		return fmt.Errorf("%w: imap login rejected", domain.ErrInvalidInput)
	}

	v.logger.Debug().Str("host", host).Str("username", username).Msg("IMAP login verified")
	return nil
}

func portOf(v any) (int, error) {
	var port int
	switch t := v.(type) {
	case int:
		port = t
	case int64:
		port = int(t)
	case float64:
		port = int(t)
	case string:
		port, _ = strconv.Atoi(t)
	}
	if port <= 0 || port > 65535 {
		return 0, errors.Join(domain.ErrInvalidInput, fmt.Errorf("invalid imap port %v", v))
	}
	return port, nil
}
