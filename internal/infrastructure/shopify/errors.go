package shopify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"helpdesk-integration-layer/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// classifyError separates rejected credentials from outages. Shopify tokens do not expire, so a 401
// or 403 means the token or private-app password was revoked. Rejections reach API clients, so the
// vendor's error text is logged here and left out of the returned error.
func (c *Client) classifyError(op string, err error) error {
	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.Status == http.StatusUnauthorized,
			respErr.Status == http.StatusForbidden,
			respErr.Status == http.StatusPaymentRequired,
			respErr.Status == http.StatusNotFound:
			return c.rejected(op, respErr.Status, err)
		case respErr.Status == http.StatusTooManyRequests, respErr.Status >= 500:
			return fmt.Errorf("%w: failed to %s: %w", domain.ErrVendorTransient, op, err)
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	var rateErr goshopify.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: failed to %s: %w", domain.ErrVendorTransient, op, err)
	}

	// go-shopify wraps some HTTP failures without a typed error
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key or access token") {
		return c.rejected(op, http.StatusUnauthorized, err)
	}
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrVendorTransient, op, err)
}

func (c *Client) rejected(op string, status int, err error) error {
	c.logger.Warn().
		Err(err).
		Str("operation", op).
		Int("status", status).
		Msg("Shopify rejected the credentials")
	return fmt.Errorf("%w: credentials rejected by shopify: failed to %s: status %d", domain.ErrInvalidInput, op, status)
}
