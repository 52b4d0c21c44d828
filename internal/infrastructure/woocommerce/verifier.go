package woocommerce

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"helpdesk-integration-layer/internal/domain"

	"github.com/rs/zerolog"
)

const systemStatusPath = "/wp-json/wc/v3/system_status"

// Verifier checks WooCommerce REST keys against the store's system status endpoint
type Verifier struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewVerifier(timeout time.Duration, logger zerolog.Logger) *Verifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Verifier{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "woocommerce").Logger(),
	}
}

func (v *Verifier) Verify(ctx context.Context, extra map[string]any) error {
	storeURL, _ := extra[domain.ExtraStoreURL].(string)
	key, _ := extra[domain.ExtraConsumerKey].(string)
	secret, _ := extra[domain.ExtraConsumerSecret].(string)
	if storeURL == "" || key == "" || secret == "" {
		return fmt.Errorf("%w: store url and consumer keys are required", domain.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(storeURL, "/")+systemStatusPath, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid store url", domain.ErrInvalidInput)
	}
	req.SetBasicAuth(key, secret)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Warn().Err(err).Str("store", storeURL).Msg("WooCommerce store unreachable")
		return fmt.Errorf("%w: woocommerce store unreachable", domain.ErrVendorTransient)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: woocommerce rejected the consumer keys", domain.ErrInvalidInput)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: woocommerce REST API not found at %s", domain.ErrInvalidInput, storeURL)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: woocommerce returned status %d", domain.ErrVendorTransient, resp.StatusCode)
	}
	return fmt.Errorf("%w: woocommerce returned status %d", domain.ErrInvalidInput, resp.StatusCode)
}
