package repository

import (
	"fmt"

	"helpdesk-integration-layer/internal/domain"
)

// storeError marks err as an infrastructure failure so callers can tell it apart from NotFound
func storeError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
