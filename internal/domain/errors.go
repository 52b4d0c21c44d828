package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no integration exists for the requested (user, platform)
	ErrNotFound = errors.New("integration not found")

	// ErrStoreUnavailable means the persistence layer could not be reached
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrReauthRequired means the vendor rejected the stored grant and the user must reconnect
	ErrReauthRequired = errors.New("reauthorization required")

	// ErrRefreshPersistFailed means a vendor refresh succeeded but the new token could not be stored
	ErrRefreshPersistFailed = errors.New("refreshed credential could not be persisted")

	// ErrVendorTransient marks network failures and 5xx vendor responses; retrying is sensible
	ErrVendorTransient = errors.New("vendor temporarily unavailable")

	// ErrStorageFailed means a write to the credential store failed
	ErrStorageFailed = errors.New("credential storage failed")

	// ErrUnauthenticated means the caller has no valid session
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrConfiguration means a required vendor or service setting is missing
	ErrConfiguration = errors.New("integration not configured")

	// ErrConflict means a conditional write lost against a newer record
	ErrConflict = errors.New("credential was modified concurrently")

	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// OAuthFailureReason is the terminal failure reason of an authorization-code flow
type OAuthFailureReason string

const (
	OAuthMissingParameters   OAuthFailureReason = "missing_parameters"
	OAuthInvalidState        OAuthFailureReason = "invalid_state"
	OAuthStateExpired        OAuthFailureReason = "state_expired"
	OAuthShopMismatch        OAuthFailureReason = "shop_mismatch"
	OAuthPlatformMismatch    OAuthFailureReason = "platform_mismatch"
	OAuthTokenExchangeFailed OAuthFailureReason = "token_exchange_failed"
	OAuthStorageFailed       OAuthFailureReason = "storage_failed"
)

// OAuthError is returned by CompleteOAuth when the flow ends in failure
type OAuthError struct {
	Reason OAuthFailureReason
	Err    error
}

func (e *OAuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("oauth failed: %s", e.Reason)
	}
	return fmt.Sprintf("oauth failed: %s: %v", e.Reason, e.Err)
}

func (e *OAuthError) Unwrap() error {
	return e.Err
}

// NewOAuthError builds an OAuthError for reason wrapping err
func NewOAuthError(reason OAuthFailureReason, err error) *OAuthError {
	return &OAuthError{Reason: reason, Err: err}
}

// OAuthFailure extracts the failure reason from err, if any
func OAuthFailure(err error) (OAuthFailureReason, bool) {
	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		return oauthErr.Reason, true
	}
	return "", false
}
