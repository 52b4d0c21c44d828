package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/ports"
)

// CredentialPayload is the JSON document stored in the credentials column. Tokens and secret
// extra entries are sealed; shop_domain stays readable so shops can be looked up.
type CredentialPayload struct {
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// SealCredential builds the stored payload for cred
func SealCredential(cred *domain.IntegrationCredential, enc ports.EncryptionService) ([]byte, error) {
	access, err := enc.Encrypt(cred.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal access token: %w", err)
	}
	refresh, err := enc.Encrypt(cred.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal refresh token: %w", err)
	}

	payload := CredentialPayload{
		AccessToken:  access,
		RefreshToken: refresh,
		Extra:        make(map[string]any, len(cred.Extra)),
	}
	if cred.HasExpiry() {
		exp := cred.ExpiresAt.UTC()
		payload.ExpiresAt = &exp
	}
	for k, v := range cred.Extra {
		s, isString := v.(string)
		if !domain.SecretExtraKeys[k] || !isString {
			payload.Extra[k] = v
			continue
		}
		sealed, err := enc.Encrypt(s)
		if err != nil {
			return nil, fmt.Errorf("failed to seal %s: %w", k, err)
		}
		payload.Extra[k] = sealed
	}

	return json.Marshal(payload)
}

// OpenCredential fills the secret fields of cred from a stored payload
func OpenCredential(raw []byte, cred *domain.IntegrationCredential, enc ports.EncryptionService) error {
	var payload CredentialPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to decode credential payload: %w", err)
	}

	access, err := enc.Decrypt(payload.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to open access token: %w", err)
	}
	refresh, err := enc.Decrypt(payload.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to open refresh token: %w", err)
	}

	cred.AccessToken = access
	cred.RefreshToken = refresh
	if payload.ExpiresAt != nil {
		cred.ExpiresAt = payload.ExpiresAt.UTC()
	}
	cred.Extra = make(map[string]any, len(payload.Extra))
	for k, v := range payload.Extra {
		s, isString := v.(string)
		if !domain.SecretExtraKeys[k] || !isString {
			cred.Extra[k] = v
			continue
		}
		plain, err := enc.Decrypt(s)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", k, err)
		}
		cred.Extra[k] = plain
	}
	return nil
}
