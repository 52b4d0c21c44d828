package domain

import (
	"maps"
	"time"
)

// Keys of the platform-specific extra bag that the manager and handlers read
const (
	ExtraShopDomain     = "shop_domain"
	ExtraScope          = "scope"
	ExtraShopInfo       = "shop_info"
	ExtraAuthType       = "auth_type"
	ExtraEmailAddress   = "email_address"
	ExtraAPIKey         = "api_key"
	ExtraPassword       = "password"
	ExtraStoreURL       = "store_url"
	ExtraConsumerKey    = "consumer_key"
	ExtraConsumerSecret = "consumer_secret"
	ExtraHost           = "host"
	ExtraPort           = "port"
	ExtraUsername       = "username"
)

const (
	AuthTypeOAuth      = "oauth"
	AuthTypePrivateApp = "private_app"
)

// SecretExtraKeys are extra entries that hold secrets; they are sealed at rest and never serialized to clients
var SecretExtraKeys = map[string]bool{
	ExtraAPIKey:         true,
	ExtraPassword:       true,
	ExtraConsumerKey:    true,
	ExtraConsumerSecret: true,
}

// IntegrationCredential is the stored grant for one (user, platform) pair
type IntegrationCredential struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Platform     Platform       `json:"platform"`
	AccessToken  string         `json:"-"`
	RefreshToken string         `json:"-"`
	ExpiresAt    time.Time      `json:"expires_at,omitempty"` // zero when the platform issues non-expiring credentials
	Extra        map[string]any `json:"-"`
	Status       Status         `json:"status"`
	ConnectedAt  time.Time      `json:"connected_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// HasExpiry reports whether the credential carries an expiry timestamp
func (c *IntegrationCredential) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// IsExpired reports whether the access token must be treated as invalid at now
func (c *IntegrationCredential) IsExpired(now time.Time) bool {
	return c.HasExpiry() && !now.Before(c.ExpiresAt)
}

// ExtraString returns a string-valued extra entry or ""
func (c *IntegrationCredential) ExtraString(key string) string {
	if c.Extra == nil {
		return ""
	}
	s, _ := c.Extra[key].(string)
	return s
}

// PublicExtra returns the extra entries that are safe to show to the account owner
func (c *IntegrationCredential) PublicExtra() map[string]any {
	out := make(map[string]any, len(c.Extra))
	for k, v := range c.Extra {
		if SecretExtraKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone returns a copy whose extra map can be mutated independently
func (c *IntegrationCredential) Clone() *IntegrationCredential {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Extra != nil {
		cp.Extra = maps.Clone(c.Extra)
	}
	return &cp
}
