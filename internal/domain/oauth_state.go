package domain

import (
	"fmt"
	"strings"
	"time"
)

// OAuthState binds an authorization nonce to the user and shop that started the flow
type OAuthState struct {
	State      string    `json:"state" bson:"_id"`
	UserID     string    `json:"user_id" bson:"user_id"`
	Platform   Platform  `json:"platform" bson:"platform"`
	ShopDomain string    `json:"shop_domain,omitempty" bson:"shop_domain"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt  time.Time `json:"expires_at" bson:"expires_at"`
}

// IsExpired reports whether the nonce is no longer usable at now; the TTL boundary itself counts as expired
func (s *OAuthState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

const shopifyDomainSuffix = ".myshopify.com"

// NormalizeShopDomain turns user input such as "https://Acme.myshopify.com/" or "acme" into "acme.myshopify.com"
func NormalizeShopDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimSuffix(d, "/")
	name := strings.TrimSuffix(d, shopifyDomainSuffix)

	if name == "" || strings.Contains(name, ".") {
		return "", fmt.Errorf("%w: invalid shop domain %q", ErrInvalidInput, raw)
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return "", fmt.Errorf("%w: invalid shop domain %q", ErrInvalidInput, raw)
		}
	}
	return name + shopifyDomainSuffix, nil
}

// ShortNonce returns a log-safe prefix of a nonce
func ShortNonce(state string) string {
	if len(state) <= 8 {
		return state
	}
	return state[:8]
}
