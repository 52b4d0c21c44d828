package domain

import (
	"fmt"
	"strings"
)

// Platform identifies a third-party service a user can connect
type Platform string

const (
	PlatformGmail       Platform = "gmail"
	PlatformShopify     Platform = "shopify"
	PlatformWooCommerce Platform = "woocommerce"
	PlatformIMAP        Platform = "imap"
	PlatformOutlook     Platform = "outlook"
)

// AllPlatforms lists every supported platform in display order
var AllPlatforms = []Platform{
	PlatformGmail,
	PlatformShopify,
	PlatformWooCommerce,
	PlatformIMAP,
	PlatformOutlook,
}

// ParsePlatform converts a raw tag into a Platform
func ParsePlatform(raw string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, raw)
}

func (p Platform) String() string {
	return string(p)
}

// Status is the connection state of an integration
type Status string

const (
	StatusConnected    Status = "connected"
	StatusNotConnected Status = "not_connected"
)
