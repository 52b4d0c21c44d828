package application

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RandomNonceGenerator returns 16 random bytes, hex encoded
type RandomNonceGenerator struct{}

func (RandomNonceGenerator) NewNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type nopMetrics struct{}

func (nopMetrics) RefreshOutcome(string, string) {}
func (nopMetrics) OAuthOutcome(string, string)   {}
func (nopMetrics) WebhookVerification(string)    {}
