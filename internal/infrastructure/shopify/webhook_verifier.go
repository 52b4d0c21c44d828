package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// WebhookVerifier checks X-Shopify-Hmac-Sha256 against a shared secret
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier. An empty secret makes every delivery fail verification.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

func (v *WebhookVerifier) Verify(rawBody []byte, signatureHeader string) bool {
	return VerifyWebhook(rawBody, signatureHeader, v.secret)
}

// VerifyWebhook reports whether signatureHeader is the base64 HMAC-SHA256 of rawBody under sharedSecret.
// A missing secret or header always fails.
func VerifyWebhook(rawBody []byte, signatureHeader, sharedSecret string) bool {
	if sharedSecret == "" || signatureHeader == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(sharedSecret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

// SignWebhook computes the header value Shopify would send for rawBody
func SignWebhook(rawBody []byte, sharedSecret string) string {
	mac := hmac.New(sha256.New, []byte(sharedSecret))
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
