package shopify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyWebhook(t *testing.T) {
	body := []byte(`{"id":820982911946154508,"email":"jon@example.com","order_number":1001}`)
	secret := "whsec_test"
	valid := SignWebhook(body, secret)

	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		want      bool
	}{
		{name: "correctly signed", body: body, signature: valid, secret: secret, want: true},
		{name: "missing header", body: body, signature: "", secret: secret, want: false},
		{name: "wrong secret", body: body, signature: valid, secret: "other", want: false},
		{name: "tampered body", body: tampered, signature: valid, secret: secret, want: false},
		{name: "secret not configured", body: body, signature: valid, secret: "", want: false},
		{name: "hex instead of base64", body: body, signature: "deadbeef", secret: secret, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyWebhook(tt.body, tt.signature, tt.secret))
		})
	}
}

func TestWebhookVerifierFailsClosedWithoutSecret(t *testing.T) {
	body := []byte(`{}`)
	v := NewWebhookVerifier("")
	assert.False(t, v.Verify(body, SignWebhook(body, "")))
}
