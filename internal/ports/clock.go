package ports

import "time"

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// NonceGenerator produces unguessable OAuth state values
type NonceGenerator interface {
	NewNonce() (string, error)
}

// MetricsRecorder counts integration lifecycle outcomes
type MetricsRecorder interface {
	RefreshOutcome(platform string, outcome string)
	OAuthOutcome(platform string, outcome string)
	WebhookVerification(outcome string)
}
