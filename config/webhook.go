package config

import (
	"strings"
	"time"
)

// WebhookConfig contains webhook ingress configuration.
type WebhookConfig struct {
	// Secret is the shared signing secret used to verify deliveries.
	// The whsec_ prefix used by some providers is accepted and stripped.
	Secret string `env:"WEBHOOK_SECRET"`

	// Tolerance bounds the accepted clock skew on signed timestamps.
	Tolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
}

// Sanitize applies guardrails to webhook configuration values.
func (w *WebhookConfig) Sanitize() {
	w.Secret = strings.TrimSpace(w.Secret)
	if w.Tolerance <= 0 {
		w.Tolerance = 5 * time.Minute
	}
}
