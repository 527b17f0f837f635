package config

import (
	"strings"
	"time"
)

// ProviderConfig contains LLM provider API client configuration.
type ProviderConfig struct {
	// BaseURL is the provider API root (e.g. "https://api.provider.example/v1").
	BaseURL string `env:"PROVIDER_BASE_URL"`

	// APIKey authenticates retrieval and cancellation calls.
	APIKey string `env:"PROVIDER_API_KEY"`

	// Timeout bounds individual provider API calls.
	Timeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"15s"`

	// OutputExpr overrides the JMESPath expression used to extract assistant
	// text from retrieved artifacts. Empty selects the built-in default.
	OutputExpr string `env:"PROVIDER_OUTPUT_EXPR"`
}

// Sanitize applies guardrails to provider configuration values.
func (p *ProviderConfig) Sanitize() {
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	p.APIKey = strings.TrimSpace(p.APIKey)
	if p.Timeout <= 0 {
		p.Timeout = 15 * time.Second
	}
}
