package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[ServiceMode]bool
		wantErr bool
	}{
		{
			name:  "single service",
			input: "http",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:  "both services",
			input: "http,sweeper",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeSweeper: true},
		},
		{
			name:  "whitespace tolerated",
			input: " http , sweeper ",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeSweeper: true},
		},
		{
			name:    "invalid service name",
			input:   "http,scheduler",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "only commas",
			input:   ",,",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAppConfigSanitize(t *testing.T) {
	cfg := AppConfig{
		Services: "http,sweeper",
		Sweeper:  SweeperConfig{Interval: time.Second},
		Webhook:  WebhookConfig{Secret: "  whsec_abc  ", Tolerance: -1},
		Provider: ProviderConfig{BaseURL: "https://api.example.com/v1/ "},
	}
	cfg.Sanitize()

	assert.Equal(t, time.Minute, cfg.Sweeper.Interval, "sub-minute sweep intervals are clamped")
	assert.Equal(t, "whsec_abc", cfg.Webhook.Secret)
	assert.Equal(t, 5*time.Minute, cfg.Webhook.Tolerance)
	assert.Equal(t, "https://api.example.com/v1", cfg.Provider.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, StoreDriverRedis, cfg.Store.Driver)
	assert.Equal(t, 14, cfg.Store.RetentionDays)

	assert.True(t, cfg.IsHTTPServerEnabled())
	assert.True(t, cfg.IsSweeperEnabled())
}

func TestNotificationsSanitizeDisablesSinksWhenOff(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled: false,
		Slack:   SlackNotificationConfig{Enabled: true, WebhookURL: "https://hooks.slack.com/x"},
		Redis:   RedisNotificationConfig{Enabled: true},
	}
	cfg.Sanitize()

	assert.False(t, cfg.Slack.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "llmjobs.lifecycle", cfg.Redis.Channel)
}

func TestSlackSanitizeRequiresWebhookURL(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled: true,
		Slack:   SlackNotificationConfig{Enabled: true},
	}
	cfg.Sanitize()
	assert.False(t, cfg.Slack.Enabled)
	assert.Equal(t, "llmjobs", cfg.Slack.Username)
}

func TestDBConfigDSN(t *testing.T) {
	d := DBConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "jobs", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=jobs sslmode=require", d.DSN())
}
