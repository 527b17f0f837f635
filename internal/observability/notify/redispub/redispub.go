// Package redispub publishes job lifecycle events to a Redis pub/sub channel
// so downstream consumers (ticket updaters, websockets) can react without
// polling the job store.
package redispub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/assistly/llm-jobs/internal/observability/notify"
)

// DefaultChannel is the pub/sub channel lifecycle events are published to
// when none is configured.
const DefaultChannel = "llmjobs.lifecycle"

// Config describes the Redis publisher.
type Config struct {
	Client  redis.UniversalClient
	Channel string
}

// Publisher delivers lifecycle events as JSON messages on a Redis channel.
type Publisher struct {
	client  redis.UniversalClient
	channel string
}

var _ notify.Sink = (*Publisher)(nil)

// NewPublisher builds a Redis lifecycle publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: cfg.Client, channel: channel}, nil
}

// Channel returns the channel events are published to.
func (p *Publisher) Channel() string {
	return p.channel
}

// SendJobLifecycle publishes the event. Publishing to a channel with no
// subscribers succeeds; delivery is best effort by design of pub/sub.
func (p *Publisher) SendJobLifecycle(ctx context.Context, event notify.JobLifecycleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode lifecycle event %s: %w", event.EventID, err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish lifecycle event %s: %w", event.EventID, err)
	}
	return nil
}
