// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/checkpoint/internal/logging"
	"github.com/tomtom215/checkpoint/internal/metrics"
	"github.com/tomtom215/checkpoint/internal/monitor"
	"github.com/tomtom215/checkpoint/internal/resilience"
)

// Topics.
const (
	TopicSecurityEvents = "security.events"
	TopicSecurityAlerts = "security.alerts"
)

// ErrClosed is returned when publishing on a closed Publisher.
var ErrClosed = errors.New("eventbus: publisher is closed")

// ErrNoSubscriber is returned by Subscribe when the backend cannot be
// consumed in-process.
var ErrNoSubscriber = errors.New("eventbus: backend does not support in-process subscriptions")

// Publisher publishes monitor records to the bus. It implements
// monitor.EventPublisher.
type Publisher struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	breaker    *resilience.Breaker
	backend    string

	mu     sync.RWMutex
	closed bool
}

// New creates a Publisher for cfg.Backend.
func New(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := watermill.NewSlogLogger(slog.New(logging.NewSlogHandlerWithLogger(logging.WithComponent("eventbus"))))

	p := &Publisher{
		backend: cfg.Backend,
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Name:             "eventbus-" + cfg.Backend,
			FailureThreshold: cfg.FailureThreshold,
			Timeout:          cfg.BreakerTimeout,
		}),
	}

	switch cfg.Backend {
	case BackendNATS:
		pub, err := newNATSPublisher(cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		p.publisher = pub
	default:
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
		}, logger)
		p.publisher = ch
		p.subscriber = ch
	}

	logging.Info().Str("backend", cfg.Backend).Msg("Event bus publisher ready")
	return p, nil
}

// newPublisher wraps an existing Watermill publisher. Used by tests.
func newPublisher(pub message.Publisher, sub message.Subscriber, breaker *resilience.Breaker) *Publisher {
	return &Publisher{publisher: pub, subscriber: sub, breaker: breaker, backend: "custom"}
}

// Backend returns the configured backend name.
func (p *Publisher) Backend() string {
	return p.backend
}

// PublishEvent publishes a security event to TopicSecurityEvents.
func (p *Publisher) PublishEvent(ctx context.Context, event *monitor.SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize security event: %w", err)
	}
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("severity", string(event.Severity))
	if event.UserID != "" {
		msg.Metadata.Set("user_id", event.UserID)
	}
	return p.Publish(ctx, TopicSecurityEvents, msg)
}

// PublishAlert publishes a security alert to TopicSecurityAlerts.
func (p *Publisher) PublishAlert(ctx context.Context, alert *monitor.SecurityAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("serialize security alert: %w", err)
	}
	msg := message.NewMessage(alert.ID, payload)
	msg.Metadata.Set("severity", string(alert.Severity))
	msg.Metadata.Set("condition", alert.Condition)
	return p.Publish(ctx, TopicSecurityAlerts, msg)
}

// Publish sends msg to topic through the circuit breaker.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	msg.SetContext(ctx)
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		msg.Metadata.Set("correlation_id", cid)
	}

	err := p.breaker.Execute(func() error {
		return p.publisher.Publish(topic, msg)
	})
	metrics.RecordEventBusPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes a topic in-process. Only the memory backend supports
// it; the returned channel closes when ctx is cancelled or the Publisher is
// closed.
func (p *Publisher) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if p.subscriber == nil {
		return nil, ErrNoSubscriber
	}
	return p.subscriber.Subscribe(ctx, topic)
}

// Close shuts the bus down. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// DecodeEvent decodes a message published by PublishEvent.
func DecodeEvent(msg *message.Message) (*monitor.SecurityEvent, error) {
	var event monitor.SecurityEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("decode security event %s: %w", msg.UUID, err)
	}
	return &event, nil
}

// DecodeAlert decodes a message published by PublishAlert.
func DecodeAlert(msg *message.Message) (*monitor.SecurityAlert, error) {
	var alert monitor.SecurityAlert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		return nil, fmt.Errorf("decode security alert %s: %w", msg.UUID, err)
	}
	return &alert, nil
}
