// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package eventbus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/checkpoint/internal/logging"
	"github.com/tomtom215/checkpoint/internal/monitor"
)

// Handler receives decoded records from the bus.
type Handler interface {
	HandleEvent(ctx context.Context, event *monitor.SecurityEvent) error
	HandleAlert(ctx context.Context, alert *monitor.SecurityAlert) error
}

// Consumer drains both security topics in-process and hands each record to
// a Handler. It implements services.Runner. Messages are always acked: a
// payload that fails to decode or handle is logged and dropped, since the
// memory backend would otherwise redeliver it forever.
type Consumer struct {
	bus     *Publisher
	handler Handler
	logger  zerolog.Logger
}

// NewConsumer creates a Consumer. A nil handler logs every record.
func NewConsumer(bus *Publisher, handler Handler) *Consumer {
	logger := logging.WithComponent("eventbus-consumer")
	if handler == nil {
		handler = &LogHandler{logger: logger}
	}
	return &Consumer{bus: bus, handler: handler, logger: logger}
}

// RunWithContext consumes until ctx is cancelled or the bus is closed.
func (c *Consumer) RunWithContext(ctx context.Context) error {
	events, err := c.bus.Subscribe(ctx, TopicSecurityEvents)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicSecurityEvents, err)
	}
	alerts, err := c.bus.Subscribe(ctx, TopicSecurityAlerts)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicSecurityAlerts, err)
	}

	c.logger.Info().Msg("Event bus consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Event bus consumer stopped")
			return ctx.Err()
		case msg, ok := <-events:
			if !ok {
				return c.closed(ctx)
			}
			c.consumeEvent(msg)
		case msg, ok := <-alerts:
			if !ok {
				return c.closed(ctx)
			}
			c.consumeAlert(msg)
		}
	}
}

func (c *Consumer) closed(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrClosed
}

func (c *Consumer) consumeEvent(msg *message.Message) {
	defer msg.Ack()
	ctx := messageContext(msg)

	event, err := DecodeEvent(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("topic", TopicSecurityEvents).Msg("Dropping undecodable message")
		return
	}
	if err := c.handler.HandleEvent(ctx, event); err != nil {
		c.logger.Error().Err(err).Str("event_id", event.ID).Msg("Security event handler failed")
	}
}

func (c *Consumer) consumeAlert(msg *message.Message) {
	defer msg.Ack()
	ctx := messageContext(msg)

	alert, err := DecodeAlert(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("topic", TopicSecurityAlerts).Msg("Dropping undecodable message")
		return
	}
	if err := c.handler.HandleAlert(ctx, alert); err != nil {
		c.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Security alert handler failed")
	}
}

// messageContext continues the publisher's correlation ID.
func messageContext(msg *message.Message) context.Context {
	ctx := msg.Context()
	if cid := msg.Metadata.Get("correlation_id"); cid != "" {
		ctx = logging.ContextWithCorrelationID(ctx, cid)
	}
	return ctx
}

// LogHandler writes alerts at warn level and events at debug level.
type LogHandler struct {
	logger zerolog.Logger
}

// HandleEvent implements Handler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *monitor.SecurityEvent) error {
	h.logger.Debug().
		Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("severity", string(event.Severity)).
		Str("user_id", event.UserID).
		Msg("Security event received")
	return nil
}

// HandleAlert implements Handler.
func (h *LogHandler) HandleAlert(ctx context.Context, alert *monitor.SecurityAlert) error {
	h.logger.Warn().
		Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
		Str("alert_id", alert.ID).
		Str("condition", alert.Condition).
		Str("severity", string(alert.Severity)).
		Int("events", len(alert.EventIDs)).
		Msg(alert.Title)
	return nil
}
