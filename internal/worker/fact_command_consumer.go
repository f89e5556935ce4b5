package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/reputation-service/internal/config"
	"github.com/spec-kit/reputation-service/internal/observability"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

const (
	payloadField     = "payload"
	deadLetterSuffix = ":dead"
	errorBackoff     = time.Second
)

// FactCommandConsumer reads fact commands from a Redis stream consumer
// group. Delivery is at least once: a message is acknowledged after it is
// applied or found permanently invalid; anything else stays pending and is
// reclaimed once idle.
type FactCommandConsumer struct {
	client    redis.UniversalClient
	processor *CommandProcessor
	cfg       config.CommandsConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewFactCommandConsumer builds a consumer.
func NewFactCommandConsumer(client redis.UniversalClient, processor *CommandProcessor, cfg config.CommandsConfig, metrics *observability.Metrics, logger *zap.Logger) *FactCommandConsumer {
	return &FactCommandConsumer{
		client:    client,
		processor: processor,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With(zap.String("stream", cfg.Stream), zap.String("consumer", cfg.Consumer)),
	}
}

// Run consumes until ctx is cancelled.
func (c *FactCommandConsumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	c.logger.Info("fact command consumer started")

	lastClaim := time.Time{}
	for {
		if ctx.Err() != nil {
			c.logger.Info("fact command consumer stopped")
			return nil
		}

		if time.Since(lastClaim) >= c.cfg.ClaimIdle() {
			if err := c.reclaim(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("reclaim failed", zap.Error(err))
			}
			lastClaim = time.Now()
		}

		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Warn("stream read failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
		}
	}
}

func (c *FactCommandConsumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (c *FactCommandConsumer) poll(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block(),
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.handle(ctx, msg)
		}
	}
	return nil
}

// reclaim takes over messages another consumer (or an earlier attempt of
// this one) left pending for longer than the idle threshold.
func (c *FactCommandConsumer) reclaim(ctx context.Context) error {
	start := "0-0"
	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			MinIdle:  c.cfg.ClaimIdle(),
			Start:    start,
			Count:    c.cfg.BatchSize,
		}).Result()
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
		if next == "0-0" || next == "" || len(msgs) == 0 {
			return nil
		}
		start = next
	}
}

func (c *FactCommandConsumer) handle(ctx context.Context, msg redis.XMessage) {
	logger := c.logger.With(zap.String("message_id", msg.ID))
	ctx, span := observability.StartSpan(ctx, "factcommand.Handle", attribute.String("messaging.message.id", msg.ID))
	defer span.End()

	raw, _ := msg.Values[payloadField].(string)
	cmd, err := DecodeFactCommand(raw)
	if err == nil {
		var applied bool
		applied, err = c.processor.Process(ctx, cmd)
		if err == nil {
			if applied {
				c.metrics.RecordFactCommand("applied")
			} else {
				c.metrics.RecordFactCommand("duplicate")
			}
			c.ack(ctx, msg.ID, logger)
			return
		}
	}

	span.RecordError(err)
	if apperrors.IsPermanent(err) {
		c.metrics.RecordFactCommand("rejected")
		logger.Warn("fact command rejected", zap.String("user_id", cmd.UserID), zap.Error(err))
		if dlErr := c.deadLetter(ctx, msg, err); dlErr != nil {
			logger.Error("dead letter failed; leaving message pending", zap.Error(dlErr))
			return
		}
		c.ack(ctx, msg.ID, logger)
		return
	}

	c.metrics.RecordFactCommand("error")
	logger.Error("fact command failed; will be retried", zap.String("user_id", cmd.UserID), zap.Error(err))
}

func (c *FactCommandConsumer) ack(ctx context.Context, id string, logger *zap.Logger) {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		logger.Warn("ack failed", zap.Error(err))
	}
}

func (c *FactCommandConsumer) deadLetter(ctx context.Context, msg redis.XMessage, cause error) error {
	raw, _ := msg.Values[payloadField].(string)
	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream + deadLetterSuffix,
		Values: map[string]any{
			payloadField: raw,
			"messageId":  msg.ID,
			"error":      cause.Error(),
		},
	}).Err()
}

// FactCommandPublisher appends commands to the stream.
type FactCommandPublisher struct {
	client redis.UniversalClient
	stream string
}

// NewFactCommandPublisher returns a publisher for stream.
func NewFactCommandPublisher(client redis.UniversalClient, stream string) *FactCommandPublisher {
	return &FactCommandPublisher{client: client, stream: stream}
}

// Publish appends cmd and returns the stream message id.
func (p *FactCommandPublisher) Publish(ctx context.Context, cmd FactCommand) (string, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{payloadField: string(payload)},
	}).Result()
}
