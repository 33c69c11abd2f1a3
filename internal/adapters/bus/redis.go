package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/config"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

const (
	defaultBlockTimeout = 2 * time.Second
	defaultClaimIdle    = 30 * time.Second
	readBatch           = 64
	readErrorBackoff    = time.Second

	fieldKey     = "key"
	fieldPayload = "payload"
)

// NewRedisClient creates a Redis client for the bus and verifies the
// connection.
func NewRedisClient(ctx context.Context, cfg config.BusConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// RedisBus carries events over Redis Streams. Every topic is a stream and
// every subscriber group a consumer group on it. Entries are acknowledged
// only after the handler succeeds; entries left pending longer than the
// claim idle time are claimed again by a live consumer.
type RedisBus struct {
	client       *redis.Client
	consumer     string
	partitions   int
	blockTimeout time.Duration
	claimIdle    time.Duration
	maxLen       int64
	logger       *slog.Logger
}

func NewRedisBus(client *redis.Client, cfg config.BusConfig, logger *slog.Logger) *RedisBus {
	b := &RedisBus{
		client:       client,
		consumer:     cfg.Consumer,
		partitions:   cfg.Partitions,
		blockTimeout: cfg.BlockTimeout,
		claimIdle:    cfg.ClaimIdle,
		maxLen:       cfg.MaxLen,
		logger:       logger,
	}
	if b.consumer == "" {
		b.consumer, _ = os.Hostname()
	}
	if b.blockTimeout <= 0 {
		b.blockTimeout = defaultBlockTimeout
	}
	if b.claimIdle <= 0 {
		b.claimIdle = defaultClaimIdle
	}
	return b
}

func (b *RedisBus) Publish(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", topic, err)
	}

	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{
			fieldKey:     key,
			fieldPayload: payload,
		},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}

	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes topic as group until ctx is done. A new group starts
// from the beginning of the stream.
func (b *RedisBus) Subscribe(ctx context.Context, topic, group string, handler ports.MessageHandler) error {
	err := b.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create group %s on %s: %w", group, topic, err)
	}

	d := newDispatcher(ctx, b.partitions, handler, b.logger)
	defer d.close()

	b.logger.Info("subscribed",
		"topic", topic,
		"group", group,
		"consumer", b.consumer,
		"driver", "redis")

	lastClaim := time.Time{}
	for ctx.Err() == nil {
		if time.Since(lastClaim) >= b.claimIdle {
			b.claim(ctx, d, topic, group)
			lastClaim = time.Now()
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: b.consumer,
			Streams:  []string{topic, ">"},
			Count:    readBatch,
			Block:    b.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			b.logger.Error("failed to read stream", "topic", topic, "group", group, "error", err)
			sleep(ctx, readErrorBackoff)
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				b.dispatch(ctx, d, topic, group, entry)
			}
		}
	}
	return nil
}

// claim takes over entries another consumer read but never acknowledged.
func (b *RedisBus) claim(ctx context.Context, d *dispatcher, topic, group string) {
	start := "0-0"
	for {
		entries, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   topic,
			Group:    group,
			Consumer: b.consumer,
			MinIdle:  b.claimIdle,
			Start:    start,
			Count:    readBatch,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Warn("failed to claim idle entries", "topic", topic, "group", group, "error", err)
			}
			return
		}

		if len(entries) > 0 {
			b.logger.Info("claimed idle entries", "topic", topic, "group", group, "count", len(entries))
		}
		for _, entry := range entries {
			b.dispatch(ctx, d, topic, group, entry)
		}

		if next == "0-0" || len(entries) == 0 {
			return
		}
		start = next
	}
}

func (b *RedisBus) dispatch(ctx context.Context, d *dispatcher, topic, group string, entry redis.XMessage) {
	msg, ok := decodeEntry(topic, entry)
	if !ok {
		b.logger.Warn("dropping malformed stream entry", "topic", topic, "message_id", entry.ID)
		b.ack(ctx, topic, group, entry.ID)
		return
	}

	_ = d.submit(ctx, msg, func(err error) {
		if err == nil {
			b.ack(ctx, topic, group, msg.ID)
		}
	})
}

func (b *RedisBus) ack(ctx context.Context, topic, group, id string) {
	if err := b.client.XAck(context.WithoutCancel(ctx), topic, group, id).Err(); err != nil {
		b.logger.Error("failed to acknowledge entry", "topic", topic, "message_id", id, "error", err)
	}
}

func decodeEntry(topic string, entry redis.XMessage) (ports.Message, bool) {
	payload, ok := entry.Values[fieldPayload].(string)
	if !ok {
		return ports.Message{}, false
	}
	key, _ := entry.Values[fieldKey].(string)

	return ports.Message{
		ID:      entry.ID,
		Topic:   topic,
		Key:     key,
		Payload: []byte(payload),
	}, true
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
