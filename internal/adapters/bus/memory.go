package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/google/uuid"
)

const defaultMemoryAttempts = 3

// MemoryBus is an in-process bus for local runs and tests. Each consumer
// group of a topic gets its own copy of every message. A failed delivery
// is retried on its lane up to maxAttempts times and then dropped.
type MemoryBus struct {
	mu          sync.RWMutex
	groups      map[string]map[string]*dispatcher
	partitions  int
	maxAttempts int
	logger      *slog.Logger
}

func NewMemoryBus(partitions int, logger *slog.Logger) *MemoryBus {
	return &MemoryBus{
		groups:      make(map[string]map[string]*dispatcher),
		partitions:  partitions,
		maxAttempts: defaultMemoryAttempts,
		logger:      logger,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", topic, err)
	}

	msg := ports.Message{
		ID:      uuid.NewString(),
		Topic:   topic,
		Key:     key,
		Payload: payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for group, d := range b.groups[topic] {
		if err := d.submit(ctx, msg, nil); err != nil {
			return fmt.Errorf("failed to publish to %s/%s: %w", topic, group, err)
		}
	}
	return nil
}

// Subscribe blocks until ctx is done. Messages published before the
// group subscribed are not delivered to it.
func (b *MemoryBus) Subscribe(ctx context.Context, topic, group string, handler ports.MessageHandler) error {
	d := newDispatcher(ctx, b.partitions, b.withRedelivery(handler), b.logger)

	b.mu.Lock()
	if _, exists := b.groups[topic][group]; exists {
		b.mu.Unlock()
		d.close()
		return fmt.Errorf("group %s already subscribed to %s", group, topic)
	}
	if b.groups[topic] == nil {
		b.groups[topic] = make(map[string]*dispatcher)
	}
	b.groups[topic][group] = d
	b.mu.Unlock()

	b.logger.Info("subscribed", "topic", topic, "group", group, "driver", "memory")
	<-ctx.Done()

	b.mu.Lock()
	delete(b.groups[topic], group)
	b.mu.Unlock()

	d.close()
	return nil
}

// HasSubscriber reports whether group is currently consuming topic.
func (b *MemoryBus) HasSubscriber(topic, group string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.groups[topic][group]
	return ok
}

func (b *MemoryBus) withRedelivery(handler ports.MessageHandler) ports.MessageHandler {
	return func(ctx context.Context, msg ports.Message) error {
		var err error
		for attempt := 1; attempt <= b.maxAttempts; attempt++ {
			if err = handler(ctx, msg); err == nil || ctx.Err() != nil {
				return err
			}
			b.logger.Debug("redelivering message",
				"topic", msg.Topic,
				"message_id", msg.ID,
				"attempt", attempt,
				"error", err)
		}
		return fmt.Errorf("giving up after %d attempts: %w", b.maxAttempts, err)
	}
}
