package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subscribe starts a subscription and waits until it is registered.
func subscribe(t *testing.T, b *MemoryBus, topic, group string, handler ports.MessageHandler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Subscribe(ctx, topic, group, handler)
	}()

	require.Eventually(t, func() bool { return b.HasSubscriber(topic, group) }, time.Second, 5*time.Millisecond)

	return func() {
		cancel()
		<-done
	}
}

func TestMemoryBus_DeliversToEachGroup(t *testing.T) {
	b := NewMemoryBus(2, quietLogger())

	var sagaCount, auditCount atomic.Int32
	stopSaga := subscribe(t, b, domain.TopicPaymentCreated, "saga", func(_ context.Context, msg ports.Message) error {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, "p-1", msg.Key)
		sagaCount.Add(1)
		return nil
	})
	defer stopSaga()
	stopAudit := subscribe(t, b, domain.TopicPaymentCreated, "audit", func(context.Context, ports.Message) error {
		auditCount.Add(1)
		return nil
	})
	defer stopAudit()

	require.NoError(t, b.Publish(context.Background(), domain.TopicPaymentCreated, "p-1", map[string]string{"payment_id": "p-1"}))

	assert.Eventually(t, func() bool {
		return sagaCount.Load() == 1 && auditCount.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryBus_PublishWithoutSubscribersIsDropped(t *testing.T) {
	b := NewMemoryBus(1, quietLogger())
	assert.NoError(t, b.Publish(context.Background(), domain.TopicPaymentProcessed, "k", struct{}{}))
}

func TestMemoryBus_RedeliversFailedMessages(t *testing.T) {
	b := NewMemoryBus(1, quietLogger())

	var calls atomic.Int32
	stop := subscribe(t, b, "topic", "group", func(context.Context, ports.Message) error {
		if calls.Add(1) < 2 {
			return errors.New("transient")
		}
		return nil
	})
	defer stop()

	require.NoError(t, b.Publish(context.Background(), "topic", "k", "x"))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestMemoryBus_GivesUpAfterMaxAttempts(t *testing.T) {
	b := NewMemoryBus(1, quietLogger())

	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(defaultMemoryAttempts)
	stop := subscribe(t, b, "topic", "group", func(context.Context, ports.Message) error {
		calls.Add(1)
		wg.Done()
		return errors.New("permanent")
	})

	require.NoError(t, b.Publish(context.Background(), "topic", "k", "x"))
	wg.Wait()
	stop()

	assert.Equal(t, int32(defaultMemoryAttempts), calls.Load())
}

func TestMemoryBus_DuplicateGroupIsRefused(t *testing.T) {
	b := NewMemoryBus(1, quietLogger())
	stop := subscribe(t, b, "topic", "group", func(context.Context, ports.Message) error { return nil })
	defer stop()

	err := b.Subscribe(context.Background(), "topic", "group", func(context.Context, ports.Message) error { return nil })
	assert.Error(t, err)
}
