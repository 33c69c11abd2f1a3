package bus

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
)

const laneBuffer = 64

type job struct {
	msg  ports.Message
	done func(error)
}

// dispatcher fans deliveries out to a fixed set of lanes. A key always
// maps to the same lane, so messages sharing a key run one at a time and
// in submission order while different keys run in parallel.
type dispatcher struct {
	lanes   []chan job
	handler ports.MessageHandler
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func newDispatcher(ctx context.Context, partitions int, handler ports.MessageHandler, logger *slog.Logger) *dispatcher {
	if partitions < 1 {
		partitions = 1
	}
	d := &dispatcher{
		lanes:   make([]chan job, partitions),
		handler: handler,
		logger:  logger,
	}
	for i := range d.lanes {
		d.lanes[i] = make(chan job, laneBuffer)
		d.wg.Add(1)
		go d.run(ctx, i)
	}
	return d
}

func (d *dispatcher) run(ctx context.Context, lane int) {
	defer d.wg.Done()
	for j := range d.lanes[lane] {
		err := d.handler(ctx, j.msg)
		if err != nil {
			d.logger.Warn("message handler failed",
				"topic", j.msg.Topic,
				"message_id", j.msg.ID,
				"key", j.msg.Key,
				"lane", lane,
				"error", err)
		}
		if j.done != nil {
			j.done(err)
		}
	}
}

// submit queues msg on its key's lane. done, when set, runs on the lane
// after the handler returns.
func (d *dispatcher) submit(ctx context.Context, msg ports.Message, done func(error)) error {
	select {
	case d.lanes[partitionFor(msg.Key, len(d.lanes))] <- job{msg: msg, done: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting work and waits for queued jobs to finish.
func (d *dispatcher) close() {
	for _, lane := range d.lanes {
		close(lane)
	}
	d.wg.Wait()
}

func partitionFor(key string, partitions int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(partitions))
}
