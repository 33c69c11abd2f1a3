package ports

import "context"

// Message is one delivery from the event bus.
type Message struct {
	ID      string
	Topic   string
	Key     string
	Payload []byte
}

// MessageHandler processes a delivery. Returning an error leaves the
// message unacknowledged so it is delivered again.
type MessageHandler func(ctx context.Context, msg Message) error

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type EventSubscriber interface {
	// Subscribe consumes topic as part of group until ctx is done.
	// Messages sharing a key are handled one at a time in publish order.
	Subscribe(ctx context.Context, topic, group string, handler MessageHandler) error
}
