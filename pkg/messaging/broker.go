package messaging

import (
	"context"
)

// ChannelPrefix namespaces every lifecycle channel on the broker
const ChannelPrefix = "vetclinic."

// ChannelFor returns the broker channel an event type is published on
func ChannelFor(eventType string) string {
	return ChannelPrefix + eventType
}

// Message is a payload received on a broker channel
type Message struct {
	Channel string
	Payload []byte
}

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan Message, error)
	PSubscribe(ctx context.Context, patterns ...string) (<-chan Message, error)
	Close() error
}

// HandlerFunc processes one received message
type HandlerFunc func(ctx context.Context, msg Message) error

// Consume runs handler for every message until msgs is closed or ctx is done.
// Handler errors go to onError and do not stop consumption.
func Consume(ctx context.Context, msgs <-chan Message, handler HandlerFunc, onError func(Message, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := handler(ctx, msg); err != nil && onError != nil {
				onError(msg, err)
			}
		}
	}
}
