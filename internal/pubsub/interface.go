package pubsub

import "context"

// PubSubClient publishes tournament events.
type PubSubClient interface {
	SendMessage(ctx context.Context, topic EventType, data any) error
	ProcessMessage(data []byte, returnValue any) error
}
