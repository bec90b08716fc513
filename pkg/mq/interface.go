package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ClientInterface defines the interface for message queue operations.
// Components that consume or publish readings depend on this interface so
// tests can substitute a mock.
type ClientInterface interface {
	// Push publishes data to the queue and waits for broker confirmation.
	// It blocks until the confirmation arrives, the context is done, or the
	// retry budget is exhausted.
	Push(ctx context.Context, data []byte) error

	// UnsafePush publishes without waiting for confirmation. It returns an
	// error if the client is not connected; no delivery guarantee is made.
	UnsafePush(ctx context.Context, data []byte) error

	// Consume returns a channel of deliveries from the queue. Callers must
	// Ack each delivery after processing it, or Nack it on failure.
	Consume() (<-chan amqp.Delivery, error)

	// Close cleanly shuts down the channel and connection.
	Close() error
}

// Ensure Client implements ClientInterface.
var _ ClientInterface = (*Client)(nil)
