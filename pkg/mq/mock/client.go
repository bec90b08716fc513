// Package mock provides an in-memory mq.ClientInterface for tests.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sensorhub-io/sensorhub/pkg/mq"
)

// Client is a test double for mq.ClientInterface. Pushed payloads are
// recorded; deliveries are fed through an in-memory channel.
type Client struct {
	mu         sync.Mutex
	pushed     [][]byte
	deliveries chan amqp.Delivery
	closed     bool

	// PushErr, when set, is returned by Push and UnsafePush.
	PushErr error
	// ConsumeErr, when set, is returned by Consume.
	ConsumeErr error
}

var _ mq.ClientInterface = (*Client)(nil)

// NewClient creates a mock client with a buffered delivery channel.
func NewClient() *Client {
	return &Client{
		deliveries: make(chan amqp.Delivery, 64),
	}
}

// Push records the payload.
func (c *Client) Push(_ context.Context, data []byte) error {
	if c.PushErr != nil {
		return c.PushErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushed = append(c.pushed, append([]byte(nil), data...))
	return nil
}

// UnsafePush records the payload.
func (c *Client) UnsafePush(ctx context.Context, data []byte) error {
	return c.Push(ctx, data)
}

// Consume returns the in-memory delivery channel.
func (c *Client) Consume() (<-chan amqp.Delivery, error) {
	if c.ConsumeErr != nil {
		return nil, c.ConsumeErr
	}
	return c.deliveries, nil
}

// Close closes the delivery channel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.deliveries)
	}
	return nil
}

// Deliver injects a delivery as if it came from the broker.
func (c *Client) Deliver(d amqp.Delivery) {
	c.deliveries <- d
}

// Pushed returns a copy of all recorded payloads.
func (c *Client) Pushed() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.pushed))
	copy(out, c.pushed)
	return out
}

// Acknowledger records ack/nack/reject calls so tests can assert how a
// consumer settled each delivery.
type Acknowledger struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeued int
}

var _ amqp.Acknowledger = (*Acknowledger)(nil)

// Ack records an acknowledgement.
func (a *Acknowledger) Ack(_ uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

// Nack records a negative acknowledgement.
func (a *Acknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	if requeue {
		a.requeued++
	}
	return nil
}

// Reject records a rejection.
func (a *Acknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

// Acks returns the number of recorded acknowledgements.
func (a *Acknowledger) Acks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks
}

// Nacks returns the number of recorded negative acknowledgements.
func (a *Acknowledger) Nacks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nacks
}

// Requeued returns how many nacks asked for redelivery.
func (a *Acknowledger) Requeued() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requeued
}
