// Package queue is the point-to-point, at-least-once channel between the
// alert publisher and the decision engine. Backends: RabbitMQ, Redis lists,
// Kafka consumer groups and an in-process queue for tests and local runs.
package queue

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hamed0406/sitewatch/internal/domain"
)

const DefaultName = "website-check"

// Delivery is one received message. Exactly one of Ack or Nack must be called.
type Delivery struct {
	Body []byte
	ack  func() error
	nack func(requeue bool) error
}

func NewDelivery(body []byte, ack func() error, nack func(requeue bool) error) Delivery {
	return Delivery{Body: body, ack: ack, nack: nack}
}

func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

func (d Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

type Publisher interface {
	Publish(ctx context.Context, body []byte) error
	Close() error
}

type Consumer interface {
	// Consume streams deliveries until ctx is done or the connection is lost;
	// either way the channel is closed.
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}

// Conn is a connection to one named queue.
type Conn interface {
	Publisher
	Consumer
}

// Dialer opens a fresh connection; callers redial after failures.
type Dialer func(ctx context.Context) (Conn, error)

// Open connects to the queue called name on the broker addressed by rawURL.
// Errors are wrapped with domain.ErrQueueUnavailable.
func Open(ctx context.Context, rawURL, name string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse queue url: %v", domain.ErrQueueUnavailable, err)
	}
	var c Conn
	switch strings.ToLower(u.Scheme) {
	case "amqp", "amqps":
		c, err = DialAMQP(ctx, rawURL, name)
	case "redis", "rediss":
		c, err = DialRedis(ctx, rawURL, name)
	case "kafka":
		c, err = DialKafka(ctx, u, name)
	case "mem", "memory":
		c = NewMemory(name)
	default:
		err = fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	return c, nil
}

// NewDialer binds Open to a url and queue name.
func NewDialer(rawURL, name string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		return Open(ctx, rawURL, name)
	}
}
