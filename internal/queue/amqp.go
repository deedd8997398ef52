package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
)

// AMQP publishes to and consumes from a durable RabbitMQ queue through the
// default exchange. Consumption uses manual acks and a small prefetch.
type AMQP struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string

	mu sync.Mutex // amqp channels are not safe for concurrent publishes
}

const amqpPrefetch = 8

func DialAMQP(ctx context.Context, rawURL, name string) (*AMQP, error) {
	conn, err := amqp.DialConfig(rawURL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(5 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", name, err)
	}
	if err := ch.Qos(amqpPrefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}
	return &AMQP{conn: conn, ch: ch, name: name}, nil
}

func (a *AMQP) Publish(ctx context.Context, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ch.PublishWithContext(ctx, "", a.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (a *AMQP) Consume(ctx context.Context) (<-chan Delivery, error) {
	msgs, err := a.ch.Consume(a.name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("amqp consume %s: %w", a.name, err)
	}
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				d := NewDelivery(m.Body,
					func() error { return m.Ack(false) },
					func(requeue bool) error { return m.Nack(false, requeue) },
				)
				select {
				case out <- d:
				case <-ctx.Done():
					_ = m.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (a *AMQP) Close() error {
	return multierr.Append(a.ch.Close(), a.conn.Close())
}
