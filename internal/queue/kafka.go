package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
)

// Kafka uses the queue name as topic and a consumer group (url query
// "group", default sitewatch) so each message is handled by one consumer.
// Ack commits the offset.
type Kafka struct {
	brokers []string
	topic   string
	group   string
	w       *kafka.Writer

	mu sync.Mutex
	r  *kafka.Reader
}

// DialKafka accepts kafka://host1:9092,host2:9092?group=name.
func DialKafka(ctx context.Context, u *url.URL, name string) (*Kafka, error) {
	var brokers []string
	for _, b := range strings.Split(u.Host, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka url has no brokers")
	}
	group := u.Query().Get("group")
	if group == "" {
		group = "sitewatch"
	}

	// fail fast when no broker answers
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, fmt.Errorf("kafka dial %s: %w", brokers[0], err)
	}
	_ = conn.Close()

	return &Kafka{
		brokers: brokers,
		topic:   name,
		group:   group,
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  name,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, body []byte) error {
	return k.w.WriteMessages(ctx, kafka.Message{Value: body, Time: time.Now().UTC()})
}

func (k *Kafka) Consume(ctx context.Context) (<-chan Delivery, error) {
	k.mu.Lock()
	if k.r == nil {
		k.r = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  k.brokers,
			GroupID:  k.group,
			Topic:    k.topic,
			MinBytes: 1,
			MaxBytes: 1 << 20,
			MaxWait:  time.Second,
		})
	}
	r := k.r
	k.mu.Unlock()

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				return
			}
			d := NewDelivery(m.Value,
				func() error { return r.CommitMessages(context.Background(), m) },
				func(requeue bool) error {
					if requeue {
						if err := k.w.WriteMessages(context.Background(), kafka.Message{Value: m.Value}); err != nil {
							return err
						}
					}
					return r.CommitMessages(context.Background(), m)
				},
			)
			select {
			case out <- d:
			case <-ctx.Done():
				// uncommitted; the group redelivers it
				return
			}
		}
	}()
	return out, nil
}

func (k *Kafka) Close() error {
	var err error
	k.mu.Lock()
	if k.r != nil {
		err = k.r.Close()
	}
	k.mu.Unlock()
	return multierr.Append(err, k.w.Close())
}
