package queue

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements a reliable queue on two lists: producers LPUSH onto name,
// the consumer BLMOVEs each item into name:processing and removes it from
// there on ack. Items left in processing by a crashed consumer are requeued
// when the next consumer starts, so one consumer per queue is assumed.
type Redis struct {
	rdb        *redis.Client
	name       string
	processing string
	block      time.Duration
}

func DialRedis(ctx context.Context, rawURL, name string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 1 * time.Second
	if opts.TLSConfig == nil && strings.HasPrefix(rawURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb, name: name, processing: name + ":processing", block: 5 * time.Second}, nil
}

func (r *Redis) Publish(ctx context.Context, body []byte) error {
	return r.rdb.LPush(ctx, r.name, body).Err()
}

// recover moves unacked items back to the consuming end of the queue.
func (r *Redis) recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := r.rdb.LMove(ctx, r.processing, r.name, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (r *Redis) Consume(ctx context.Context) (<-chan Delivery, error) {
	if _, err := r.recover(ctx); err != nil {
		return nil, fmt.Errorf("redis requeue unacked: %w", err)
	}
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			v, err := r.rdb.BLMove(ctx, r.name, r.processing, "RIGHT", "LEFT", r.block).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return
			}
			d := NewDelivery([]byte(v),
				func() error { return r.rdb.LRem(context.Background(), r.processing, 1, v).Err() },
				func(requeue bool) error { return r.nack(v, requeue) },
			)
			select {
			case out <- d:
			case <-ctx.Done():
				_ = r.nack(v, true)
				return
			}
		}
	}()
	return out, nil
}

func (r *Redis) nack(v string, requeue bool) error {
	_, err := r.rdb.TxPipelined(context.Background(), func(p redis.Pipeliner) error {
		p.LRem(context.Background(), r.processing, 1, v)
		if requeue {
			p.RPush(context.Background(), r.name, v)
		}
		return nil
	})
	return err
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
