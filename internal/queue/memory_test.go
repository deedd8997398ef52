package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniqueName() string { return "test-" + uuid.NewString() }

func recv(t *testing.T, ch <-chan Delivery) Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "delivery channel closed")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	return Delivery{}
}

func TestMemory_PublisherAndConsumerShareNamedQueue(t *testing.T) {
	name := uniqueName()
	pub, sub := NewMemory(name), NewMemory(name)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, pub.Publish(ctx, []byte("one")))
	require.NoError(t, pub.Publish(ctx, []byte("two")))

	ch, err := sub.Consume(ctx)
	require.NoError(t, err)

	d := recv(t, ch)
	assert.Equal(t, "one", string(d.Body))
	require.NoError(t, d.Ack())
	d = recv(t, ch)
	assert.Equal(t, "two", string(d.Body))
	require.NoError(t, d.Ack())

	// arrives after the consumer is idle
	require.NoError(t, pub.Publish(ctx, []byte("three")))
	assert.Equal(t, "three", string(recv(t, ch).Body))
}

func TestMemory_NackRequeueRedelivers(t *testing.T) {
	q := NewMemory(uniqueName())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, []byte("again")))
	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	d := recv(t, ch)
	require.NoError(t, d.Nack(true))
	d = recv(t, ch)
	assert.Equal(t, "again", string(d.Body))
	require.NoError(t, d.Nack(false))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
}

func TestMemory_ConsumeStopsOnCancel(t *testing.T) {
	q := NewMemory(uniqueName())
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
