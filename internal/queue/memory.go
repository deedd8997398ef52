package queue

import (
	"context"
	"sync"
)

type memQueue struct {
	mu     sync.Mutex
	items  [][]byte
	signal chan struct{}
}

func (q *memQueue) push(b []byte, front bool) {
	q.mu.Lock()
	if front {
		q.items = append([][]byte{b}, q.items...)
	} else {
		q.items = append(q.items, b)
	}
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *memQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	b := q.items[0]
	q.items = q.items[1:]
	return b, true
}

var memQueues = struct {
	sync.Mutex
	m map[string]*memQueue
}{m: make(map[string]*memQueue)}

// Memory is an in-process queue. Connections opened with the same name share
// the queue, so a publisher and a consumer can be separate objects as they
// would be against a broker. Messages do not survive the process.
type Memory struct {
	q *memQueue
}

func NewMemory(name string) *Memory {
	memQueues.Lock()
	defer memQueues.Unlock()
	q, ok := memQueues.m[name]
	if !ok {
		q = &memQueue{signal: make(chan struct{}, 1)}
		memQueues.m[name] = q
	}
	return &Memory{q: q}
}

func (m *Memory) Publish(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.q.push(append([]byte(nil), body...), false)
	return nil
}

// Len reports the number of queued, undelivered messages.
func (m *Memory) Len() int {
	m.q.mu.Lock()
	defer m.q.mu.Unlock()
	return len(m.q.items)
}

func (m *Memory) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			b, ok := m.q.pop()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-m.q.signal:
					continue
				}
			}
			d := NewDelivery(b,
				func() error { return nil },
				func(requeue bool) error {
					if requeue {
						m.q.push(b, true)
					}
					return nil
				},
			)
			select {
			case out <- d:
			case <-ctx.Done():
				m.q.push(b, true)
				return
			}
		}
	}()
	return out, nil
}

func (m *Memory) Close() error { return nil }
