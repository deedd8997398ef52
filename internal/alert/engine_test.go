package alert

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/queue"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
)

type sentMail struct {
	to, url string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, ownerEmail, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{ownerEmail, url})
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// brokenReceipts fails every receipt write.
type brokenReceipts struct {
	*memory.Store
}

func (b brokenReceipts) AppendAlertReceipt(ctx context.Context, r domain.AlertReceipt) error {
	return errors.New("read-only replica")
}

var target = domain.Endpoint{ID: "ep-1", URL: "https://a.test", OwnerEmail: "owner@a.test"}

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func policy() Policy { return Policy{Threshold: 10, Cooldown: 10 * time.Minute} }

func newEngine(store Store, n Notifier) (*Engine, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	e := NewEngine(zap.New(core), store, n, nil, EngineOptions{Policy: policy(), RetryPause: time.Millisecond})
	e.now = func() time.Time { return t0 }
	return e, logs
}

func appendChecks(t *testing.T, st *memory.Store, from time.Time, statuses ...domain.Status) {
	t.Helper()
	for i, s := range statuses {
		rec := domain.CheckRecord{EndpointID: target.ID, Status: s, CheckedAt: from.Add(time.Duration(i) * 30 * time.Second)}
		require.NoError(t, st.AppendCheck(context.Background(), rec))
	}
}

func body(t *testing.T) []byte {
	t.Helper()
	b, err := domain.NewAlertMessage(target).Encode()
	require.NoError(t, err)
	return b
}

func TestHandle_TenDownsNoReceiptSendsOnce(t *testing.T) {
	st := memory.New()
	appendChecks(t, st, t0.Add(-10*time.Minute), downs(10)...)
	n := &fakeNotifier{}
	e, _ := newEngine(st, n)

	assert.Equal(t, OutcomeSent, e.Handle(context.Background(), body(t)))

	require.Len(t, n.sent, 1)
	assert.Equal(t, sentMail{"owner@a.test", "https://a.test"}, n.sent[0])
	receipts := st.Receipts(target.ID)
	require.Len(t, receipts, 1)
	assert.Equal(t, domain.StatusDown, receipts[0].Status)
	assert.Equal(t, "owner@a.test", receipts[0].OwnerEmail)
	assert.True(t, receipts[0].SentAt.Equal(t0))
}

func TestHandle_NotAllDownSuppresses(t *testing.T) {
	st := memory.New()
	statuses := downs(10)
	statuses[4] = domain.StatusUp
	appendChecks(t, st, t0.Add(-10*time.Minute), statuses...)
	n := &fakeNotifier{}
	e, logs := newEngine(st, n)

	assert.Equal(t, OutcomeSuppressed, e.Handle(context.Background(), body(t)))
	assert.Zero(t, n.count())
	assert.Empty(t, st.Receipts(target.ID))

	entries := logs.FilterMessage("alert_suppressed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(ReasonNotPersistent), entries[0].ContextMap()["reason"])
}

func TestHandle_FewerThanThresholdSuppresses(t *testing.T) {
	st := memory.New()
	appendChecks(t, st, t0.Add(-5*time.Minute), downs(9)...)
	n := &fakeNotifier{}
	e, _ := newEngine(st, n)

	assert.Equal(t, OutcomeSuppressed, e.Handle(context.Background(), body(t)))
	assert.Zero(t, n.count())
}

func TestHandle_Cooldown(t *testing.T) {
	cases := []struct {
		name    string
		ago     time.Duration
		outcome Outcome
		emails  int
	}{
		{"receipt 5 minutes ago", 5 * time.Minute, OutcomeSuppressed, 0},
		{"receipt 11 minutes ago", 11 * time.Minute, OutcomeSent, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := memory.New()
			appendChecks(t, st, t0.Add(-10*time.Minute), downs(10)...)
			require.NoError(t, st.AppendAlertReceipt(context.Background(), domain.AlertReceipt{
				EndpointID: target.ID, OwnerEmail: target.OwnerEmail, Status: domain.StatusDown, SentAt: t0.Add(-tc.ago),
			}))
			n := &fakeNotifier{}
			e, _ := newEngine(st, n)

			assert.Equal(t, tc.outcome, e.Handle(context.Background(), body(t)))
			assert.Equal(t, tc.emails, n.count())
			assert.Len(t, st.Receipts(target.ID), 1+tc.emails)
		})
	}
}

func TestHandle_DuplicateDeliverySendsAtMostOnce(t *testing.T) {
	st := memory.New()
	appendChecks(t, st, t0.Add(-10*time.Minute), downs(10)...)
	n := &fakeNotifier{}
	e, _ := newEngine(st, n)

	assert.Equal(t, OutcomeSent, e.Handle(context.Background(), body(t)))
	assert.Equal(t, OutcomeSuppressed, e.Handle(context.Background(), body(t)))
	assert.Equal(t, 1, n.count())
	assert.Len(t, st.Receipts(target.ID), 1)
}

func TestHandle_FifteenDownChecksScenario(t *testing.T) {
	st := memory.New()
	n := &fakeNotifier{}
	e, _ := newEngine(st, n)

	var outcomes []Outcome
	for i := 0; i < 15; i++ {
		at := t0.Add(time.Duration(i) * 30 * time.Second)
		require.NoError(t, st.AppendCheck(context.Background(), domain.CheckRecord{EndpointID: target.ID, Status: domain.StatusDown, CheckedAt: at}))
		e.now = func() time.Time { return at }
		outcomes = append(outcomes, e.Handle(context.Background(), body(t)))
	}

	for i, out := range outcomes {
		switch {
		case i < 9:
			assert.Equal(t, OutcomeSuppressed, out, "check %d", i+1)
		case i == 9:
			assert.Equal(t, OutcomeSent, out, "check %d", i+1)
		default:
			assert.Equal(t, OutcomeSuppressed, out, "check %d", i+1)
		}
	}
	assert.Equal(t, 1, n.count())
}

func TestHandle_NotifyFailureStillRecordsReceipt(t *testing.T) {
	st := memory.New()
	appendChecks(t, st, t0.Add(-10*time.Minute), downs(10)...)
	n := &fakeNotifier{err: domain.ErrNotify}
	e, logs := newEngine(st, n)

	assert.Equal(t, OutcomeNotifyFailed, e.Handle(context.Background(), body(t)))
	assert.Len(t, st.Receipts(target.ID), 1)
	assert.Equal(t, 1, logs.FilterMessage("alert_notify_failed").Len())
}

func TestHandle_ReceiptFailureSkipsEmail(t *testing.T) {
	st := memory.New()
	appendChecks(t, st, t0.Add(-10*time.Minute), downs(10)...)
	n := &fakeNotifier{}
	e, _ := newEngine(brokenReceipts{st}, n)

	assert.Equal(t, OutcomeReceiptFailed, e.Handle(context.Background(), body(t)))
	assert.Zero(t, n.count())
}

func TestHandle_MalformedAndStoreErrors(t *testing.T) {
	st := memory.New()
	e, logs := newEngine(st, &fakeNotifier{})

	assert.Equal(t, OutcomeMalformed, e.Handle(context.Background(), []byte("not json")))
	assert.Equal(t, OutcomeMalformed, e.Handle(context.Background(), []byte(`{"url":"https://a.test"}`)))
	assert.Equal(t, 2, logs.FilterMessage("alert_message_malformed").Len())

	st.FailNext(errors.New("connection reset"))
	assert.Equal(t, OutcomeRetry, e.Handle(context.Background(), body(t)))
}

// --- consumer loop ---

func memDialer(name string, failures int) (queue.Dialer, *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context) (queue.Conn, error) {
		if int(calls.Add(1)) <= failures {
			return nil, domain.ErrQueueUnavailable
		}
		return queue.NewMemory(name), nil
	}, &calls
}

func runEngine(t *testing.T, e *Engine) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestRun_ConsumesAndAcks(t *testing.T) {
	name := "alerts-" + uuid.NewString()
	st := memory.New()
	appendChecks(t, st, t0.Add(-10*time.Minute), downs(10)...)
	n := &fakeNotifier{}

	dial, calls := memDialer(name, 2)
	e := NewEngine(zap.NewNop(), st, n, dial, EngineOptions{
		Policy:        policy(),
		ReconnectBase: time.Millisecond,
		ReconnectMax:  5 * time.Millisecond,
	})
	e.now = func() time.Time { return t0 }

	q := queue.NewMemory(name)
	require.NoError(t, q.Publish(context.Background(), body(t)))
	require.NoError(t, q.Publish(context.Background(), body(t)))

	cancel, done := runEngine(t, e)

	require.Eventually(t, func() bool { return q.Len() == 0 && n.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(3), "dial should be retried after failures")
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	// second delivery was suppressed by the first one's receipt
	assert.Equal(t, 1, n.count())
	assert.Len(t, st.Receipts(target.ID), 1)
}

func TestRun_StoreErrorRequeues(t *testing.T) {
	name := "alerts-" + uuid.NewString()
	st := memory.New()
	appendChecks(t, st, t0.Add(-10*time.Minute), downs(10)...)
	st.FailNext(errors.New("timeout"))
	n := &fakeNotifier{}

	dial, _ := memDialer(name, 0)
	e := NewEngine(zap.NewNop(), st, n, dial, EngineOptions{Policy: policy(), RetryPause: time.Millisecond})
	e.now = func() time.Time { return t0 }

	q := queue.NewMemory(name)
	require.NoError(t, q.Publish(context.Background(), body(t)))

	runEngine(t, e)

	// first attempt hits the store error and is requeued; the redelivery sends
	require.Eventually(t, func() bool { return n.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, q.Len())
}
