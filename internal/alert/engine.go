package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/queue"
	"github.com/hamed0406/sitewatch/internal/repo"
)

// Notifier sends the owner email. Failures are reported, never retried.
type Notifier interface {
	Notify(ctx context.Context, ownerEmail, url string) error
}

// Store is what the engine reads and writes.
type Store interface {
	repo.CheckStore
	repo.ReceiptStore
}

type Outcome string

const (
	OutcomeSuppressed    Outcome = "suppressed"
	OutcomeSent          Outcome = "sent"
	OutcomeNotifyFailed  Outcome = "notify_failed"
	OutcomeReceiptFailed Outcome = "receipt_failed"
	OutcomeMalformed     Outcome = "malformed"
	OutcomeRetry         Outcome = "retry" // no decision reached; redeliver
)

type EngineOptions struct {
	Policy        Policy
	ReconnectBase time.Duration // first reconnect delay, doubled per attempt
	ReconnectMax  time.Duration
	RetryPause    time.Duration // wait before requeueing an undecided message
	HandleTimeout time.Duration // bound on one message, including the email
}

// Engine consumes AlertMessages and decides whether to email the owner.
type Engine struct {
	log      *zap.Logger
	store    Store
	notifier Notifier
	dial     queue.Dialer
	opts     EngineOptions
	now      func() time.Time
}

func NewEngine(log *zap.Logger, store Store, notifier Notifier, dial queue.Dialer, opts EngineOptions) *Engine {
	if opts.Policy.Threshold < 1 {
		opts.Policy.Threshold = 1
	}
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = 500 * time.Millisecond
	}
	if opts.ReconnectMax < opts.ReconnectBase {
		opts.ReconnectMax = opts.ReconnectBase
	}
	if opts.RetryPause <= 0 {
		opts.RetryPause = time.Second
	}
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = 30 * time.Second
	}
	return &Engine{log: log, store: store, notifier: notifier, dial: dial, opts: opts, now: time.Now}
}

// Handle evaluates one message body. Every outcome except OutcomeRetry means
// a decision was reached and the message must be acknowledged.
//
// The receipt is written before the email is sent. A crash between the two
// loses that email but never sends two inside one cooldown window.
func (e *Engine) Handle(ctx context.Context, body []byte) Outcome {
	msg, err := domain.DecodeAlertMessage(body)
	if err != nil {
		e.log.Warn("alert_message_malformed", zap.ByteString("body", body), zap.Error(err))
		return OutcomeMalformed
	}
	fields := []zap.Field{
		zap.String("endpoint_id", string(msg.EndpointID)),
		zap.String("url", msg.URL),
	}

	history, err := e.store.RecentChecks(ctx, msg.EndpointID, e.opts.Policy.Threshold)
	if err != nil {
		e.log.Warn("alert_history_unavailable", append(fields, zap.Error(err))...)
		return OutcomeRetry
	}
	last, err := e.store.LatestReceipt(ctx, msg.EndpointID)
	if err != nil {
		e.log.Warn("alert_receipt_unavailable", append(fields, zap.Error(err))...)
		return OutcomeRetry
	}

	now := e.now().UTC()
	d := Decide(history, last, now, e.opts.Policy)
	if !d.Send {
		e.log.Info("alert_suppressed", append(fields, zap.String("reason", string(d.Reason)))...)
		return OutcomeSuppressed
	}

	receipt := domain.AlertReceipt{
		EndpointID: msg.EndpointID,
		OwnerEmail: msg.OwnerEmail,
		Status:     domain.StatusDown,
		SentAt:     now,
	}
	if err := e.store.AppendAlertReceipt(ctx, receipt); err != nil {
		// without a receipt the cooldown cannot hold, so no email
		e.log.Error("alert_receipt_failed", append(fields, zap.Error(err))...)
		return OutcomeReceiptFailed
	}

	if err := e.notifier.Notify(ctx, msg.OwnerEmail, msg.URL); err != nil {
		e.log.Warn("alert_notify_failed", append(fields, zap.Error(err))...)
		return OutcomeNotifyFailed
	}
	e.log.Info("alert_sent", append(fields, zap.String("to", msg.OwnerEmail))...)
	return OutcomeSent
}

// process handles d and settles it exactly once. The handling context is not
// tied to ctx so that a message in progress at shutdown still gets its ack.
func (e *Engine) process(ctx context.Context, d queue.Delivery) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.HandleTimeout)
	out := e.Handle(hctx, d.Body)
	cancel()

	if out == OutcomeRetry {
		select {
		case <-ctx.Done():
		case <-time.After(e.opts.RetryPause):
		}
		if err := d.Nack(true); err != nil {
			e.log.Warn("alert_nack_failed", zap.Error(err))
		}
		return
	}
	if err := d.Ack(); err != nil {
		e.log.Warn("alert_ack_failed", zap.String("outcome", string(out)), zap.Error(err))
	}
}

// Run consumes until ctx is done. Lost or failed connections are redialed
// with exponential backoff capped at ReconnectMax; Run never gives up.
func (e *Engine) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			e.log.Info("consumer_stopped")
			return nil
		}

		conn, err := e.dial(ctx)
		if err == nil {
			var deliveries <-chan queue.Delivery
			deliveries, err = conn.Consume(ctx)
			if err == nil {
				attempt = 0
				e.log.Info("consumer_started")
				for d := range deliveries {
					e.process(ctx, d)
				}
				_ = conn.Close()
				if ctx.Err() != nil {
					e.log.Info("consumer_stopped")
					return nil
				}
				e.log.Warn("consumer_connection_lost")
			} else {
				_ = conn.Close()
			}
		}

		attempt++
		wait := backoff(attempt, e.opts.ReconnectBase, e.opts.ReconnectMax)
		e.log.Warn("consumer_reconnect",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			e.log.Info("consumer_stopped")
			return nil
		case <-t.C:
		}
	}
}

// backoff returns base·2^(attempt-1), capped at ceiling.
func backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return ceiling
	}
	d := base << (attempt - 1)
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}
