// Package scheduler runs the periodic sweep: probe every registered endpoint,
// record the result and hand DOWN observations to the alert publisher.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/registry"
)

// AlertPublisher enqueues an alert message when status is DOWN and does
// nothing otherwise.
type AlertPublisher interface {
	PublishIfDown(ctx context.Context, ep domain.Endpoint, status domain.Status) error
}

type Options struct {
	Interval    time.Duration // time between sweep starts
	Timeout     time.Duration // per-probe timeout
	Concurrency int           // probes in flight per sweep
	Grace       time.Duration // how long in-flight probes may run after shutdown
}

type Scheduler struct {
	log       *zap.Logger
	loader    *registry.Loader
	checker   probe.Checker
	recorder  *Recorder
	publisher AlertPublisher
	opts      Options
	now       func() time.Time

	running atomic.Bool

	started, skipped, completed atomic.Int64
	written, failed, published  atomic.Int64
	cancelled                   atomic.Int64

	mu           sync.Mutex
	lastStart    time.Time
	lastDuration time.Duration
}

func New(
	log *zap.Logger,
	loader *registry.Loader,
	checker probe.Checker,
	recorder *Recorder,
	publisher AlertPublisher,
	opts Options,
) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	return &Scheduler{
		log:       log,
		loader:    loader,
		checker:   checker,
		recorder:  recorder,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done. A
// tick that arrives while the previous sweep is still running is skipped.
// On shutdown in-flight probes get opts.Grace to finish before they are
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.Interval <= 0 {
		s.log.Info("scheduler_disabled")
		return nil
	}

	// Probes outlive ctx so that shutdown can drain them.
	probeCtx, cancelProbes := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelProbes()

	var inflight sync.WaitGroup
	start := func() {
		if !s.running.CompareAndSwap(false, true) {
			s.skipped.Add(1)
			s.log.Warn("sweep_skipped", zap.String("reason", "previous sweep still running"))
			return
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer s.running.Store(false)
			s.sweep(probeCtx)
		}()
	}

	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()

	start()

	for {
		select {
		case <-ctx.Done():
			s.drain(&inflight, cancelProbes)
			s.log.Info("scheduler_stopped")
			return nil
		case <-t.C:
			start()
		}
	}
}

func (s *Scheduler) drain(inflight *sync.WaitGroup, cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.opts.Grace)
	defer timer.Stop()
	select {
	case <-done:
		return
	case <-timer.C:
		s.log.Warn("scheduler_grace_expired", zap.Duration("grace", s.opts.Grace))
		cancel()
		<-done
	}
}

// SweepOnce runs a single sweep synchronously. It returns false without
// sweeping if another sweep is in progress.
func (s *Scheduler) SweepOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return false
	}
	defer s.running.Store(false)
	s.sweep(ctx)
	return true
}

func (s *Scheduler) sweep(ctx context.Context) {
	begin := s.now()
	s.started.Add(1)

	if s.loader.Due() {
		// failure is logged by the loader; the previous snapshot is used
		_ = s.loader.Refresh(ctx)
	}
	eps := s.loader.Snapshot()

	sem := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup

	for _, ep := range eps {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			s.log.Warn("sweep_cancelled", zap.Int("endpoints", len(eps)))
			wg.Wait()
			return
		}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			s.checkOne(ctx, ep)
		}()
	}
	wg.Wait()

	took := s.now().Sub(begin)
	s.completed.Add(1)
	s.mu.Lock()
	s.lastStart, s.lastDuration = begin, took
	s.mu.Unlock()

	s.log.Debug("sweep_done", zap.Int("endpoints", len(eps)), zap.Duration("took", took))
	if took > s.opts.Interval && s.opts.Interval > 0 {
		s.log.Warn("sweep_overran", zap.Duration("took", took), zap.Duration("interval", s.opts.Interval))
	}
}

func (s *Scheduler) checkOne(ctx context.Context, ep domain.Endpoint) {
	pctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	out := s.checker.Check(pctx, ep.URL)
	cancel()

	// Cut off by shutdown, not by the endpoint: nothing was observed.
	if ctx.Err() != nil {
		s.cancelled.Add(1)
		s.log.Info("probe_cancelled", zap.String("endpoint_id", string(ep.ID)), zap.String("url", ep.URL))
		return
	}

	status := out.Status()
	checkedAt := s.now().UTC()

	if err := s.recorder.Record(ctx, ep.ID, status, checkedAt); err != nil {
		s.failed.Add(1)
		s.log.Warn("record_failed",
			zap.String("endpoint_id", string(ep.ID)),
			zap.String("url", ep.URL),
			zap.Error(err),
		)
	} else {
		s.written.Add(1)
		s.log.Debug("endpoint_checked",
			zap.String("endpoint_id", string(ep.ID)),
			zap.String("url", ep.URL),
			zap.String("status", string(status)),
			zap.Int("http_status", out.StatusCode),
			zap.Float64("latency_ms", out.LatencyMS),
			zap.String("reason", out.Message),
		)
	}

	if s.publisher == nil || status != domain.StatusDown {
		return
	}
	// publish failures are logged by the publisher; the opportunity is lost
	if err := s.publisher.PublishIfDown(ctx, ep, status); err == nil {
		s.published.Add(1)
	}
}

// Stats is a point-in-time view for the ops surface.
type Stats struct {
	Running         bool      `json:"running"`
	SweepsStarted   int64     `json:"sweeps_started"`
	SweepsSkipped   int64     `json:"sweeps_skipped"`
	SweepsCompleted int64     `json:"sweeps_completed"`
	LastSweepStart  time.Time `json:"last_sweep_start"`
	LastSweepMS     int64     `json:"last_sweep_ms"`
	RecordsWritten  int64     `json:"records_written"`
	RecordFailures  int64     `json:"record_failures"`
	AlertsPublished int64     `json:"alerts_published"`
	ProbesCancelled int64     `json:"probes_cancelled"`
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	start, took := s.lastStart, s.lastDuration
	s.mu.Unlock()
	return Stats{
		Running:         s.running.Load(),
		SweepsStarted:   s.started.Load(),
		SweepsSkipped:   s.skipped.Load(),
		SweepsCompleted: s.completed.Load(),
		LastSweepStart:  start,
		LastSweepMS:     took.Milliseconds(),
		RecordsWritten:  s.written.Load(),
		RecordFailures:  s.failed.Load(),
		AlertsPublished: s.published.Load(),
		ProbesCancelled: s.cancelled.Load(),
	}
}
