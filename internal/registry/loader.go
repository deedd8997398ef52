// Package registry keeps the in-memory snapshot of monitored endpoints.
package registry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

type snapshot struct {
	endpoints []domain.Endpoint
	loadedAt  time.Time
}

// Loader owns the endpoint snapshot used by sweeps. A snapshot is replaced
// as a whole, so a sweep never sees a half-updated list.
type Loader struct {
	log     *zap.Logger
	store   repo.EndpointStore
	refresh time.Duration
	now     func() time.Time

	cur atomic.Pointer[snapshot]
}

// NewLoader returns a Loader; refresh 0 means every Due call reports true.
func NewLoader(log *zap.Logger, store repo.EndpointStore, refresh time.Duration) *Loader {
	return &Loader{log: log, store: store, refresh: refresh, now: time.Now}
}

// Refresh loads the endpoint list. On failure the previous snapshot is kept
// and an ErrRegistryUnavailable error is returned.
func (l *Loader) Refresh(ctx context.Context) error {
	eps, err := l.store.ListEndpoints(ctx)
	if err != nil {
		prev := len(l.Snapshot())
		l.log.Warn("registry_load_failed", zap.Int("kept_endpoints", prev), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}
	out := make([]domain.Endpoint, 0, len(eps))
	for _, ep := range eps {
		if ep.ID == "" || ep.URL == "" {
			l.log.Warn("registry_skip_endpoint", zap.String("endpoint_id", string(ep.ID)), zap.String("url", ep.URL))
			continue
		}
		out = append(out, ep)
	}
	l.cur.Store(&snapshot{endpoints: out, loadedAt: l.now()})
	l.log.Debug("registry_loaded", zap.Int("endpoints", len(out)))
	return nil
}

// Due reports whether the snapshot should be reloaded before the next sweep.
func (l *Loader) Due() bool {
	s := l.cur.Load()
	if s == nil || l.refresh <= 0 {
		return true
	}
	return l.now().Sub(s.loadedAt) >= l.refresh
}

// Snapshot returns the current endpoint list. Callers must not modify it.
func (l *Loader) Snapshot() []domain.Endpoint {
	if s := l.cur.Load(); s != nil {
		return s.endpoints
	}
	return nil
}

// LoadedAt is the time of the last successful load, zero if none.
func (l *Loader) LoadedAt() time.Time {
	if s := l.cur.Load(); s != nil {
		return s.loadedAt
	}
	return time.Time{}
}
