package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

// Store keeps endpoints, history and receipts in process memory. It is used
// when DATABASE_URL is empty and by tests.
type Store struct {
	mu        sync.RWMutex
	endpoints []domain.Endpoint
	checks    map[domain.EndpointID][]domain.CheckRecord
	receipts  map[domain.EndpointID][]domain.AlertReceipt
	failNext  error
}

var _ repo.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		checks:   make(map[domain.EndpointID][]domain.CheckRecord),
		receipts: make(map[domain.EndpointID][]domain.AlertReceipt),
	}
}

// AddEndpoint registers an endpoint. The monitor never calls it; it stands in
// for the external registry in dev mode and tests.
func (m *Store) AddEndpoint(ep domain.Endpoint) error {
	if ep.ID == "" || ep.URL == "" {
		return errors.New("endpoint needs id and url")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.endpoints {
		if cur.ID == ep.ID {
			m.endpoints[i] = ep
			return nil
		}
	}
	m.endpoints = append(m.endpoints, ep)
	return nil
}

// FailNext makes the next store call return err (once).
func (m *Store) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

func (m *Store) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *Store) ListEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	out := make([]domain.Endpoint, len(m.endpoints))
	copy(out, m.endpoints)
	return out, nil
}

func (m *Store) AppendCheck(ctx context.Context, r domain.CheckRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if r.CheckedAt.IsZero() {
		r.CheckedAt = repo.Now()
	}
	m.checks[r.EndpointID] = append(m.checks[r.EndpointID], r)
	return nil
}

func (m *Store) RecentChecks(ctx context.Context, id domain.EndpointID, limit int) ([]domain.CheckRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	all := m.checks[id]
	out := make([]domain.CheckRecord, len(all))
	copy(out, all)
	// stable keeps insertion order for equal timestamps, then reverse
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedAt.Before(out[j].CheckedAt) })
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) AppendAlertReceipt(ctx context.Context, r domain.AlertReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if r.SentAt.IsZero() {
		r.SentAt = repo.Now()
	}
	m.receipts[r.EndpointID] = append(m.receipts[r.EndpointID], r)
	return nil
}

func (m *Store) LatestReceipt(ctx context.Context, id domain.EndpointID) (*domain.AlertReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	var latest *domain.AlertReceipt
	for i := range m.receipts[id] {
		r := m.receipts[id][i]
		if latest == nil || !r.SentAt.Before(latest.SentAt) {
			latest = &r
		}
	}
	return latest, nil
}

// Receipts returns a copy of all receipts for id, oldest first.
func (m *Store) Receipts(id domain.EndpointID) []domain.AlertReceipt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.AlertReceipt(nil), m.receipts[id]...)
}

// CheckCount returns how many records were appended for id.
func (m *Store) CheckCount(id domain.EndpointID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checks[id])
}

func (m *Store) Close() {}
