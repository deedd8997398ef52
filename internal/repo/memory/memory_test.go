package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

func TestMemoryStore_AddAndListEndpoints(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.AddEndpoint(domain.Endpoint{ID: "E1", URL: "https://example.com", OwnerEmail: "o@example.com"}); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}
	// same id replaces
	if err := s.AddEndpoint(domain.Endpoint{ID: "E1", URL: "https://example.org", OwnerEmail: "o@example.com"}); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}
	if err := s.AddEndpoint(domain.Endpoint{URL: "https://no-id"}); err == nil {
		t.Fatalf("expected error for endpoint without id")
	}

	all, err := s.ListEndpoints(ctx)
	if err != nil {
		t.Fatalf("ListEndpoints: %v", err)
	}
	if len(all) != 1 || all[0].URL != "https://example.org" {
		t.Fatalf("unexpected endpoints: %+v", all)
	}
}

func TestMemoryStore_RecentChecksNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		st := domain.StatusDown
		if i == 4 {
			st = domain.StatusUp
		}
		if err := s.AppendCheck(ctx, domain.CheckRecord{EndpointID: "E1", Status: st, CheckedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("AppendCheck: %v", err)
		}
	}
	_ = s.AppendCheck(ctx, domain.CheckRecord{EndpointID: "E2", Status: domain.StatusDown, CheckedAt: base})

	got, err := s.RecentChecks(ctx, "E1", 3)
	if err != nil {
		t.Fatalf("RecentChecks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 records, got %d", len(got))
	}
	if got[0].Status != domain.StatusUp || !got[0].CheckedAt.Equal(base.Add(4*time.Minute)) {
		t.Fatalf("newest record should come first: %+v", got[0])
	}
	if !got[2].CheckedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected third record: %+v", got[2])
	}
	if s.CheckCount("E2") != 1 {
		t.Fatalf("histories must be per endpoint")
	}
}

func TestMemoryStore_LatestReceipt(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

	r, err := s.LatestReceipt(ctx, "E1")
	if err != nil || r != nil {
		t.Fatalf("expected nil, got %+v err=%v", r, err)
	}
	_ = s.AppendAlertReceipt(ctx, domain.AlertReceipt{EndpointID: "E1", Status: domain.StatusDown, SentAt: base.Add(time.Hour)})
	_ = s.AppendAlertReceipt(ctx, domain.AlertReceipt{EndpointID: "E1", Status: domain.StatusDown, SentAt: base})

	r, err = s.LatestReceipt(ctx, "E1")
	if err != nil || r == nil {
		t.Fatalf("expected receipt, got %+v err=%v", r, err)
	}
	if !r.SentAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("want most recent by sent_at, got %v", r.SentAt)
	}
}

func TestMemoryStore_FailNextOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")
	s.FailNext(boom)
	if err := s.AppendCheck(ctx, domain.CheckRecord{EndpointID: "E1", Status: domain.StatusUp}); !errors.Is(err, boom) {
		t.Fatalf("want injected error, got %v", err)
	}
	if err := s.AppendCheck(ctx, domain.CheckRecord{EndpointID: "E1", Status: domain.StatusUp}); err != nil {
		t.Fatalf("failure must only apply once: %v", err)
	}
	if s.CheckCount("E1") != 1 {
		t.Fatalf("want 1 stored record, got %d", s.CheckCount("E1"))
	}
}
