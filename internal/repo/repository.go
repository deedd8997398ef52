package repo

import (
	"context"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Ports. The monitor only reads endpoints and appends history
// and receipts. Endpoint CRUD lives elsewhere.
type EndpointStore interface {
	ListEndpoints(ctx context.Context) ([]domain.Endpoint, error)
}

type CheckStore interface {
	AppendCheck(ctx context.Context, r domain.CheckRecord) error
	// RecentChecks returns at most limit records, newest first.
	RecentChecks(ctx context.Context, id domain.EndpointID, limit int) ([]domain.CheckRecord, error)
}

type ReceiptStore interface {
	AppendAlertReceipt(ctx context.Context, r domain.AlertReceipt) error
	// LatestReceipt returns nil, nil when no receipt exists yet.
	LatestReceipt(ctx context.Context, id domain.EndpointID) (*domain.AlertReceipt, error)
}

// Store is everything the monitor process needs from persistence.
type Store interface {
	EndpointStore
	CheckStore
	ReceiptStore
	Close()
}

// Now is the clock used by stores that stamp missing timestamps.
var Now = func() time.Time { return time.Now().UTC() }
