package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

// Receipts are append-only; pruning old rows is left to the database owner.

func (s *Store) AppendAlertReceipt(ctx context.Context, r domain.AlertReceipt) error {
	if r.SentAt.IsZero() {
		r.SentAt = repo.Now()
	}
	const q = `
		INSERT INTO alert_receipts (id, url_id, owner_email, status, sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, q, uuid.New(), string(r.EndpointID), r.OwnerEmail, string(r.Status), r.SentAt); err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (s *Store) LatestReceipt(ctx context.Context, id domain.EndpointID) (*domain.AlertReceipt, error) {
	defer s.observeRead("latest_receipt", time.Now(), zap.String("endpoint_id", string(id)))
	const q = `
		SELECT owner_email, status, sent_at
		  FROM alert_receipts
		 WHERE url_id = $1
		 ORDER BY sent_at DESC, seq DESC
		 LIMIT 1
	`
	r := domain.AlertReceipt{EndpointID: id}
	var (
		status string
		sentAt time.Time
	)
	err := s.pool.QueryRow(ctx, q, string(id)).Scan(&r.OwnerEmail, &status, &sentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest receipt: %w", err)
	}
	r.Status = domain.Status(status)
	r.SentAt = sentAt
	return &r, nil
}
