package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// defaultSlowQuery is the read latency above which a warning is logged.
const defaultSlowQuery = 500 * time.Millisecond

type Store struct {
	pool      *pgxpool.Pool
	log       *zap.Logger
	slowQuery time.Duration
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log, slowQuery: defaultSlowQuery}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// observeRead warns when a read ran past slowQuery. Reads sit on the sweep and
// alert hot paths, so a slow one shows up as late probes and late alerts.
func (s *Store) observeRead(op string, start time.Time, fields ...zap.Field) {
	took := time.Since(start)
	if took < s.slowQuery {
		return
	}
	s.log.Warn("slow_query", append([]zap.Field{
		zap.String("op", op),
		zap.Duration("took", took),
		zap.Duration("threshold", s.slowQuery),
	}, fields...)...)
}

// ---- EndpointStore ----

// ListEndpoints joins each monitored url with the email of the user owning it.
func (s *Store) ListEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	defer s.observeRead("list_endpoints", time.Now())
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.url, COALESCE(u.name, ''), usr.email
		   FROM urls u
		   JOIN users usr ON usr.id = u.user_id
		  ORDER BY u.created_at, u.id`)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []domain.Endpoint
	for rows.Next() {
		var (
			id    string
			url   string
			name  string
			email string
		)
		if err := rows.Scan(&id, &url, &name, &email); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		out = append(out, domain.Endpoint{
			ID:         domain.EndpointID(id),
			URL:        url,
			Name:       name,
			OwnerEmail: email,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	return out, nil
}

// ---- CheckStore ----

func (s *Store) AppendCheck(ctx context.Context, r domain.CheckRecord) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = repo.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO check_records (id, url_id, status, checked_at)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New(), string(r.EndpointID), string(r.Status), r.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

// RecentChecks returns newest first. seq breaks ties between rows sharing a
// checked_at, so equal timestamps still come back in insertion order.
func (s *Store) RecentChecks(ctx context.Context, id domain.EndpointID, limit int) ([]domain.CheckRecord, error) {
	defer s.observeRead("recent_checks", time.Now(), zap.String("endpoint_id", string(id)), zap.Int("limit", limit))
	rows, err := s.pool.Query(ctx,
		`SELECT status, checked_at
		   FROM check_records
		  WHERE url_id = $1
		  ORDER BY checked_at DESC, seq DESC
		  LIMIT $2`, string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CheckRecord, 0, limit)
	for rows.Next() {
		var (
			status    string
			checkedAt time.Time
		)
		if err := rows.Scan(&status, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		out = append(out, domain.CheckRecord{
			EndpointID: id,
			Status:     domain.Status(status),
			CheckedAt:  checkedAt,
		})
	}
	return out, rows.Err()
}
