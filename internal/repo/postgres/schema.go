package postgres

import (
	"context"
	"fmt"
)

// Schema holds the tables the monitor touches. users and urls are owned by the
// web service; they are declared here so a fresh database can run the monitor.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
  id    TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS urls (
  id         TEXT PRIMARY KEY,
  user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  url        TEXT NOT NULL,
  name       TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS check_records (
  id         UUID PRIMARY KEY,
  seq        BIGSERIAL,
  url_id     TEXT NOT NULL REFERENCES urls(id) ON DELETE CASCADE,
  status     TEXT NOT NULL CHECK (status IN ('UP', 'DOWN')),
  checked_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS alert_receipts (
  id          UUID PRIMARY KEY,
  seq         BIGSERIAL,
  url_id      TEXT NOT NULL REFERENCES urls(id) ON DELETE CASCADE,
  owner_email TEXT NOT NULL,
  status      TEXT NOT NULL,
  sent_at     TIMESTAMPTZ NOT NULL
);

-- tables created before seq existed
ALTER TABLE check_records  ADD COLUMN IF NOT EXISTS seq BIGSERIAL;
ALTER TABLE alert_receipts ADD COLUMN IF NOT EXISTS seq BIGSERIAL;

DROP INDEX IF EXISTS idx_check_records_url_time;
DROP INDEX IF EXISTS idx_alert_receipts_url_time;
CREATE INDEX IF NOT EXISTS idx_check_records_url_time_seq  ON check_records (url_id, checked_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS idx_alert_receipts_url_time_seq ON alert_receipts (url_id, sent_at DESC, seq DESC);
`

// EnsureSchema applies Schema; every statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
