package journal

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/saaga0h/jeeves-autolight/pkg/postgres"
)

const createSwitchLogTable = `
CREATE TABLE IF NOT EXISTS autolight_switch_log (
    id          UUID PRIMARY KEY,
    autolight   TEXT NOT NULL,
    action      TEXT NOT NULL,
    cause       TEXT NOT NULL,
    lights      TEXT[] NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_autolight_switch_log_name_time
    ON autolight_switch_log (autolight, recorded_at DESC);
`

const insertSwitchLog = `
INSERT INTO autolight_switch_log (id, autolight, action, cause, lights, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

// PostgresSink appends entries to the autolight_switch_log table
type PostgresSink struct {
	client postgres.Client
}

// NewPostgresSink creates a sink on a connected client
func NewPostgresSink(client postgres.Client) *PostgresSink {
	return &PostgresSink{client: client}
}

// EnsureSchema creates the table and its index if missing
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.Exec(ctx, createSwitchLogTable); err != nil {
		return fmt.Errorf("failed to create switch log table: %w", err)
	}
	return nil
}

// Append implements Sink
func (s *PostgresSink) Append(ctx context.Context, entry Entry) error {
	_, err := s.client.Exec(ctx, insertSwitchLog,
		entry.ID,
		entry.AutoLight,
		entry.Action,
		entry.Cause,
		pq.Array(entry.Lights),
		entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert switch log: %w", err)
	}
	return nil
}
