// Package outbox persists ledger events in the same transaction as the state
// change that produced them, and hands committed entries to the relay.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"aidtrace/internal/events"
	txcontext "aidtrace/pkg/platform/tx"
)

// Record is one outbox row.
type Record struct {
	ID          uuid.UUID
	Seq         int64
	EventType   events.Type
	AggregateID string
	Payload     []byte
	CreatedAt   time.Time
}

// Store implements the transactional outbox on Postgres.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes events to the outbox, joining the transaction carried by ctx.
func (s *Store) Append(ctx context.Context, evts []events.Event) error {
	const query = `
		INSERT INTO outbox (id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	exec := s.execer(ctx)
	for _, e := range evts {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		if _, err := exec.ExecContext(ctx, query, e.ID, string(e.Type), e.Aggregate(), payload, e.OccurredAt); err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}
	return nil
}

// Process locks up to limit unpublished entries in sequence order, passes them
// to fn and marks them published if fn succeeds. Entries locked by another
// relay are skipped.
func (s *Store) Process(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, seq, event_type, aggregate_id, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("query outbox: %w", err)
	}
	var records []Record
	for rows.Next() {
		var r Record
		var eventType string
		if err := rows.Scan(&r.ID, &r.Seq, &eventType, &r.AggregateID, &r.Payload, &r.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox entry: %w", err)
		}
		r.EventType = events.Type(eventType)
		records = append(records, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := fn(ctx, records); err != nil {
		return 0, err
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID.String()
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET published_at = now() WHERE id = ANY($1::uuid[])`,
		pq.Array(ids),
	); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return len(records), nil
}

// Pending counts unpublished entries.
func (s *Store) Pending(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM outbox WHERE published_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}
