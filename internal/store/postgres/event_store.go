package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

var _ domain.EventStore = (*EventStore)(nil)

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append stores ev. Appending the same event id twice is a no-op.
func (s *EventStore) Append(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("postgres: marshal event %s: %w", ev.ID, err)
	}

	const query = `
		INSERT INTO market_events (id, kind, block, who, listing_id, payload, created_at)
		VALUES ($1::text::uuid, $2, $3::text::numeric, $4, $5::text::numeric, $6, $7)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.pool.Exec(ctx, query,
		ev.ID, string(ev.Kind), numArg(uint64(ev.Block)), accountArg(ev.Who),
		numArg(uint64(ev.ListingID)), payload, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", ev.ID, err)
	}
	return nil
}

// List returns events newest first with pagination and optional time
// filtering.
func (s *EventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	query := `SELECT payload FROM market_events WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC, block DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	return scanEvents(rows)
}

// ListBefore returns every event created before the cutoff, oldest first.
func (s *EventStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM market_events WHERE created_at < $1 ORDER BY created_at ASC, block ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events before %s: %w", before.Format(time.RFC3339), err)
	}
	return scanEvents(rows)
}

// DeleteBefore removes events created before the cutoff and reports how
// many rows went.
func (s *EventStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM market_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete events before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func scanEvents(rows pgx.Rows) ([]domain.Event, error) {
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		var ev domain.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}
