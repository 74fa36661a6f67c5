package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
)

// SQLiteStore persists events and clocks to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store.
// The path should be a file path (e.g., "./events.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			aggregate_id TEXT NOT NULL,
			lamport_clock INTEGER NOT NULL,
			data BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_aggregate_id
		ON events(aggregate_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events index: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS clocks (
			node_id TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create clocks table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements EventStore. Duplicate event IDs are ignored so a
// redelivered event never errors and never produces a second row.
func (s *SQLiteStore) Append(ctx context.Context, evt event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if evt.ID() == "" || evt.AggregateID() == "" {
		return ErrInvalidEvent
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (event_id, aggregate_id, lamport_clock, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, evt.ID(), evt.AggregateID(), evt.LamportClock(), data)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Load implements EventStore. Rows come back in whatever order SQLite
// stores them; the canonical total order is imposed after decoding.
func (s *SQLiteStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM events WHERE aggregate_id = ?
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var evt event.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return event.Canonicalize(events), nil
}

// ListAggregates implements EventStore.
func (s *SQLiteStore) ListAggregates(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT aggregate_id FROM events ORDER BY aggregate_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan aggregate id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}
	return ids, nil
}

// LoadClock implements ClockStore.
func (s *SQLiteStore) LoadClock(ctx context.Context, nodeID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var value uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM clocks WHERE node_id = ?
	`, nodeID).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load clock: %w", err)
	}
	return value, nil
}

// SaveClock implements ClockStore.
func (s *SQLiteStore) SaveClock(ctx context.Context, nodeID string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clocks (node_id, value) VALUES (?, ?)
		ON CONFLICT(node_id) DO UPDATE SET value = excluded.value
	`, nodeID, value)
	if err != nil {
		return fmt.Errorf("save clock: %w", err)
	}
	return nil
}

// Close implements EventStore.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
