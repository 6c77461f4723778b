package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomoyukiirino/spy-credit-spread/internal/market"

	_ "modernc.org/sqlite"
)

const createTicksTable = `
CREATE TABLE IF NOT EXISTS ticks (
    id    TEXT PRIMARY KEY,
    topic TEXT NOT NULL,
    time  DATETIME NOT NULL,
    data  BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ticks_topic_time ON ticks (topic, time DESC)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createTicksTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ticks table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveTick inserts one tick record.
func (s *SQLiteStore) SaveTick(ctx context.Context, t market.Tick) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ticks (id, topic, time, data) VALUES (?, ?, ?, ?)`,
		t.ID, t.Topic, t.Time, []byte(t.Data),
	)
	if err != nil {
		return fmt.Errorf("insert tick: %w", err)
	}
	return nil
}

// RecentTicks returns up to limit ticks for a topic, newest first.
func (s *SQLiteStore) RecentTicks(ctx context.Context, topic string, limit int) ([]market.Tick, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, time, data FROM ticks
		WHERE topic = ? ORDER BY time DESC, id DESC LIMIT ?`,
		topic, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []market.Tick
	for rows.Next() {
		var t market.Tick
		var data []byte
		if err := rows.Scan(&t.ID, &t.Topic, &t.Time, &data); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		t.Data = data
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	if len(ticks) == 0 {
		return nil, ErrNotFound
	}
	return ticks, nil
}

// TickStats aggregates counts over the full tick history.
func (s *SQLiteStore) TickStats(ctx context.Context) (*TickStats, error) {
	stats := &TickStats{CountByTopic: make(map[string]int)}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT topic, COUNT(*) FROM ticks GROUP BY topic")
	if err != nil {
		return nil, fmt.Errorf("count by topic: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var topic string
		var count int
		if err := rows.Scan(&topic, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		stats.CountByTopic[topic] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}

	if stats.Total > 0 {
		// Read the bounds through the decltyped time column; aggregates like
		// MIN(time) lose the DATETIME decltype and come back as raw strings.
		var first, last time.Time
		if err := tx.QueryRowContext(ctx,
			"SELECT time FROM ticks ORDER BY time ASC, id ASC LIMIT 1",
		).Scan(&first); err != nil {
			return nil, fmt.Errorf("first tick time: %w", err)
		}
		if err := tx.QueryRowContext(ctx,
			"SELECT time FROM ticks ORDER BY time DESC, id DESC LIMIT 1",
		).Scan(&last); err != nil {
			return nil, fmt.Errorf("last tick time: %w", err)
		}
		stats.FirstAt = &first
		stats.LastAt = &last
	}

	return stats, nil
}
