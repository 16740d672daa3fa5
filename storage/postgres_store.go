package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"car-offers-bot/models"
)

// PostgresStore keeps the sent-offers log in PostgreSQL instead of a CSV file.
type PostgresStore struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore opens a connection to PostgreSQL, runs the schema migration,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db, now: time.Now}
	if err := ps.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

// WithClock replaces the clock used to compute today's partition.
func (ps *PostgresStore) WithClock(now func() time.Time) *PostgresStore {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.now = now
	return ps
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS sent_offers (
			id               SERIAL PRIMARY KEY,
			day              DATE        NOT NULL,
			title            TEXT        NOT NULL,
			price            TEXT        NOT NULL,
			url              TEXT        NOT NULL DEFAULT '',
			source           TEXT        NOT NULL DEFAULT '',
			publication_time TEXT        NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_sent_offers_day ON sent_offers(day);
	`)
	return err
}

func (ps *PostgresStore) Load(ctx context.Context, day string) (map[models.Key]struct{}, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	rows, err := ps.db.QueryContext(ctx,
		`SELECT title, price FROM sent_offers WHERE day = $1::date ORDER BY id`, day)
	if err != nil {
		return nil, fmt.Errorf("postgres: load %s: %w", day, err)
	}
	defer rows.Close()

	keys := make(map[models.Key]struct{})
	for rows.Next() {
		var k models.Key
		if err := rows.Scan(&k.Title, &k.Price); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

// Append inserts all listings in one transaction.
func (ps *PostgresStore) Append(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	day := models.DayOf(ps.now())
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sent_offers (day, title, price, url, source, publication_time)
		VALUES ($1::date, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range listings {
		r := models.NewDedupRecord(day, l)
		if _, err := stmt.ExecContext(ctx, r.Day, r.Title, r.Price, r.URL, r.Source, r.PublicationTime); err != nil {
			return fmt.Errorf("postgres: insert %q: %w", r.Title, err)
		}
	}
	return tx.Commit()
}

func (ps *PostgresStore) Evict(ctx context.Context, daysToKeep int) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	cutoff := models.CutoffDay(ps.now(), daysToKeep)
	if _, err := ps.db.ExecContext(ctx, `DELETE FROM sent_offers WHERE day < $1::date`, cutoff); err != nil {
		return fmt.Errorf("postgres: evict before %s: %w", cutoff, err)
	}
	return nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
