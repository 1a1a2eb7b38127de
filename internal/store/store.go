// Package store is the record store for the lottery ledger, backed by
// SQLite. All mutations go through WithTx so that the eligibility math
// in the services layer runs atomically with the rows it depends on.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/logger"
	"github.com/mattn/go-sqlite3"
)

// ErrStoreUnavailable is returned after bounded retries against a busy
// or unreachable database have been exhausted. Callers surface it to
// the user instead of silently losing a purchase intent.
var ErrStoreUnavailable = errors.New("record store unavailable")

const (
	txAttempts   = 3
	retryBackoff = 50 * time.Millisecond
)

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. WAL mode and a busy timeout guard against writer
// contention; the connection pool is capped at 1 because SQLite has a
// single writer anyway.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.setupSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) setupSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS participants (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			referrer_id TEXT,
			ticket_count INTEGER NOT NULL DEFAULT 0,
			payout_address TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS ticket_purchases (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (owner_id) REFERENCES participants(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_owner_status
			ON ticket_purchases(owner_id, status)`,
		`CREATE TABLE IF NOT EXISTS commissions (
			id TEXT PRIMARY KEY,
			beneficiary_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (beneficiary_id, source_id)
		)`,
		`CREATE TABLE IF NOT EXISTS draw_results (
			draw_date TEXT PRIMARY KEY,
			winner_id TEXT NOT NULL,
			winner_name TEXT NOT NULL,
			total_tickets INTEGER NOT NULL,
			payout TEXT NOT NULL,
			drawn_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// WithTx runs fn inside an immediate transaction. Transient busy/locked
// failures are retried a bounded number of times with backoff; once
// exhausted the error wraps ErrStoreUnavailable. Errors from fn itself
// abort immediately and roll back.
func (s *Store) WithTx(fn func(*Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err := s.runTx(fn)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
		logger.Infof("Transient store error (attempt %d/%d): %v", attempt, txAttempts, err)
		time.Sleep(time.Duration(attempt) * retryBackoff)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}

func (s *Store) runTx(fn func(*Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
