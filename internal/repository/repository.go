// Package repository implements the durable store over sqlx. The same
// statements run on sqlite3 (default) and postgres; placeholders are rebound
// per driver.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a row is absent or not owned by the caller.
// Handlers map it to a generic 404 so lookups never leak existence.
var ErrNotFound = errors.New("record not found")

// Store is the sqlx-backed repository.
type Store struct {
	db *sqlx.DB
}

// New opens the database for the given driver ("sqlite3" or "postgres").
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	switch driver {
	case "sqlite3":
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// One writer at a time keeps the activation transaction simple.
		db.SetMaxOpenConns(1)
	case "postgres":
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunMigrations executes the given migration SQL.
func (s *Store) RunMigrations(migrationSQL string) error {
	_, err := s.db.Exec(migrationSQL)
	return err
}

// exclusiveFlag sets flagCol true on the owner's row identified by keyCol=key
// and false on all the owner's sibling rows, in one transaction. Returns
// ErrNotFound before touching any row when the target does not exist or
// belongs to someone else. table, keyCol and flagCol are compile-time
// constants at every call site, never user input.
func (s *Store) exclusiveFlag(ctx context.Context, table, keyCol, flagCol, userID, key string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var id string
	q := tx.Rebind(fmt.Sprintf(`SELECT id FROM %s WHERE user_id = ? AND %s = ?`, table, keyCol))
	if err := tx.GetContext(ctx, &id, q, userID, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	now := time.Now()
	q = tx.Rebind(fmt.Sprintf(`UPDATE %s SET %s = ?, updated_at = ? WHERE user_id = ?`, table, flagCol))
	if _, err := tx.ExecContext(ctx, q, false, now, userID); err != nil {
		return err
	}
	q = tx.Rebind(fmt.Sprintf(`UPDATE %s SET %s = ?, updated_at = ? WHERE id = ?`, table, flagCol))
	if _, err := tx.ExecContext(ctx, q, true, now, id); err != nil {
		return err
	}

	return tx.Commit()
}
