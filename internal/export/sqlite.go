package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kylin1020/spinneret/internal/config"
	"github.com/kylin1020/spinneret/internal/model"
)

// databaseFile is the SQLite file name created inside the database
// directory.
const databaseFile = "items.db"

// DefaultDatabaseDir returns the default directory for the item
// database, under the XDG data home.
func DefaultDatabaseDir() string {
	return config.XDGDataDir()
}

// SQLite exports items into an items table, one row per item with the
// fields serialized as JSON. Inserts accumulate in a transaction that
// Flush commits, so a crawl's write load is batched.
type SQLite struct {
	mu     sync.Mutex
	db     *sql.DB
	tx     *sql.Tx
	spider string
	closed bool
}

// OpenSQLite opens or creates the item database in dbDir and returns an
// exporter tagging rows with the given spider name. The directory is
// created when missing.
func OpenSQLite(dbDir, spider string) (*SQLite, error) {
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := filepath.Join(dbDir, databaseFile) + "?mode=rwc"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports a single writer; more connections only add lock
	// contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		spider TEXT NOT NULL,
		exported_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		fields TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_spider ON items(spider);
	CREATE INDEX IF NOT EXISTS idx_items_exported_at ON items(exported_at);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db, spider: spider}, nil
}

// Export inserts one item into the open transaction, starting one when
// none is open.
func (s *SQLite) Export(ctx context.Context, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	payload, err := model.MarshalItem(item)
	if err != nil {
		return fmt.Errorf("serialize item: %w", err)
	}

	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		s.tx = tx
	}

	query := `INSERT INTO items (spider, fields) VALUES (?, ?)`
	if _, err := s.tx.ExecContext(ctx, query, s.spider, string(payload)); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// Flush commits the open transaction.
func (s *SQLite) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.commitLocked()
}

// Close commits pending inserts and closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.commitLocked()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// commitLocked commits the open transaction. Callers hold s.mu.
func (s *SQLite) commitLocked() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sqlReader is the query surface shared by *sql.DB and *sql.Tx.
type sqlReader interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// readerLocked returns the open transaction when one exists. The pool
// is capped at one connection, so reading through the database while a
// transaction holds it would block. Callers hold s.mu.
func (s *SQLite) readerLocked() sqlReader {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Count returns the number of rows for this exporter's spider,
// including inserts pending in the open transaction.
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	var n int64
	query := `SELECT COUNT(*) FROM items WHERE spider = ?`
	if err := s.readerLocked().QueryRowContext(ctx, query, s.spider).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// Items returns the items for this exporter's spider in insertion
// order, including inserts pending in the open transaction.
func (s *SQLite) Items(ctx context.Context) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	query := `SELECT fields FROM items WHERE spider = ? ORDER BY id`
	rows, err := s.readerLocked().QueryContext(ctx, query, s.spider)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item, err := model.UnmarshalItem([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
