package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirebot/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS transfers (
	id           TEXT PRIMARY KEY,
	identifier   TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	size         INTEGER NOT NULL DEFAULT -1,
	transferred  INTEGER NOT NULL DEFAULT 0,
	stream_type  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transfers_identifier ON transfers(identifier, created_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema or seed rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate creates the tables the store needs.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveTransfer inserts a transfer, replacing any record with the same ID.
func (s *SQLiteStore) SaveTransfer(ctx context.Context, t *store.Transfer) error {
	query := `
		INSERT INTO transfers (id, identifier, name, size, transferred, stream_type, status, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			transferred = excluded.transferred,
			status      = excluded.status,
			reason      = excluded.reason
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Identifier, t.Name, t.Size, t.Transferred, t.StreamType, t.Status, t.Reason)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetTransfer retrieves a transfer by ID.
func (s *SQLiteStore) GetTransfer(ctx context.Context, id string) (*store.Transfer, error) {
	query := `
		SELECT id, identifier, name, size, transferred, stream_type, status, reason, created_at
		FROM transfers
		WHERE id = ?
	`
	t, err := scanTransfer(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transfer %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query transfer: %w", err)
	}
	return t, nil
}

// ListTransfers returns the newest transfers for a peer, at most limit.
func (s *SQLiteStore) ListTransfers(ctx context.Context, identifier string, limit int) ([]*store.Transfer, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, identifier, name, size, transferred, stream_type, status, reason, created_at
		FROM transfers
		WHERE identifier = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*store.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return transfers, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row scanner) (*store.Transfer, error) {
	var t store.Transfer
	err := row.Scan(
		&t.ID,
		&t.Identifier,
		&t.Name,
		&t.Size,
		&t.Transferred,
		&t.StreamType,
		&t.Status,
		&t.Reason,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var _ store.Store = (*SQLiteStore)(nil)
