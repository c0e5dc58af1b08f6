package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Transfer is the persisted outcome of a stream transfer.
type Transfer struct {
	ID          string
	Identifier  string // ACL attribute or room name of the peer
	Name        string
	Size        int64
	Transferred int64
	StreamType  string
	Status      string
	Reason      string
	CreatedAt   time.Time
}

// TransferStore handles transfer persistence.
type TransferStore interface {
	// SaveTransfer inserts a transfer, replacing any record with the same ID.
	SaveTransfer(ctx context.Context, t *Transfer) error

	// GetTransfer retrieves a transfer by ID.
	GetTransfer(ctx context.Context, id string) (*Transfer, error)

	// ListTransfers returns the newest transfers for a peer, at most limit.
	ListTransfers(ctx context.Context, identifier string, limit int) ([]*Transfer, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	TransferStore

	// Close closes the underlying database connection.
	Close() error
}
