// Package docstore is the persistence collaborator: a collection-oriented
// record store. It offers no server-side filtering; callers list a whole
// collection and filter client-side.
package docstore

import (
	"context"
	"errors"
	"time"
)

// Errors returned by Store implementations.
var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
	ErrConflict = errors.New("record revision changed")
)

// Record is one stored document. Rev starts at 1 and increases on every update.
type Record struct {
	ID        int64
	Rev       int64
	Data      []byte
	UpdatedAt time.Time
}

// Store is satisfied by *Memory, *Postgres and *Redis.
type Store interface {
	// NextID allocates the next id of a collection. Allocation is serialized
	// by the store so ids are unique and strictly increasing across terminals.
	NextID(ctx context.Context, collection string) (int64, error)

	// Create inserts a new record with Rev 1. Returns ErrExists on id reuse.
	Create(ctx context.Context, collection string, id int64, data []byte) (Record, error)

	// Update replaces a record. When rev > 0 the write only succeeds if the
	// stored revision still equals rev, otherwise ErrConflict is returned.
	// rev <= 0 writes unconditionally (last committed wins).
	Update(ctx context.Context, collection string, id int64, data []byte, rev int64) (Record, error)

	// List returns every record of a collection ordered by id.
	List(ctx context.Context, collection string) ([]Record, error)

	// Delete removes one record. Used by menu management only.
	Delete(ctx context.Context, collection string, id int64) error

	// DeleteAll removes every record of a collection. The id sequence is kept
	// so ids are never reused.
	DeleteAll(ctx context.Context, collection string) error
}
