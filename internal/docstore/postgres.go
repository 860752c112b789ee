package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx used by Postgres.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         BIGINT      NOT NULL,
	rev        BIGINT      NOT NULL DEFAULT 1,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS document_sequences (
	collection TEXT   PRIMARY KEY,
	value      BIGINT NOT NULL
);`

// Postgres stores every collection in one JSONB table keyed by (collection, id).
type Postgres struct {
	db DBTX
}

// NewPostgres wraps a pgx connection or pool.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the backing tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// NextID upserts the sequence row; the row lock taken by ON CONFLICT
// serializes concurrent allocations.
func (p *Postgres) NextID(ctx context.Context, collection string) (int64, error) {
	var id int64
	err := p.db.QueryRow(ctx, `
		INSERT INTO document_sequences (collection, value) VALUES ($1, 1)
		ON CONFLICT (collection) DO UPDATE SET value = document_sequences.value + 1
		RETURNING value`, collection).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("next id %s: %w", collection, err)
	}
	return id, nil
}

func (p *Postgres) Create(ctx context.Context, collection string, id int64, data []byte) (Record, error) {
	rec := Record{ID: id, Data: data}
	err := p.db.QueryRow(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		RETURNING rev, updated_at`, collection, id, data).Scan(&rec.Rev, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Record{}, ErrExists
		}
		return Record{}, fmt.Errorf("create %s/%d: %w", collection, id, err)
	}
	return rec, nil
}

func (p *Postgres) Update(ctx context.Context, collection string, id int64, data []byte, rev int64) (Record, error) {
	rec := Record{ID: id, Data: data}
	err := p.db.QueryRow(ctx, `
		UPDATE documents SET data = $3, rev = rev + 1, updated_at = now()
		WHERE collection = $1 AND id = $2 AND ($4::BIGINT <= 0 OR rev = $4)
		RETURNING rev, updated_at`, collection, id, data, rev).Scan(&rec.Rev, &rec.UpdatedAt)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("update %s/%d: %w", collection, id, err)
	}

	// No rows updated: either the record is gone or its revision moved on.
	var exists bool
	if err := p.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id).Scan(&exists); err != nil {
		return Record{}, fmt.Errorf("update %s/%d: check exists: %w", collection, id, err)
	}
	if !exists {
		return Record{}, ErrNotFound
	}
	return Record{}, ErrConflict
}

func (p *Postgres) List(ctx context.Context, collection string) ([]Record, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, rev, data, updated_at FROM documents
		WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			updatedAt time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.Rev, &rec.Data, &updatedAt); err != nil {
			return nil, fmt.Errorf("list %s: scan: %w", collection, err)
		}
		rec.UpdatedAt = updatedAt
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, collection string, id int64) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%d: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteAll(ctx context.Context, collection string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM documents WHERE collection = $1`, collection); err != nil {
		return fmt.Errorf("delete all %s: %w", collection, err)
	}
	return nil
}

// isUniqueViolation checks for pg error code 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
