// Package pgindex stores the snapshot index in PostgreSQL. Records are kept
// as JSONB documents keyed by (namespace, short_name, version), which gives
// the same append-only semantics as the filesystem layout plus a uniqueness
// constraint enforced by the database.
package pgindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datakeep/harvester/internal/catalog"
)

const uniqueViolation = "23505"

type Index struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) (*Index, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgindex: pool is nil")
	}
	return &Index{pool: pool}, nil
}

// Connect opens a pool against databaseURL and runs pending migrations.
func Connect(ctx context.Context, databaseURL string) (*Index, error) {
	if err := MigrateUp(databaseURL, ""); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgindex: connect: %w", err)
	}
	return New(pool)
}

func (ix *Index) Close() {
	ix.pool.Close()
}

// ListRecords returns the namespace partition ordered by (version,
// short_name). Rows whose stored document no longer decodes are skipped and
// counted.
func (ix *Index) ListRecords(ctx context.Context, namespace string) ([]catalog.Record, int, error) {
	const query = `
SELECT record
FROM snapshot_records
WHERE namespace = $1
ORDER BY version, short_name`

	rows, err := ix.pool.Query(ctx, query, namespace)
	if err != nil {
		return nil, 0, fmt.Errorf("pgindex: list namespace %q: %w", namespace, err)
	}
	defer rows.Close()

	var records []catalog.Record
	skipped := 0
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, fmt.Errorf("pgindex: scan row: %w", err)
		}
		var rec catalog.Record
		if err := json.Unmarshal(doc, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgindex: list namespace %q: %w", namespace, err)
	}
	return records, skipped, nil
}

// WriteRecord inserts one record. A unique violation on the triple maps to
// *catalog.DuplicateVersionError; the existing row is left untouched.
func (ix *Index) WriteRecord(ctx context.Context, rec catalog.Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("pgindex: marshal %s: %w", rec.IndexKey(), err)
	}

	const query = `
INSERT INTO snapshot_records (namespace, short_name, version, record)
VALUES ($1, $2, $3, $4)`
	_, err = ix.pool.Exec(ctx, query, rec.Namespace, rec.ShortName, rec.Version, doc)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &catalog.DuplicateVersionError{Key: rec.IndexKey()}
		}
		return fmt.Errorf("pgindex: insert %s: %w", rec.IndexKey(), err)
	}
	return nil
}

func (ix *Index) HasRecord(ctx context.Context, key catalog.IndexKey) (bool, error) {
	const query = `
SELECT 1 FROM snapshot_records
WHERE namespace = $1 AND short_name = $2 AND version = $3`

	var one int
	err := ix.pool.QueryRow(ctx, query, key.Namespace, key.ShortName, key.Version).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("pgindex: lookup %s: %w", key, err)
}
