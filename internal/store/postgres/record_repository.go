package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/domain/record"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// recordRepository implements RecordRepository on the records and sets tables
type recordRepository struct {
	db querier
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *pgxpool.Pool) *recordRepository {
	return &recordRepository{db: db}
}

// Count counts the records matching q
func (r *recordRepository) Count(ctx context.Context, q oai.ListQuery) (int, error) {
	where, args := recordFilter(q)
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM records WHERE `+where, args...).Scan(&n)
	return n, err
}

// Find returns one slice of the records matching q in harvest order
func (r *recordRepository) Find(ctx context.Context, q oai.ListQuery, offset, limit int) ([]*record.Record, error) {
	where, args := recordFilter(q)
	args = append(args, limit, offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT id, source_id, identifier, metadata_format, set_names, datestamp, metadata, deleted
		FROM records
		WHERE %s
		ORDER BY datestamp ASC, id ASC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetExists reports whether name is in the set catalogue
func (r *recordRepository) SetExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sets WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// EarliestTimestamp returns the oldest record datestamp, or nil without records
func (r *recordRepository) EarliestTimestamp(ctx context.Context) (*time.Time, error) {
	var ts sql.NullTime
	if err := r.db.QueryRow(ctx, `SELECT min(datestamp) FROM records`).Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if !ts.Valid {
		return nil, nil
	}
	t := ts.Time.UTC()
	return &t, nil
}

// Upsert inserts a record or refreshes the one with the same identifier and format
func (r *recordRepository) Upsert(ctx context.Context, rec *record.Record) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO records (source_id, identifier, metadata_format, set_names, datestamp, metadata, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (identifier, metadata_format) DO UPDATE SET
		    source_id = EXCLUDED.source_id,
		    set_names = EXCLUDED.set_names,
		    datestamp = EXCLUDED.datestamp,
		    metadata = EXCLUDED.metadata,
		    deleted = EXCLUDED.deleted,
		    updated_at = now()
		RETURNING id`,
		nullableID(rec.SourceID), rec.Identifier, rec.MetadataFormat, rec.Sets,
		rec.Timestamp, rec.Metadata, rec.Deleted).Scan(&rec.ID)
}

// UpsertSet adds a set to the catalogue, keeping an existing description
func (r *recordRepository) UpsertSet(ctx context.Context, s *record.Set) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sets (name, description, source_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
		    description = COALESCE(NULLIF(EXCLUDED.description, ''), sets.description)`,
		s.Name, s.Description, nullableID(s.SourceID))
	return err
}

// recordFilter renders q as a WHERE clause with positional arguments. Set
// membership uses array containment so records_sets_idx can serve it.
func recordFilter(q oai.ListQuery) (string, []any) {
	clauses := []string{"metadata_format = $1"}
	args := []any{q.MetadataFormat}
	if q.Set != "" {
		args = append(args, q.Set)
		clauses = append(clauses, fmt.Sprintf("set_names @> ARRAY[$%d]::text[]", len(args)))
	}
	if q.From != nil {
		args = append(args, *q.From)
		clauses = append(clauses, fmt.Sprintf("datestamp >= $%d", len(args)))
	}
	if q.Until != nil {
		args = append(args, *q.Until)
		clauses = append(clauses, fmt.Sprintf("datestamp <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanRecord(rows pgx.Rows) (*record.Record, error) {
	var rec record.Record
	var sourceID sql.NullInt64
	var metadata sql.NullString

	err := rows.Scan(&rec.ID, &sourceID, &rec.Identifier, &rec.MetadataFormat,
		&rec.Sets, &rec.Timestamp, &metadata, &rec.Deleted)
	if err != nil {
		return nil, err
	}

	if sourceID.Valid {
		rec.SourceID = sourceID.Int64
	}
	if metadata.Valid {
		rec.Metadata = metadata.String
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return &rec, nil
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}
