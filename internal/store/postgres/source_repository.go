package postgres

import (
	"context"
	"errors"
	"time"

	"oaiserve/internal/domain/source"
	"oaiserve/internal/store/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// sourceRepository implements SourceRepository on the sources table
type sourceRepository struct {
	db *pgxpool.Pool
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(db *pgxpool.Pool) *sourceRepository {
	return &sourceRepository{db: db}
}

// Save inserts a new source or updates an existing one
func (r *sourceRepository) Save(ctx context.Context, s *source.Source) error {
	if s.ID == 0 {
		return r.db.QueryRow(ctx, `
			INSERT INTO sources (name, url, metadata_prefix, set_spec, last_refreshed_at, created_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
			RETURNING id`,
			s.Name, s.URL, s.MetadataPrefix, s.SetSpec, timestamptz(s.LastRefreshedAt), s.CreatedAt).Scan(&s.ID)
	}
	_, err := r.db.Exec(ctx, `
		UPDATE sources
		SET name = $1, url = $2, metadata_prefix = $3, set_spec = NULLIF($4, ''), last_refreshed_at = $5
		WHERE id = $6`,
		s.Name, s.URL, s.MetadataPrefix, s.SetSpec, timestamptz(s.LastRefreshedAt), s.ID)
	return err
}

// FindByID finds a source by ID
func (r *sourceRepository) FindByID(ctx context.Context, id int64) (*source.Source, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, url, metadata_prefix, COALESCE(set_spec, ''), last_refreshed_at, created_at
		FROM sources
		WHERE id = $1`, id)

	s, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	return s, err
}

// FindAll lists every source by ID
func (r *sourceRepository) FindAll(ctx context.Context) ([]*source.Source, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, url, metadata_prefix, COALESCE(set_spec, ''), last_refreshed_at, created_at
		FROM sources
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*source.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkRefreshed stamps the start time of the last successful refresh
func (r *sourceRepository) MarkRefreshed(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE sources SET last_refreshed_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func scanSource(row pgx.Row) (*source.Source, error) {
	var s source.Source
	var refreshed pgtype.Timestamptz

	err := row.Scan(&s.ID, &s.Name, &s.URL, &s.MetadataPrefix, &s.SetSpec, &refreshed, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.LastRefreshedAt = timePtr(refreshed)
	return &s, nil
}
