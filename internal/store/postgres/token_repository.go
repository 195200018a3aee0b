package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/store/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// key generation retries on the (practically impossible) unique collision
const assignKeyAttempts = 3

// tokenRepository implements TokenRepository on the resumption_tokens table
type tokenRepository struct {
	db *pgxpool.Pool
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *pgxpool.Pool) *tokenRepository {
	return &tokenRepository{db: db}
}

// Create inserts the token row; the key stays NULL until AssignKey
func (r *tokenRepository) Create(ctx context.Context, t *oai.ResumptionToken) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO resumption_tokens (query_type, metadata_prefix, set_name, from_ts, until_ts,
		                               next_offset, cursor, total_count, created_at, expires_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		string(t.QueryType), t.MetadataFormat, t.Set, timestamptz(t.From), timestamptz(t.Until),
		t.Offset, t.Cursor, t.TotalCount, t.CreatedAt, timestamptz(t.ExpiresAt)).Scan(&t.ID)
}

// AssignKey generates the key of an already persisted token. The unique index
// on token_key makes a duplicate fail instead of shadowing a live token.
func (r *tokenRepository) AssignKey(ctx context.Context, id int64) (string, error) {
	for attempt := 0; attempt < assignKeyAttempts; attempt++ {
		var key string
		err := r.db.QueryRow(ctx, `
			UPDATE resumption_tokens
			   SET token_key = $1
			 WHERE id = $2 AND token_key IS NULL
			RETURNING token_key`, oai.NewTokenKey(id), id).Scan(&key)
		if err == nil {
			return key, nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repositories.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("token %d: key generation kept colliding", id)
}

// Lookup finds a live token by verb and key
func (r *tokenRepository) Lookup(ctx context.Context, queryType oai.QueryType, key string) (*oai.ResumptionToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, token_key, query_type, metadata_prefix, COALESCE(set_name, ''), from_ts, until_ts,
		       next_offset, cursor, total_count, created_at, expires_at
		FROM resumption_tokens
		WHERE query_type = $1 AND token_key = $2
		  AND (expires_at IS NULL OR expires_at > now())`, string(queryType), key)

	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	return t, err
}

// PurgeExpired deletes every token whose expiry is at or before now
func (r *tokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM resumption_tokens
		WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*oai.ResumptionToken, error) {
	var t oai.ResumptionToken
	var queryType string
	var from, until, expires pgtype.Timestamptz

	err := row.Scan(&t.ID, &t.Key, &queryType, &t.MetadataFormat, &t.Set, &from, &until,
		&t.Offset, &t.Cursor, &t.TotalCount, &t.CreatedAt, &expires)
	if err != nil {
		return nil, err
	}

	t.QueryType = oai.QueryType(queryType)
	t.From = timePtr(from)
	t.Until = timePtr(until)
	t.ExpiresAt = timePtr(expires)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
