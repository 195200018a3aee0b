package repositories

import (
	"context"
	"errors"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/domain/record"
	"oaiserve/internal/domain/source"
)

// ErrNotFound is returned by lookups that match no live row
var ErrNotFound = errors.New("not found")

// RecordRepository defines the contract for record and set catalogue access.
// Find orders by timestamp ascending with the row id as tie-break, so that
// identical queries page identically between calls.
type RecordRepository interface {
	Count(ctx context.Context, q oai.ListQuery) (int, error)
	Find(ctx context.Context, q oai.ListQuery, offset, limit int) ([]*record.Record, error)
	SetExists(ctx context.Context, name string) (bool, error)
	EarliestTimestamp(ctx context.Context) (*time.Time, error)
	Upsert(ctx context.Context, r *record.Record) error
	UpsertSet(ctx context.Context, s *record.Set) error
}

// RecordWriter is the ingest side of RecordRepository
type RecordWriter interface {
	Upsert(ctx context.Context, r *record.Record) error
	UpsertSet(ctx context.Context, s *record.Set) error
}

// UnitOfWork applies a batch of record writes atomically: either every write
// made through w lands or none does.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(w RecordWriter) error) error
}

// TokenRepository defines the contract for resumption token persistence.
// Create persists the token and sets its ID; AssignKey then generates and
// stores the token's unique key.
type TokenRepository interface {
	Create(ctx context.Context, t *oai.ResumptionToken) error
	AssignKey(ctx context.Context, id int64) (string, error)
	Lookup(ctx context.Context, queryType oai.QueryType, key string) (*oai.ResumptionToken, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// SourceRepository defines the contract for upstream source access
type SourceRepository interface {
	Save(ctx context.Context, s *source.Source) error
	FindByID(ctx context.Context, id int64) (*source.Source, error)
	FindAll(ctx context.Context) ([]*source.Source, error)
	MarkRefreshed(ctx context.Context, id int64, at time.Time) error
}
