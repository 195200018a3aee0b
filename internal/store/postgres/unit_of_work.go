package postgres

import (
	"context"

	"oaiserve/internal/store/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the statement surface shared by the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// unitOfWork implements UnitOfWork with one pgx transaction per batch
type unitOfWork struct {
	db *pgxpool.Pool
}

// NewUnitOfWork creates a new unit of work
func NewUnitOfWork(db *pgxpool.Pool) *unitOfWork {
	return &unitOfWork{db: db}
}

// WithinTx runs fn against a record repository bound to a transaction and
// commits when fn succeeds
func (u *unitOfWork) WithinTx(ctx context.Context, fn func(w repositories.RecordWriter) error) error {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // no-op after commit

	if err := fn(&recordRepository{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
