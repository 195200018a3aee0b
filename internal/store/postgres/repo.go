package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo bundles the Postgres-backed repositories sharing one pool
type Repo struct {
	db      *pgxpool.Pool
	records *recordRepository
	tokens  *tokenRepository
	sources *sourceRepository
	uow     *unitOfWork
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db:      db,
		records: NewRecordRepository(db),
		tokens:  NewTokenRepository(db),
		sources: NewSourceRepository(db),
		uow:     NewUnitOfWork(db),
	}
}

func (r *Repo) Records() *recordRepository { return r.records }
func (r *Repo) Tokens() *tokenRepository   { return r.tokens }
func (r *Repo) Sources() *sourceRepository { return r.sources }
func (r *Repo) UnitOfWork() *unitOfWork    { return r.uow }

// Expose the underlying pool for health checks.
func (r *Repo) DB() *pgxpool.Pool { return r.db }
