package memory

import (
	"context"

	"oaiserve/internal/domain/record"
	"oaiserve/internal/store/repositories"
)

// UnitOfWork stages writes and applies them to the record store only when
// the batch succeeds
type UnitOfWork struct {
	records *RecordRepository
}

func NewUnitOfWork(records *RecordRepository) *UnitOfWork {
	return &UnitOfWork{records: records}
}

type stagedWriter struct {
	records []*record.Record
	sets    []*record.Set
}

func (s *stagedWriter) Upsert(ctx context.Context, r *record.Record) error {
	s.records = append(s.records, r)
	return nil
}

func (s *stagedWriter) UpsertSet(ctx context.Context, set *record.Set) error {
	s.sets = append(s.sets, set)
	return nil
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(w repositories.RecordWriter) error) error {
	staged := &stagedWriter{}
	if err := fn(staged); err != nil {
		return err
	}
	for _, set := range staged.sets {
		if err := u.records.UpsertSet(ctx, set); err != nil {
			return err
		}
	}
	for _, r := range staged.records {
		if err := u.records.Upsert(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
