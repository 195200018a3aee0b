package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/domain/record"
)

type recordKey struct {
	identifier string
	format     string
}

// RecordRepository keeps records and sets in process memory
type RecordRepository struct {
	mu      sync.RWMutex
	seq     int64
	records []*record.Record
	byKey   map[recordKey]*record.Record
	sets    map[string]*record.Set
}

// NewRecordRepository creates an empty in-memory record store
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{
		byKey: make(map[recordKey]*record.Record),
		sets:  make(map[string]*record.Set),
	}
}

func (r *RecordRepository) Count(ctx context.Context, q oai.ListQuery) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matching(q)), nil
}

func (r *RecordRepository) Find(ctx context.Context, q oai.ListQuery, offset, limit int) ([]*record.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.matching(q)
	if offset >= len(matches) || limit <= 0 {
		return nil, nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	out := make([]*record.Record, 0, end-offset)
	for _, rec := range matches[offset:end] {
		c := *rec
		out = append(out, &c)
	}
	return out, nil
}

func (r *RecordRepository) SetExists(ctx context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sets[name]
	return ok, nil
}

func (r *RecordRepository) EarliestTimestamp(ctx context.Context) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.records) == 0 {
		return nil, nil
	}
	ts := r.records[0].Timestamp
	return &ts, nil
}

// Upsert inserts r or replaces the record with the same identifier and format
func (r *RecordRepository) Upsert(ctx context.Context, rec *record.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := recordKey{rec.Identifier, rec.MetadataFormat}
	if existing, ok := r.byKey[k]; ok {
		rec.ID = existing.ID
		*existing = *rec
	} else {
		r.seq++
		rec.ID = r.seq
		c := *rec
		r.byKey[k] = &c
		r.records = append(r.records, &c)
	}
	sort.SliceStable(r.records, func(i, j int) bool {
		a, b := r.records[i], r.records[j]
		if a.Timestamp.Equal(b.Timestamp) {
			return a.ID < b.ID
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	return nil
}

func (r *RecordRepository) UpsertSet(ctx context.Context, s *record.Set) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.sets[s.Name] = &c
	return nil
}

// Delete removes a record. It is a test helper for simulating a result set
// that shrinks between pages; production code never deletes records.
func (r *RecordRepository) Delete(identifier, format string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := recordKey{identifier, format}
	rec, ok := r.byKey[k]
	if !ok {
		return
	}
	delete(r.byKey, k)
	for i, candidate := range r.records {
		if candidate == rec {
			r.records = append(r.records[:i], r.records[i+1:]...)
			break
		}
	}
}

func (r *RecordRepository) matching(q oai.ListQuery) []*record.Record {
	var out []*record.Record
	for _, rec := range r.records {
		if q.Matches(rec.MetadataFormat, rec.Sets, rec.Timestamp) {
			out = append(out, rec)
		}
	}
	return out
}
