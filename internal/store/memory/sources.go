package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"oaiserve/internal/domain/source"
	"oaiserve/internal/store/repositories"
)

// SourceRepository keeps upstream sources in process memory
type SourceRepository struct {
	mu      sync.RWMutex
	seq     int64
	sources map[int64]*source.Source
}

func NewSourceRepository() *SourceRepository {
	return &SourceRepository{sources: make(map[int64]*source.Source)}
}

func (r *SourceRepository) Save(ctx context.Context, s *source.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		r.seq++
		s.ID = r.seq
	}
	c := *s
	r.sources[s.ID] = &c
	return nil
}

func (r *SourceRepository) FindByID(ctx context.Context, id int64) (*source.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *SourceRepository) FindAll(ctx context.Context) ([]*source.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*source.Source, 0, len(r.sources))
	for _, s := range r.sources {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SourceRepository) MarkRefreshed(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return repositories.ErrNotFound
	}
	s.MarkRefreshed(at)
	return nil
}
