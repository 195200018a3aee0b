package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/store/repositories"
)

// TokenRepository keeps resumption tokens in process memory. It is only
// suitable for a single API instance.
type TokenRepository struct {
	mu    sync.Mutex
	seq   int64
	byID  map[int64]*oai.ResumptionToken
	byKey map[string]int64
	now   func() time.Time
}

// NewTokenRepository creates an empty in-memory token store
func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		byID:  make(map[int64]*oai.ResumptionToken),
		byKey: make(map[string]int64),
		now:   time.Now,
	}
}

// WithClock overrides the clock used for expiry checks
func (r *TokenRepository) WithClock(now func() time.Time) *TokenRepository {
	r.now = now
	return r
}

func (r *TokenRepository) Create(ctx context.Context, t *oai.ResumptionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	t.ID = r.seq
	c := *t
	r.byID[t.ID] = &c
	return nil
}

func (r *TokenRepository) AssignKey(ctx context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return "", repositories.ErrNotFound
	}
	if t.Key != "" {
		return "", fmt.Errorf("token %d already has a key", id)
	}
	key := oai.NewTokenKey(id)
	if _, taken := r.byKey[key]; taken {
		return "", fmt.Errorf("token key collision for %d", id)
	}
	t.Key = key
	r.byKey[key] = id
	return key, nil
}

func (r *TokenRepository) Lookup(ctx context.Context, queryType oai.QueryType, key string) (*oai.ResumptionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	t := r.byID[id]
	if t.QueryType != queryType || t.IsExpired(r.now()) {
		return nil, repositories.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *TokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.byID {
		if t.IsExpired(now) {
			delete(r.byKey, t.Key)
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored tokens, expired or not. It is a test
// helper and not part of repositories.TokenRepository.
func (r *TokenRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
