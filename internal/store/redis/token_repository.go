package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/store/repositories"

	"github.com/redis/go-redis/v9"
)

const (
	seqKey           = "oai:tokens:seq"
	tokenPrefix      = "oai:token:"
	keyIndexPrefix   = "oai:tokenkey:"
	assignKeyRetries = 3
)

// TokenRepository stores resumption tokens as Redis hashes. Expiry is
// delegated to Redis TTLs, so PurgeExpired has nothing to do.
type TokenRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{client: client, now: time.Now}
}

// Create allocates an id from a counter and writes the token hash
func (r *TokenRepository) Create(ctx context.Context, t *oai.ResumptionToken) error {
	id, err := r.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return err
	}

	hkey := tokenPrefix + strconv.FormatInt(id, 10)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, hkey, encodeToken(t))
		if ttl := r.ttl(t); ttl > 0 {
			p.Expire(ctx, hkey, ttl)
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// AssignKey claims a fresh key with SETNX so no two live tokens share one
func (r *TokenRepository) AssignKey(ctx context.Context, id int64) (string, error) {
	hkey := tokenPrefix + strconv.FormatInt(id, 10)
	fields, err := r.client.HGetAll(ctx, hkey).Result()
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", repositories.ErrNotFound
	}
	if fields["key"] != "" {
		return "", fmt.Errorf("token %d already has a key", id)
	}
	t, err := decodeToken(id, fields)
	if err != nil {
		return "", err
	}

	ttl := r.ttl(t)
	for attempt := 0; attempt < assignKeyRetries; attempt++ {
		key := oai.NewTokenKey(id)
		ok, err := r.client.SetNX(ctx, keyIndexPrefix+key, id, ttl).Result()
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if err := r.client.HSet(ctx, hkey, "key", key).Err(); err != nil {
			return "", err
		}
		return key, nil
	}
	return "", fmt.Errorf("token %d: key generation kept colliding", id)
}

// Lookup resolves the key index and loads the token hash
func (r *TokenRepository) Lookup(ctx context.Context, queryType oai.QueryType, key string) (*oai.ResumptionToken, error) {
	id, err := r.client.Get(ctx, keyIndexPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	fields, err := r.client.HGetAll(ctx, tokenPrefix+strconv.FormatInt(id, 10)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, repositories.ErrNotFound
	}
	t, err := decodeToken(id, fields)
	if err != nil {
		return nil, err
	}
	if t.QueryType != queryType || t.IsExpired(r.now()) {
		return nil, repositories.ErrNotFound
	}
	return t, nil
}

func (r *TokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// ttl is the remaining lifetime of t, or 0 for tokens that never expire
func (r *TokenRepository) ttl(t *oai.ResumptionToken) time.Duration {
	if t.ExpiresAt == nil {
		return 0
	}
	d := t.ExpiresAt.Sub(r.now())
	if d < time.Second {
		d = time.Second
	}
	return d
}

func encodeToken(t *oai.ResumptionToken) map[string]any {
	return map[string]any{
		"key":         t.Key,
		"query_type":  string(t.QueryType),
		"prefix":      t.MetadataFormat,
		"set":         t.Set,
		"from":        formatTime(t.From),
		"until":       formatTime(t.Until),
		"offset":      t.Offset,
		"cursor":      t.Cursor,
		"total_count": t.TotalCount,
		"created_at":  t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":  formatTime(t.ExpiresAt),
	}
}

func decodeToken(id int64, f map[string]string) (*oai.ResumptionToken, error) {
	t := &oai.ResumptionToken{
		ID:             id,
		Key:            f["key"],
		QueryType:      oai.QueryType(f["query_type"]),
		MetadataFormat: f["prefix"],
		Set:            f["set"],
	}

	var err error
	if t.Offset, err = strconv.Atoi(f["offset"]); err != nil {
		return nil, fmt.Errorf("token %d: bad offset: %w", id, err)
	}
	if t.Cursor, err = strconv.Atoi(f["cursor"]); err != nil {
		return nil, fmt.Errorf("token %d: bad cursor: %w", id, err)
	}
	if t.TotalCount, err = strconv.Atoi(f["total_count"]); err != nil {
		return nil, fmt.Errorf("token %d: bad total_count: %w", id, err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, f["created_at"]); err != nil {
		return nil, fmt.Errorf("token %d: bad created_at: %w", id, err)
	}
	if t.From, err = parseTime(f["from"]); err != nil {
		return nil, fmt.Errorf("token %d: bad from: %w", id, err)
	}
	if t.Until, err = parseTime(f["until"]); err != nil {
		return nil, fmt.Errorf("token %d: bad until: %w", id, err)
	}
	if t.ExpiresAt, err = parseTime(f["expires_at"]); err != nil {
		return nil, fmt.Errorf("token %d: bad expires_at: %w", id, err)
	}
	return t, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
