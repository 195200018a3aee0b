package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/store/repositories"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asStrings(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func TestTokenCodecRoundTrip(t *testing.T) {
	created := time.Date(2015, 3, 1, 12, 0, 0, 0, time.UTC)
	from := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	q := oai.ListQuery{MetadataFormat: "oai_dc", Set: "physics", From: &from}

	tok, err := oai.NewResumptionToken(oai.ListIdentifiers, q, 20, 10, 45, created, time.Hour)
	require.NoError(t, err)
	tok.Key = "k.abcdef"

	got, err := decodeToken(7, asStrings(encodeToken(tok)))
	require.NoError(t, err)

	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, tok.Key, got.Key)
	assert.Equal(t, oai.ListIdentifiers, got.QueryType)
	assert.Equal(t, 20, got.Offset)
	assert.Equal(t, 10, got.Cursor)
	assert.Equal(t, 45, got.TotalCount)
	assert.True(t, created.Equal(got.CreatedAt))
	require.NotNil(t, got.From)
	assert.True(t, from.Equal(*got.From))
	assert.Nil(t, got.Until)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, tok.ExpiresAt.Equal(*got.ExpiresAt))
}

func TestDecodeTokenRejectsCorruptHash(t *testing.T) {
	_, err := decodeToken(1, map[string]string{"offset": "x"})
	assert.Error(t, err)
}

func TestTTL(t *testing.T) {
	now := time.Date(2015, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &TokenRepository{now: func() time.Time { return now }}

	assert.Zero(t, r.ttl(&oai.ResumptionToken{}), "tokens without expiry get no TTL")

	exp := now.Add(time.Hour)
	assert.Equal(t, time.Hour, r.ttl(&oai.ResumptionToken{ExpiresAt: &exp}))

	past := now.Add(-time.Minute)
	assert.Equal(t, time.Second, r.ttl(&oai.ResumptionToken{ExpiresAt: &past}))
}

var tokenClock = time.Date(2015, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*TokenRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := NewTokenRepository(client)
	repo.now = func() time.Time { return tokenClock }
	return repo, mr
}

func createToken(t *testing.T, repo *TokenRepository, queryType oai.QueryType, ttl time.Duration) *oai.ResumptionToken {
	t.Helper()
	q := oai.ListQuery{MetadataFormat: "oai_dc", Set: "physics"}
	tok, err := oai.NewResumptionToken(queryType, q, 20, 10, 45, tokenClock, ttl)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tok))
	return tok
}

func TestCreateAssignLookup(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	tok := createToken(t, repo, oai.ListRecords, time.Hour)
	assert.Equal(t, int64(1), tok.ID)

	key, err := repo.AssignKey(ctx, tok.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "1."), "key %q is prefixed with the base36 id", key)

	got, err := repo.Lookup(ctx, oai.ListRecords, key)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)
	assert.Equal(t, key, got.Key)
	assert.Equal(t, "physics", got.Set)
	assert.Equal(t, 20, got.Offset)
	assert.Equal(t, 10, got.Cursor)
	assert.Equal(t, 45, got.TotalCount)

	again, err := repo.Lookup(ctx, oai.ListRecords, key)
	require.NoError(t, err, "tokens are reusable until they expire")
	assert.Equal(t, got.Offset, again.Offset)
}

func TestCreateAllocatesSequentialIDs(t *testing.T) {
	repo, _ := newTestRepo(t)
	a := createToken(t, repo, oai.ListRecords, time.Hour)
	b := createToken(t, repo, oai.ListRecords, time.Hour)
	assert.Equal(t, a.ID+1, b.ID)
}

func TestAssignKeyTwiceFails(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	tok := createToken(t, repo, oai.ListRecords, time.Hour)

	_, err := repo.AssignKey(ctx, tok.ID)
	require.NoError(t, err)
	_, err = repo.AssignKey(ctx, tok.ID)
	assert.Error(t, err)
}

func TestAssignKeyUnknownToken(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.AssignKey(context.Background(), 99)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestAssignKeyWritesKeyIndex(t *testing.T) {
	repo, mr := newTestRepo(t)
	tok := createToken(t, repo, oai.ListIdentifiers, time.Hour)

	key, err := repo.AssignKey(context.Background(), tok.ID)
	require.NoError(t, err)

	v, err := mr.Get(keyIndexPrefix + key)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(tok.ID, 10), v)
	assert.Equal(t, key, mr.HGet(tokenPrefix+strconv.FormatInt(tok.ID, 10), "key"))
}

func TestKeyIndexEntriesStayWithTheirToken(t *testing.T) {
	repo, mr := newTestRepo(t)
	tok := createToken(t, repo, oai.ListRecords, time.Hour)

	key, err := repo.AssignKey(context.Background(), tok.ID)
	require.NoError(t, err)
	other := createToken(t, repo, oai.ListRecords, time.Hour)
	otherKey, err := repo.AssignKey(context.Background(), other.ID)
	require.NoError(t, err)
	assert.NotEqual(t, key, otherKey)

	v, err := mr.Get(keyIndexPrefix + key)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(tok.ID, 10), v)
}

func TestLookupQueryTypeMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	tok := createToken(t, repo, oai.ListIdentifiers, time.Hour)
	key, err := repo.AssignKey(ctx, tok.ID)
	require.NoError(t, err)

	_, err = repo.Lookup(ctx, oai.ListRecords, key)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = repo.Lookup(ctx, oai.ListIdentifiers, key)
	assert.NoError(t, err)
}

func TestLookupUnknownKey(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Lookup(context.Background(), oai.ListRecords, "zz.0123456789abcdef")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestTokenKeysCarryTTL(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()
	tok := createToken(t, repo, oai.ListRecords, time.Hour)
	key, err := repo.AssignKey(ctx, tok.ID)
	require.NoError(t, err)

	assert.Equal(t, time.Hour, mr.TTL(tokenPrefix+strconv.FormatInt(tok.ID, 10)))
	assert.Equal(t, time.Hour, mr.TTL(keyIndexPrefix+key))

	mr.FastForward(2 * time.Hour)
	_, err = repo.Lookup(ctx, oai.ListRecords, key)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestLookupIgnoresExpiredToken(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	tok := createToken(t, repo, oai.ListRecords, time.Hour)
	key, err := repo.AssignKey(ctx, tok.ID)
	require.NoError(t, err)

	// clock passes expiry before Redis evicts the keys
	repo.now = func() time.Time { return tokenClock.Add(61 * time.Minute) }
	_, err = repo.Lookup(ctx, oai.ListRecords, key)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestTokenWithoutExpiryHasNoTTL(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()
	tok := createToken(t, repo, oai.ListRecords, 0)
	key, err := repo.AssignKey(ctx, tok.ID)
	require.NoError(t, err)

	assert.Zero(t, mr.TTL(tokenPrefix+strconv.FormatInt(tok.ID, 10)))
	assert.Zero(t, mr.TTL(keyIndexPrefix+key))

	mr.FastForward(365 * 24 * time.Hour)
	_, err = repo.Lookup(ctx, oai.ListRecords, key)
	assert.NoError(t, err)
}

func TestPurgeExpiredIsNoop(t *testing.T) {
	repo, _ := newTestRepo(t)
	n, err := repo.PurgeExpired(context.Background(), tokenClock)
	require.NoError(t, err)
	assert.Zero(t, n)
}
