package harvest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/domain/record"
	"oaiserve/internal/store/memory"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2015, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	records *memory.RecordRepository
	tokens  *memory.TokenRepository
	opts    Options
}

func newFixture(t *testing.T, pageSize, n int) *fixture {
	t.Helper()
	f := &fixture{
		records: memory.NewRecordRepository(),
		tokens:  memory.NewTokenRepository(),
		opts: Options{
			PageSize:       pageSize,
			TokenTTL:       time.Hour,
			EndpointName:   "oai",
			RepositoryName: "Test Repository",
			AdminEmail:     "admin@example.org",
			Now:            func() time.Time { return baseTime.Add(10 * 24 * time.Hour) },
		},
	}
	f.tokens.WithClock(func() time.Time { return f.opts.Now() })
	ctx := context.Background()
	require.NoError(t, f.records.UpsertSet(ctx, &record.Set{Name: "physics"}))
	for i := 0; i < n; i++ {
		f.addRecord(t, fmt.Sprintf("oai:test:%d", i), "oai_dc", baseTime.Add(time.Duration(i)*time.Hour))
	}
	return f
}

func (f *fixture) addRecord(t *testing.T, id, format string, ts time.Time, sets ...string) {
	t.Helper()
	rec, err := record.NewRecord(0, id, format, sets, ts, "<dc>"+id+"</dc>")
	require.NoError(t, err)
	require.NoError(t, f.records.Upsert(context.Background(), rec))
}

func identifiers(recs []*record.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Identifier
	}
	return out
}

func params(kv ...string) Params {
	var p Params
	for i := 0; i+1 < len(kv); i += 2 {
		p = append(p, Param{Key: kv[i], Value: kv[i+1]})
	}
	return p
}

func oaiError(t *testing.T, err error) *oai.Error {
	t.Helper()
	require.Error(t, err)
	perr, ok := err.(*oai.Error)
	require.Truef(t, ok, "expected *oai.Error, got %T: %v", err, err)
	return perr
}
