package oai

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResumptionToken(t *testing.T) {
	from := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)
	q := ListQuery{MetadataFormat: "oai_dc", Set: "physics", From: &from, Until: &until}
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	tok, err := NewResumptionToken(ListRecords, q, 20, 10, 35, now, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 20, tok.Offset)
	assert.Equal(t, 10, tok.Cursor)
	assert.Equal(t, 35, tok.TotalCount)
	assert.Equal(t, q, tok.Query())
	require.NotNil(t, tok.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour), *tok.ExpiresAt)
	assert.False(t, tok.IsExpired(now.Add(59*time.Minute)))
	assert.True(t, tok.IsExpired(now.Add(time.Hour)))

	// the token keeps its own copy of the bounds
	until = until.Add(time.Hour)
	assert.Equal(t, time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC), *tok.Until)
}

func TestNewResumptionTokenWithoutTTLNeverExpires(t *testing.T) {
	tok, err := NewResumptionToken(ListIdentifiers, ListQuery{MetadataFormat: "oai_dc"}, 2, 2, 3, time.Now(), 0)
	require.NoError(t, err)
	assert.Nil(t, tok.ExpiresAt)
	assert.False(t, tok.IsExpired(time.Now().Add(24*365*time.Hour)))
}

func TestNewResumptionTokenRejectsInvalidState(t *testing.T) {
	q := ListQuery{MetadataFormat: "oai_dc"}
	now := time.Now()

	_, err := NewResumptionToken("ListSets", q, 2, 2, 3, now, 0)
	assert.Error(t, err)
	_, err = NewResumptionToken(ListRecords, q, 3, 2, 3, now, 0)
	assert.Error(t, err, "offset at total")
	_, err = NewResumptionToken(ListRecords, q, 1, 2, 3, now, 0)
	assert.Error(t, err, "negative cursor")
	_, err = NewResumptionToken(ListRecords, ListQuery{}, 2, 2, 3, now, 0)
	assert.Error(t, err, "missing format")
}

func TestNewTokenKeyIsPrefixedByID(t *testing.T) {
	a := NewTokenKey(36)
	b := NewTokenKey(36)
	assert.True(t, strings.HasPrefix(a, "10."))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("10.")+16)
}

func TestListQueryMatches(t *testing.T) {
	from := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	q := ListQuery{MetadataFormat: "oai_dc", Set: "physics", From: &from}

	assert.True(t, q.Matches("oai_dc", []string{"math", "physics"}, from))
	assert.False(t, q.Matches("oai_dc", []string{"math"}, from))
	assert.False(t, q.Matches("marcxml", []string{"physics"}, from))
	assert.False(t, q.Matches("oai_dc", []string{"physics"}, from.Add(-time.Second)))
}
