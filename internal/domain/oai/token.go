package oai

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ResumptionToken is the persisted pagination state of a list query.
// Offset is where the next page starts, Cursor where the page just delivered
// started, TotalCount the result-set size frozen at creation.
type ResumptionToken struct {
	ID             int64
	Key            string
	QueryType      QueryType
	MetadataFormat string
	Set            string
	From           *time.Time
	Until          *time.Time
	Offset         int
	Cursor         int
	TotalCount     int
	CreatedAt      time.Time
	ExpiresAt      *time.Time
}

// NewResumptionToken creates the token continuing query q after the page that
// ends at offset. A zero ttl yields a token that never expires.
func NewResumptionToken(queryType QueryType, q ListQuery, offset, pageSize, totalCount int, now time.Time, ttl time.Duration) (*ResumptionToken, error) {
	if err := validateTokenCreation(queryType, q, offset, pageSize, totalCount); err != nil {
		return nil, err
	}

	t := &ResumptionToken{
		QueryType:      queryType,
		MetadataFormat: q.MetadataFormat,
		Set:            q.Set,
		From:           copyTime(q.From),
		Until:          copyTime(q.Until),
		Offset:         offset,
		Cursor:         offset - pageSize,
		TotalCount:     totalCount,
		CreatedAt:      now.UTC(),
	}
	if ttl > 0 {
		exp := t.CreatedAt.Add(ttl)
		t.ExpiresAt = &exp
	}
	return t, nil
}

// Query reconstructs the list query the token continues
func (t *ResumptionToken) Query() ListQuery {
	return ListQuery{
		MetadataFormat: t.MetadataFormat,
		Set:            t.Set,
		From:           copyTime(t.From),
		Until:          copyTime(t.Until),
	}
}

// IsExpired reports whether the token is past its expiry at now
func (t *ResumptionToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// NewTokenKey derives a token key from the persisted id. The base-36 id
// prefix keeps keys unique across live tokens; the random suffix keeps them
// unguessable.
func NewTokenKey(id int64) string {
	u := uuid.New()
	return strconv.FormatInt(id, 36) + "." + hex.EncodeToString(u[:8])
}

func validateTokenCreation(queryType QueryType, q ListQuery, offset, pageSize, totalCount int) error {
	if !queryType.IsValid() {
		return fmt.Errorf("invalid query type: %s", queryType)
	}
	if err := q.Validate(); err != nil {
		return err
	}
	if pageSize <= 0 {
		return fmt.Errorf("invalid page size: %d", pageSize)
	}
	if offset < pageSize {
		return fmt.Errorf("offset %d is before the end of the first page", offset)
	}
	if offset >= totalCount {
		return fmt.Errorf("offset %d leaves nothing of %d records to resume", offset, totalCount)
	}
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
