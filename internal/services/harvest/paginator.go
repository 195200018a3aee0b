package harvest

import (
	"context"
	"errors"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/domain/record"
	"oaiserve/internal/metrics"
	"oaiserve/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// Page is one bounded slice of a list query's result set. Token is nil when
// the page completes the harvest.
type Page struct {
	Records    []*record.Record
	Token      *oai.ResumptionToken
	Offset     int
	TotalCount int
}

// Paginator splits list queries into pages and issues resumption tokens
type Paginator struct {
	records  repositories.RecordRepository
	tokens   repositories.TokenRepository
	pageSize int
	ttl      time.Duration
	now      func() time.Time
}

// NewPaginator creates a pagination engine with the configured page size
func NewPaginator(records repositories.RecordRepository, tokens repositories.TokenRepository, opts Options) *Paginator {
	opts = opts.withDefaults()
	return &Paginator{
		records:  records,
		tokens:   tokens,
		pageSize: opts.PageSize,
		ttl:      opts.TokenTTL,
		now:      opts.Now,
	}
}

// PageSize returns the number of records per page
func (p *Paginator) PageSize() int { return p.pageSize }

// Run returns the page of q starting at offset. When more than one page of
// matches remains after offset, a token for the next page is persisted after
// the page is read and its key assigned once the row exists.
func (p *Paginator) Run(ctx context.Context, queryType oai.QueryType, q oai.ListQuery, offset int) (*Page, error) {
	if offset < 0 {
		offset = 0
	}

	total, err := p.records.Count(ctx, q)
	if err != nil {
		return nil, &ServiceError{Op: "count_records", Err: err}
	}

	page := &Page{Offset: offset, TotalCount: total}

	if offset < total {
		page.Records, err = p.records.Find(ctx, q, offset, p.pageSize)
		if err != nil {
			return nil, &ServiceError{Op: "find_records", Err: err}
		}
	}

	// the token is only persisted once the page it follows has been read
	if total-offset > p.pageSize {
		token, err := p.issueToken(ctx, queryType, q, offset+p.pageSize, total)
		if err != nil {
			return nil, err
		}
		page.Token = token
	}

	metrics.RecordsServed.Add(float64(len(page.Records)))
	log.Debug().
		Str("verb", string(queryType)).
		Str("prefix", q.MetadataFormat).
		Int("offset", offset).
		Int("total", total).
		Int("returned", len(page.Records)).
		Bool("token", page.Token != nil).
		Msg("list page served")
	return page, nil
}

// Resume continues the list query stored under key. The token stays valid
// after use until it expires, so resuming it again yields the same page.
func (p *Paginator) Resume(ctx context.Context, queryType oai.QueryType, key string) (*Page, error) {
	token, err := p.tokens.Lookup(ctx, queryType, key)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, oai.ErrInvalidResumptionToken()
	}
	if err != nil {
		return nil, &ServiceError{Op: "lookup_token", Err: err}
	}

	return p.Run(ctx, queryType, token.Query(), token.Offset)
}

func (p *Paginator) issueToken(ctx context.Context, queryType oai.QueryType, q oai.ListQuery, next, total int) (*oai.ResumptionToken, error) {
	token, err := oai.NewResumptionToken(queryType, q, next, p.pageSize, total, p.now(), p.ttl)
	if err != nil {
		return nil, &ServiceError{Op: "new_token", Err: err}
	}
	if err := p.tokens.Create(ctx, token); err != nil {
		return nil, &ServiceError{Op: "create_token", Err: err}
	}
	key, err := p.tokens.AssignKey(ctx, token.ID)
	if err != nil {
		return nil, &ServiceError{Op: "assign_token_key", Err: err}
	}
	token.Key = key

	metrics.TokensIssued.Inc()
	return token, nil
}
