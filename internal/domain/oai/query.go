package oai

import (
	"fmt"
	"time"
)

// QueryType identifies which list verb a query (and its resumption tokens) belongs to
type QueryType string

const (
	ListRecords     QueryType = "ListRecords"
	ListIdentifiers QueryType = "ListIdentifiers"
)

// IsValid reports whether t is one of the list verbs
func (t QueryType) IsValid() bool {
	return t == ListRecords || t == ListIdentifiers
}

// ListQuery is the validated form of a ListRecords/ListIdentifiers request.
// An empty Set means no set restriction; nil From/Until mean an open bound.
type ListQuery struct {
	MetadataFormat string
	Set            string
	From           *time.Time
	Until          *time.Time
}

// Validate checks the invariants a query must hold before it reaches a store
func (q ListQuery) Validate() error {
	if q.MetadataFormat == "" {
		return fmt.Errorf("metadata format is required")
	}
	if q.From != nil && q.Until != nil && q.From.After(*q.Until) {
		return fmt.Errorf("from %s is after until %s", FormatDatestamp(*q.From), FormatDatestamp(*q.Until))
	}
	return nil
}

// Matches reports whether a record with the given attributes falls inside the
// query's filter. Stores that cannot push the filter down use it directly.
func (q ListQuery) Matches(format string, sets []string, ts time.Time) bool {
	if format != q.MetadataFormat {
		return false
	}
	if q.From != nil && ts.Before(*q.From) {
		return false
	}
	if q.Until != nil && ts.After(*q.Until) {
		return false
	}
	if q.Set == "" {
		return true
	}
	for _, s := range sets {
		if s == q.Set {
			return true
		}
	}
	return false
}
