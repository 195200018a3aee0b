package record

import (
	"fmt"
	"strings"
	"time"
)

// Record is a harvestable metadata record in one metadata format
type Record struct {
	ID             int64
	SourceID       int64
	Identifier     string
	MetadataFormat string
	Sets           []string
	Timestamp      time.Time
	Metadata       string // raw XML of the metadata element's content
	Deleted        bool
}

// Set is an entry in the repository's set catalogue
type Set struct {
	Name        string
	Description string
	SourceID    int64
}

// NewRecord creates a new record with validation
func NewRecord(sourceID int64, identifier, format string, sets []string, ts time.Time, metadata string) (*Record, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if strings.TrimSpace(format) == "" {
		return nil, fmt.Errorf("metadata format is required")
	}
	if ts.IsZero() {
		return nil, fmt.Errorf("timestamp is required for %s", identifier)
	}

	return &Record{
		SourceID:       sourceID,
		Identifier:     identifier,
		MetadataFormat: format,
		Sets:           normalizeSets(sets),
		Timestamp:      ts.UTC(),
		Metadata:       metadata,
	}, nil
}

// MarkDeleted flags the record as deleted and drops its metadata
func (r *Record) MarkDeleted() {
	r.Deleted = true
	r.Metadata = ""
}

func normalizeSets(sets []string) []string {
	seen := make(map[string]bool, len(sets))
	out := make([]string, 0, len(sets))
	for _, s := range sets {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
