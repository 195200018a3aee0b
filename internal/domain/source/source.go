package source

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Source is an upstream OAI-PMH endpoint whose records this repository mirrors
type Source struct {
	ID              int64
	Name            string
	URL             string
	MetadataPrefix  string
	SetSpec         string
	LastRefreshedAt *time.Time
	CreatedAt       time.Time
}

// NewSource creates a new source with validation
func NewSource(name, endpoint, prefix, setSpec string) (*Source, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("source name is required")
	}
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid source url: %q", endpoint)
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "oai_dc"
	}

	return &Source{
		Name:           name,
		URL:            u.String(),
		MetadataPrefix: strings.TrimSpace(prefix),
		SetSpec:        strings.TrimSpace(setSpec),
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// MarkRefreshed records a successful refresh that started at t
func (s *Source) MarkRefreshed(t time.Time) {
	ts := t.UTC()
	s.LastRefreshedAt = &ts
}
