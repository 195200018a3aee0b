package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/domain/record"
	"oaiserve/internal/domain/source"
	"oaiserve/internal/metrics"
	"oaiserve/internal/store/repositories"

	"github.com/rs/zerolog/log"
	"github.com/sethgrid/pester"
)

const userAgent = "oaiserve-harvester/1.0"

// upstream error code for an empty window; not a failure
const noRecordsMatch = "noRecordsMatch"

// UpstreamError is an OAI error reported by a source
type UpstreamError struct {
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %s", e.Code, strings.TrimSpace(e.Message))
}

type upstreamResponse struct {
	Error *struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"error"`
	ListRecords struct {
		Records []struct {
			Header struct {
				Status     string   `xml:"status,attr"`
				Identifier string   `xml:"identifier"`
				Datestamp  string   `xml:"datestamp"`
				SetSpec    []string `xml:"setSpec"`
			} `xml:"header"`
			Metadata struct {
				Inner string `xml:",innerxml"`
			} `xml:"metadata"`
		} `xml:"record"`
		Token string `xml:"resumptionToken"`
	} `xml:"ListRecords"`
}

// HarvesterOptions tunes the upstream HTTP client
type HarvesterOptions struct {
	MaxRetries int
	Timeout    time.Duration
	Now        func() time.Time
}

// Harvester mirrors the records of upstream sources into the record store
type Harvester struct {
	client  *pester.Client
	uow     repositories.UnitOfWork
	sources repositories.SourceRepository
	now     func() time.Time
}

// Result summarises one source refresh
type Result struct {
	SourceID int64
	Windows  int
	Pages    int
	Records  int
	Skipped  int
}

// NewHarvester writes each upstream page through uow, so a page lands whole
func NewHarvester(uow repositories.UnitOfWork, sources repositories.SourceRepository, opts HarvesterOptions) *Harvester {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	client := pester.New()
	client.MaxRetries = opts.MaxRetries
	client.Backoff = pester.ExponentialBackoff
	client.Timeout = opts.Timeout
	client.KeepLog = false

	return &Harvester{client: client, uow: uow, sources: sources, now: opts.Now}
}

// Refresh pulls every record changed since the source's last refresh and
// stamps the source with the time the refresh started
func (h *Harvester) Refresh(ctx context.Context, sourceID int64) (*Result, error) {
	src, err := h.sources.FindByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	started := h.now().UTC()
	res := &Result{SourceID: src.ID}
	sets := make(map[string]bool)

	windows := windowsSince(src.LastRefreshedAt, started)
	for i, w := range windows {
		res.Windows++
		if err := h.harvestWindow(ctx, src, w, sets, res); err != nil {
			return res, fmt.Errorf("source %d (%s): %w", src.ID, src.Name, err)
		}
		if i == len(windows)-1 {
			break
		}
		// a later failure resumes from the next window, not from scratch
		if err := h.sources.MarkRefreshed(ctx, src.ID, w.Until.Add(time.Nanosecond)); err != nil {
			return res, err
		}
	}

	if err := h.sources.MarkRefreshed(ctx, src.ID, started); err != nil {
		return res, err
	}

	metrics.RecordsIngested.WithLabelValues(src.Name).Add(float64(res.Records))
	log.Info().
		Int64("source_id", src.ID).
		Str("source", src.Name).
		Int("windows", res.Windows).
		Int("pages", res.Pages).
		Int("records", res.Records).
		Int("skipped", res.Skipped).
		Msg("source refreshed")
	return res, nil
}

func (h *Harvester) harvestWindow(ctx context.Context, src *source.Source, w window, sets map[string]bool, res *Result) error {
	seenTokens := make(map[string]bool)
	token := ""
	for {
		page, err := h.fetch(ctx, requestURL(src, w, token))
		if err != nil {
			return err
		}
		res.Pages++

		if page.Error != nil {
			if page.Error.Code == noRecordsMatch {
				return nil
			}
			return &UpstreamError{Code: page.Error.Code, Message: page.Error.Message}
		}

		if err := h.store(ctx, src, page, sets, res); err != nil {
			return err
		}

		token = strings.TrimSpace(page.ListRecords.Token)
		if token == "" {
			return nil
		}
		if seenTokens[token] {
			return fmt.Errorf("upstream repeated resumption token %q", token)
		}
		seenTokens[token] = true
	}
}

func (h *Harvester) store(ctx context.Context, src *source.Source, page *upstreamResponse, sets map[string]bool, res *Result) error {
	var newSets []string
	var stored, skipped int

	err := h.uow.WithinTx(ctx, func(w repositories.RecordWriter) error {
		newSets, stored, skipped = nil, 0, 0
		pending := make(map[string]bool)
		for _, r := range page.ListRecords.Records {
			ts, err := oai.ParseDatestamp(r.Header.Datestamp)
			if err != nil {
				skipped++
				log.Warn().Str("identifier", r.Header.Identifier).Str("datestamp", r.Header.Datestamp).Msg("skipping record with bad datestamp")
				continue
			}
			rec, err := record.NewRecord(src.ID, r.Header.Identifier, src.MetadataPrefix, r.Header.SetSpec, ts, strings.TrimSpace(r.Metadata.Inner))
			if err != nil {
				skipped++
				log.Warn().Err(err).Msg("skipping invalid record")
				continue
			}
			if r.Header.Status == "deleted" {
				rec.MarkDeleted()
			}

			for _, name := range rec.Sets {
				if sets[name] || pending[name] {
					continue
				}
				if err := w.UpsertSet(ctx, &record.Set{Name: name, SourceID: src.ID}); err != nil {
					return err
				}
				pending[name] = true
				newSets = append(newSets, name)
			}
			if err := w.Upsert(ctx, rec); err != nil {
				return err
			}
			stored++
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, name := range newSets {
		sets[name] = true
	}
	res.Records += stored
	res.Skipped += skipped
	return nil
}

func (h *Harvester) fetch(ctx context.Context, link string) (*upstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	log.Debug().Str("url", link).Msg("harvesting upstream page")
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("upstream %s: HTTP %d", link, resp.StatusCode)
	}

	var page upstreamResponse
	if err := xml.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode %s: %w", link, err)
	}
	return &page, nil
}

// requestURL builds the upstream ListRecords URL. A resumption token
// suppresses every other argument.
func requestURL(src *source.Source, w window, token string) string {
	vals := url.Values{}
	vals.Set("verb", string(oai.ListRecords))
	if token != "" {
		vals.Set("resumptionToken", token)
	} else {
		vals.Set("metadataPrefix", src.MetadataPrefix)
		if src.SetSpec != "" {
			vals.Set("set", src.SetSpec)
		}
		if w.From != nil {
			vals.Set("from", oai.FormatDay(*w.From))
		}
		if w.Until != nil {
			vals.Set("until", oai.FormatDay(*w.Until))
		}
	}

	sep := "?"
	if strings.Contains(src.URL, "?") {
		sep = "&"
	}
	return src.URL + sep + vals.Encode()
}
