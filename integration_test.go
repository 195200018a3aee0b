package main

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"oaiserve/internal/config"
	"oaiserve/internal/domain/source"
	httpx "oaiserve/internal/http"
	"oaiserve/internal/services/harvest"
	"oaiserve/internal/services/ingest"
	"oaiserve/internal/services/tokens"
	"oaiserve/internal/store/memory"
)

type listRecordsDoc struct {
	Error *struct {
		Code string `xml:"code,attr"`
	} `xml:"error"`
	ListRecords struct {
		Records []struct {
			Header struct {
				Status     string `xml:"status,attr"`
				Identifier string `xml:"identifier"`
			} `xml:"header"`
		} `xml:"record"`
		Token *struct {
			Value  string `xml:",chardata"`
			Cursor int    `xml:"cursor,attr"`
		} `xml:"resumptionToken"`
	} `xml:"ListRecords"`
}

// upstreamRepository serves n records in pages of three, like a remote
// OAI-PMH endpoint would
func upstreamRepository(n int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := 0
		if tok := r.URL.Query().Get("resumptionToken"); tok != "" {
			fmt.Sscanf(tok, "offset-%d", &start)
		}
		var b strings.Builder
		b.WriteString(`<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/"><ListRecords>`)
		for i := start; i < start+3 && i < n; i++ {
			status := ""
			if i == n-1 {
				status = ` status="deleted"`
			}
			fmt.Fprintf(&b, `<record><header%s><identifier>oai:remote:%02d</identifier>`+
				`<datestamp>2016-01-%02dT00:00:00Z</datestamp><setSpec>remote</setSpec></header>`+
				`<metadata><dc>%d</dc></metadata></record>`, status, i, i+1, i)
		}
		if start+3 < n {
			fmt.Fprintf(&b, `<resumptionToken>offset-%d</resumptionToken>`, start+3)
		}
		b.WriteString(`</ListRecords></OAI-PMH>`)
		w.Write([]byte(b.String()))
	}
}

// TestMirrorAndHarvest refreshes a source from an upstream endpoint and then
// harvests the mirrored records page by page through the HTTP router
func TestMirrorAndHarvest(t *testing.T) {
	ctx := context.Background()
	upstream := httptest.NewServer(upstreamRepository(7))
	defer upstream.Close()

	records := memory.NewRecordRepository()
	sources := memory.NewSourceRepository()
	tokenRepo := memory.NewTokenRepository()

	src, err := source.NewSource("remote", upstream.URL, "oai_dc", "")
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	if err := sources.Save(ctx, src); err != nil {
		t.Fatalf("save source: %v", err)
	}

	harvester := ingest.NewHarvester(memory.NewUnitOfWork(records), sources, ingest.HarvesterOptions{MaxRetries: 1})
	res, err := harvester.Refresh(ctx, src.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if res.Records != 7 || res.Pages != 3 {
		t.Fatalf("expected 7 records over 3 pages, got %d over %d", res.Records, res.Pages)
	}

	cfg := config.Cfg{
		App: config.AppCfg{Env: "test", EndpointName: "oai"},
		OAI: config.OAICfg{PageSize: 4, TokenTTL: time.Hour},
	}
	dispatcher := harvest.NewDispatcher(records, tokenRepo, harvest.Options{
		PageSize:     cfg.OAI.PageSize,
		TokenTTL:     cfg.OAI.TokenTTL,
		EndpointName: cfg.App.EndpointName,
	})
	router := httpx.NewRouter(httpx.RouterDependencies{Config: cfg, Dispatcher: dispatcher})

	query := url.Values{"verb": {"ListRecords"}, "metadataPrefix": {"oai_dc"}, "set": {"remote"}}
	var ids []string
	deleted := 0
	for page := 0; ; page++ {
		if page > 5 {
			t.Fatal("harvest did not terminate")
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oai?"+query.Encode(), nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("page %d: status %d", page, rec.Code)
		}

		var doc listRecordsDoc
		if err := xml.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if doc.Error != nil {
			t.Fatalf("page %d: protocol error %s", page, doc.Error.Code)
		}
		for _, r := range doc.ListRecords.Records {
			ids = append(ids, r.Header.Identifier)
			if r.Header.Status == "deleted" {
				deleted++
			}
		}
		if doc.ListRecords.Token == nil {
			break
		}
		if doc.ListRecords.Token.Cursor != page*cfg.OAI.PageSize {
			t.Fatalf("page %d: cursor %d", page, doc.ListRecords.Token.Cursor)
		}
		query = url.Values{"verb": {"ListRecords"}, "resumptionToken": {doc.ListRecords.Token.Value}}
	}

	if len(ids) != 7 || ids[0] != "oai:remote:00" || ids[6] != "oai:remote:06" {
		t.Fatalf("unexpected harvest: %v", ids)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted record, got %d", deleted)
	}

	// Tokens stay valid until the purge job removes them
	purged, err := tokens.NewPurger(tokenRepo, "", func() time.Time { return time.Now().Add(2 * time.Hour) }).PurgeOnce(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged token, got %d", purged)
	}

	t.Log("mirror and harvest round trip passed")
}
