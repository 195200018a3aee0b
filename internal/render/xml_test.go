package render

import (
	"bytes"
	"encoding/xml"
	"testing"
	"time"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/domain/record"
	"oaiserve/internal/services/harvest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, resp *harvest.Response) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, XML(&buf, resp))
	// output must be well-formed
	var doc struct{ XMLName xml.Name }
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "OAI-PMH", doc.XMLName.Local)
	return buf.String()
}

func baseResponse(kind harvest.Kind) *harvest.Response {
	return &harvest.Response{
		Kind:      kind,
		ThisURL:   "http://repo.example.org/oai?verb=X",
		Timestamp: "2015-03-11T12:00:00Z",
		Params: harvest.Params{
			{Key: "verb", Value: "ListRecords"},
			{Key: "metadataPrefix", Value: "oai_dc"},
			{Key: "bad key<", Value: "x"},
		},
	}
}

func TestXMLError(t *testing.T) {
	resp := baseResponse(harvest.KindError)
	resp.ErrorCode = oai.BadArgument
	resp.ErrorMessage = `The set "a&b" does not exist.`

	out := render(t, resp)
	assert.Contains(t, out, `<responseDate>2015-03-11T12:00:00Z</responseDate>`)
	assert.Contains(t, out, `<error code="badArgument">The set &#34;a&amp;b&#34; does not exist.</error>`)
	assert.Contains(t, out, `verb="ListRecords"`)
	assert.Contains(t, out, `metadataPrefix="oai_dc"`)
	assert.NotContains(t, out, "bad key")
}

func TestXMLIdentify(t *testing.T) {
	resp := baseResponse(harvest.KindIdentify)
	resp.BaseURL = "http://repo.example.org/oai"
	resp.EarliestDatestamp = "1990-01-01"
	resp.RepositoryName = "Test"

	out := render(t, resp)
	assert.Contains(t, out, "<baseURL>http://repo.example.org/oai</baseURL>")
	assert.Contains(t, out, "<earliestDatestamp>1990-01-01</earliestDatestamp>")
	assert.Contains(t, out, "<protocolVersion>2.0</protocolVersion>")
	assert.Contains(t, out, "<granularity>YYYY-MM-DDThh:mm:ssZ</granularity>")
}

func TestXMLListRecordsWithToken(t *testing.T) {
	ts := time.Date(2015, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := ts.Add(time.Hour)
	resp := baseResponse(harvest.KindListRecords)
	resp.Matches = []*record.Record{
		{Identifier: "oai:x:1", Timestamp: ts, Sets: []string{"physics"}, Metadata: "<dc:title>One</dc:title>"},
		{Identifier: "oai:x:2", Timestamp: ts, Deleted: true},
	}
	resp.Token = &oai.ResumptionToken{Key: "2.abc", Cursor: 0, TotalCount: 3, ExpiresAt: &exp}

	out := render(t, resp)
	assert.Contains(t, out, "<identifier>oai:x:1</identifier>")
	assert.Contains(t, out, "<setSpec>physics</setSpec>")
	assert.Contains(t, out, "<metadata><dc:title>One</dc:title></metadata>")
	assert.Contains(t, out, `<header status="deleted">`)
	assert.Contains(t, out, `<resumptionToken cursor="0" completeListSize="3" expirationDate="2015-03-01T13:00:00Z">2.abc</resumptionToken>`)
}

func TestXMLListIdentifiersFinalPageHasNoToken(t *testing.T) {
	resp := baseResponse(harvest.KindListIdentifiers)
	resp.Matches = []*record.Record{{Identifier: "oai:x:3", Timestamp: time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC)}}

	out := render(t, resp)
	assert.Contains(t, out, "<ListIdentifiers>")
	assert.Contains(t, out, "<datestamp>2015-03-01T00:00:00Z</datestamp>")
	assert.NotContains(t, out, "<metadata>")
	assert.NotContains(t, out, "resumptionToken")
}

func TestXMLUnknownKind(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, XML(&buf, &harvest.Response{Kind: "ListSets"}))
}

func TestXMLRequestKeepsOAINamespace(t *testing.T) {
	resp := baseResponse(harvest.KindIdentify)
	resp.Params = harvest.Params{
		{Key: "verb", Value: "Identify"},
		{Key: "xmlns", Value: "urn:evil"},
		{Key: "XMLNS", Value: "urn:evil"},
		{Key: "xml:lang", Value: "en"},
		{Key: "xmlFoo", Value: "x"},
	}

	out := render(t, resp)
	assert.NotContains(t, out, "urn:evil")
	assert.NotContains(t, out, "xmlFoo")
	assert.Contains(t, out, `verb="Identify"`)

	var doc struct {
		Request struct {
			XMLName xml.Name
			Verb    string `xml:"verb,attr"`
		} `xml:"request"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, oaiNamespace, doc.Request.XMLName.Space)
	assert.Equal(t, "Identify", doc.Request.Verb)
}

func TestIsAttrName(t *testing.T) {
	cases := map[string]bool{
		"verb":           true,
		"metadataPrefix": true,
		"a-b.c":          true,
		"":               false,
		"1abc":           false,
		"bad key":        false,
		"xmlns":          false,
		"Xmlns":          false,
		"xml:lang":       false,
	}
	for name, want := range cases {
		assert.Equal(t, want, isAttrName(name), name)
	}
}
