// Package render serialises harvest responses as OAI-PMH 2.0 XML.
package render

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/domain/record"
	"oaiserve/internal/services/harvest"
)

const (
	ContentType = "text/xml; charset=utf-8"

	oaiNamespace   = "http://www.openarchives.org/OAI/2.0/"
	xsiNamespace   = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = "http://www.openarchives.org/OAI/2.0/ http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd"
)

type envelope struct {
	XMLName         xml.Name         `xml:"OAI-PMH"`
	Xmlns           string           `xml:"xmlns,attr"`
	XmlnsXsi        string           `xml:"xmlns:xsi,attr"`
	SchemaLocation  string           `xml:"xsi:schemaLocation,attr"`
	ResponseDate    string           `xml:"responseDate"`
	Request         requestElem      `xml:"request"`
	Error           *errorElem       `xml:"error,omitempty"`
	Identify        *identifyElem    `xml:"Identify,omitempty"`
	ListRecords     *listRecords     `xml:"ListRecords,omitempty"`
	ListIdentifiers *listIdentifiers `xml:"ListIdentifiers,omitempty"`
}

type requestElem struct {
	Attrs []xml.Attr `xml:",any,attr"`
	URL   string     `xml:",chardata"`
}

type errorElem struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type identifyElem struct {
	RepositoryName    string `xml:"repositoryName"`
	BaseURL           string `xml:"baseURL"`
	ProtocolVersion   string `xml:"protocolVersion"`
	AdminEmail        string `xml:"adminEmail"`
	EarliestDatestamp string `xml:"earliestDatestamp"`
	DeletedRecord     string `xml:"deletedRecord"`
	Granularity       string `xml:"granularity"`
}

type headerElem struct {
	Status     string   `xml:"status,attr,omitempty"`
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpec    []string `xml:"setSpec"`
}

type metadataElem struct {
	Inner string `xml:",innerxml"`
}

type recordElem struct {
	Header   headerElem    `xml:"header"`
	Metadata *metadataElem `xml:"metadata,omitempty"`
}

type tokenElem struct {
	Value            string `xml:",chardata"`
	Cursor           int    `xml:"cursor,attr"`
	CompleteListSize int    `xml:"completeListSize,attr"`
	ExpirationDate   string `xml:"expirationDate,attr,omitempty"`
}

type listRecords struct {
	Records []recordElem `xml:"record"`
	Token   *tokenElem   `xml:"resumptionToken,omitempty"`
}

type listIdentifiers struct {
	Headers []headerElem `xml:"header"`
	Token   *tokenElem   `xml:"resumptionToken,omitempty"`
}

// XML writes resp as an OAI-PMH document
func XML(w io.Writer, resp *harvest.Response) error {
	env := envelope{
		Xmlns:          oaiNamespace,
		XmlnsXsi:       xsiNamespace,
		SchemaLocation: schemaLocation,
		ResponseDate:   resp.Timestamp,
		Request:        requestElem{Attrs: requestAttrs(resp.Params), URL: resp.ThisURL},
	}

	switch resp.Kind {
	case harvest.KindError:
		env.Error = &errorElem{Code: string(resp.ErrorCode), Message: resp.ErrorMessage}
	case harvest.KindIdentify:
		env.Identify = &identifyElem{
			RepositoryName:    resp.RepositoryName,
			BaseURL:           resp.BaseURL,
			ProtocolVersion:   "2.0",
			AdminEmail:        resp.AdminEmail,
			EarliestDatestamp: resp.EarliestDatestamp,
			DeletedRecord:     "transient",
			Granularity:       oai.Granularity,
		}
	case harvest.KindListRecords:
		lr := &listRecords{Token: tokenOf(resp.Token)}
		for _, rec := range resp.Matches {
			lr.Records = append(lr.Records, recordOf(rec))
		}
		env.ListRecords = lr
	case harvest.KindListIdentifiers:
		li := &listIdentifiers{Token: tokenOf(resp.Token)}
		for _, rec := range resp.Matches {
			li.Headers = append(li.Headers, headerOf(rec))
		}
		env.ListIdentifiers = li
	default:
		return fmt.Errorf("render: unknown response kind %q", resp.Kind)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(env); err != nil {
		return err
	}
	return enc.Flush()
}

// requestAttrs echoes the arguments; a repeated key keeps its last value so
// the element stays well-formed
func requestAttrs(params harvest.Params) []xml.Attr {
	attrs := make([]xml.Attr, 0, len(params))
	for _, key := range params.Keys() {
		if !isAttrName(key) {
			continue
		}
		v, _ := params.Get(key)
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: key}, Value: v})
	}
	return attrs
}

func headerOf(rec *record.Record) headerElem {
	h := headerElem{
		Identifier: rec.Identifier,
		Datestamp:  oai.FormatDatestamp(rec.Timestamp),
		SetSpec:    rec.Sets,
	}
	if rec.Deleted {
		h.Status = "deleted"
	}
	return h
}

func recordOf(rec *record.Record) recordElem {
	r := recordElem{Header: headerOf(rec)}
	if !rec.Deleted {
		r.Metadata = &metadataElem{Inner: rec.Metadata}
	}
	return r
}

func tokenOf(t *oai.ResumptionToken) *tokenElem {
	if t == nil {
		return nil
	}
	te := &tokenElem{Value: t.Key, Cursor: t.Cursor, CompleteListSize: t.TotalCount}
	if t.ExpiresAt != nil {
		te.ExpirationDate = oai.FormatDatestamp(*t.ExpiresAt)
	}
	return te
}

// isAttrName reports whether key can be written as an unprefixed attribute.
// Names starting with "xml" are reserved and would rebind namespaces.
func isAttrName(key string) bool {
	if key == "" || strings.HasPrefix(strings.ToLower(key), "xml") {
		return false
	}
	for i, r := range key {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return true
}
