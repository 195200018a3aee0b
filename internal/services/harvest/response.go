package harvest

import (
	"oaiserve/internal/domain/oai"
	"oaiserve/internal/domain/record"
)

// Kind selects the payload a response renders to
type Kind string

const (
	KindError           Kind = "error"
	KindIdentify        Kind = "Identify"
	KindListRecords     Kind = "ListRecords"
	KindListIdentifiers Kind = "ListIdentifiers"
)

// Response is the context handed to the renderer. Timestamp and Params are
// set once per request and survive every success and error path.
type Response struct {
	Kind      Kind
	ThisURL   string
	Timestamp string
	Params    Params

	Matches []*record.Record
	Token   *oai.ResumptionToken

	ErrorCode    oai.ErrorCode
	ErrorMessage string

	EarliestDatestamp string
	BaseURL           string
	RepositoryName    string
	AdminEmail        string
}
