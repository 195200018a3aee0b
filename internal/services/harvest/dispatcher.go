package harvest

import (
	"context"
	"errors"
	"strings"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/metrics"
	"oaiserve/internal/store/repositories"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "oaiserve/harvest"

// earliest datestamp advertised by an empty repository
const emptyRepositoryEarliest = "1990-01-01"

// Request is one incoming protocol request as seen by the dispatcher
type Request struct {
	Params  Params
	ThisURL string
	Host    string
}

// Dispatcher routes a request to the capability handling its verb
type Dispatcher struct {
	records   repositories.RecordRepository
	validator *Validator
	paginator *Paginator
	opts      Options
	tracer    trace.Tracer
}

// NewDispatcher wires the validator and pagination engine over the two stores
func NewDispatcher(records repositories.RecordRepository, tokens repositories.TokenRepository, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		records:   records,
		validator: NewValidator(records),
		paginator: NewPaginator(records, tokens, opts),
		opts:      opts,
		tracer:    otel.Tracer(tracerName),
	}
}

// Dispatch produces the response context for req. Protocol errors come back
// as an error-kind Response; a non-nil error means a collaborator failed and
// no protocol response can be produced.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Response, error) {
	verb, _ := req.Params.Get("verb")

	ctx, span := d.tracer.Start(ctx, "oai.Dispatch", trace.WithAttributes(
		attribute.String("oai.verb", verb),
	))
	defer span.End()

	metrics.Requests.WithLabelValues(metrics.VerbLabel(verb)).Inc()

	resp := &Response{
		ThisURL:   req.ThisURL,
		Timestamp: oai.FormatDatestamp(d.opts.Now()),
		Params:    req.Params,
	}

	out, err := d.route(ctx, verb, req, resp)
	if err != nil {
		var perr *oai.Error
		if errors.As(err, &perr) {
			span.SetAttributes(attribute.String("oai.error", string(perr.Code)))
			return formatError(resp, perr), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("verb", verb).Str("url", req.ThisURL).Msg("oai dispatch failed")
		return nil, err
	}
	return out, nil
}

func (d *Dispatcher) route(ctx context.Context, verb string, req Request, resp *Response) (*Response, error) {
	switch verb {
	case "":
		return nil, oai.ErrNoVerb()
	case "Identify":
		return d.identify(ctx, req, resp)
	case string(oai.ListRecords), string(oai.ListIdentifiers):
		return d.list(ctx, oai.QueryType(verb), req.Params, resp)
	default:
		return nil, oai.ErrVerbNotImplemented(verb)
	}
}

func (d *Dispatcher) identify(ctx context.Context, req Request, resp *Response) (*Response, error) {
	resp.Kind = KindIdentify
	resp.BaseURL = d.baseURL(req.Host)
	resp.RepositoryName = d.opts.RepositoryName
	resp.AdminEmail = d.opts.AdminEmail

	earliest, err := d.records.EarliestTimestamp(ctx)
	if err != nil {
		return nil, &ServiceError{Op: "earliest_timestamp", Err: err}
	}
	if earliest != nil {
		resp.EarliestDatestamp = oai.FormatDatestamp(*earliest)
	} else {
		resp.EarliestDatestamp = emptyRepositoryEarliest
	}
	return resp, nil
}

// list serves ListRecords and ListIdentifiers. A resumptionToken argument
// takes precedence over every other argument.
func (d *Dispatcher) list(ctx context.Context, queryType oai.QueryType, params Params, resp *Response) (*Response, error) {
	var page *Page
	var err error

	if params.Has("resumptionToken") {
		key, _ := params.Get("resumptionToken")
		page, err = d.paginator.Resume(ctx, queryType, key)
	} else {
		var q oai.ListQuery
		q, err = d.validator.Validate(ctx, params)
		if err != nil {
			return nil, err
		}
		page, err = d.paginator.Run(ctx, queryType, q, 0)
	}
	if err != nil {
		return nil, err
	}

	resp.Kind = Kind(queryType)
	resp.Matches = page.Records
	resp.Token = page.Token
	return resp, nil
}

func (d *Dispatcher) baseURL(host string) string {
	if d.opts.BaseURL != "" {
		return d.opts.BaseURL
	}
	return "http://" + strings.TrimSuffix(host, "/") + "/" + d.opts.EndpointName
}
