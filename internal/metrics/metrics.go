package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "oai"

var (
	// Requests counts dispatched requests by verb
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "OAI-PMH requests by verb.",
	}, []string{"verb"})

	// ProtocolErrors counts error responses by OAI error code
	ProtocolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "protocol_errors_total",
		Help:      "OAI-PMH error responses by error code.",
	}, []string{"code"})

	TokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resumption_tokens_issued_total",
		Help:      "Resumption tokens created.",
	})

	TokensPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resumption_tokens_purged_total",
		Help:      "Expired resumption tokens deleted.",
	})

	RecordsServed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_served_total",
		Help:      "Records and headers returned by list verbs.",
	})

	Throttled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "throttled_requests_total",
		Help:      "Requests rejected by the per-client rate limiter.",
	})

	RecordsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_ingested_total",
		Help:      "Records upserted from upstream sources.",
	}, []string{"source"})
)

var knownVerbs = map[string]bool{
	"Identify":            true,
	"ListRecords":         true,
	"ListIdentifiers":     true,
	"GetRecord":           true,
	"ListSets":            true,
	"ListMetadataFormats": true,
}

func init() {
	prometheus.MustRegister(Requests, ProtocolErrors, TokensIssued, TokensPurged,
		RecordsServed, Throttled, RecordsIngested)
}

// VerbLabel bounds the verb label to protocol verbs
func VerbLabel(verb string) string {
	switch {
	case verb == "":
		return "none"
	case knownVerbs[verb]:
		return verb
	default:
		return "other"
	}
}
