package harvest

import (
	"context"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/store/repositories"
)

// arguments a fresh list request may carry
var listArguments = map[string]bool{
	"verb":           true,
	"metadataPrefix": true,
	"set":            true,
	"from":           true,
	"until":          true,
}

// Validator turns the raw arguments of a list request into a ListQuery
type Validator struct {
	records repositories.RecordRepository
}

// NewValidator creates a validator that checks sets against records
func NewValidator(records repositories.RecordRepository) *Validator {
	return &Validator{records: records}
}

// Validate applies the argument rules in order and stops at the first
// violation. Protocol violations are returned as *oai.Error, store failures
// as *ServiceError.
func (v *Validator) Validate(ctx context.Context, params Params) (oai.ListQuery, error) {
	var q oai.ListQuery

	prefix, _ := params.Get("metadataPrefix")
	if prefix == "" {
		return q, oai.ErrMetadataPrefixRequired()
	}
	q.MetadataFormat = prefix

	if set, _ := params.Get("set"); set != "" {
		exists, err := v.records.SetExists(ctx, set)
		if err != nil {
			return q, &ServiceError{Op: "set_exists", Err: err}
		}
		if !exists {
			return q, oai.ErrUnknownSet(set)
		}
		q.Set = set
	}

	for _, name := range []string{"from", "until"} {
		raw, _ := params.Get(name)
		if raw == "" {
			continue
		}
		t, err := oai.ParseDatestamp(raw)
		if err != nil {
			return q, oai.ErrBadDate(name, raw)
		}
		if name == "from" {
			q.From = &t
		} else {
			q.Until = &t
		}
	}

	if q.From != nil && q.Until != nil && q.From.After(*q.Until) {
		return q, oai.ErrFromAfterUntil()
	}

	for _, key := range params.Keys() {
		if !listArguments[key] {
			return q, oai.ErrIllegalArgument(key)
		}
	}

	return q, nil
}
