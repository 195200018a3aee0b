package harvest

import (
	"fmt"

	"oaiserve/internal/domain/oai"
	"oaiserve/internal/metrics"

	"github.com/rs/zerolog/log"
)

// ServiceError represents a collaborator failure that is not part of the
// protocol error taxonomy
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("harvest service [%s]: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// formatError turns resp into the error payload shared by all verbs
func formatError(resp *Response, e *oai.Error) *Response {
	resp.Kind = KindError
	resp.ErrorCode = e.Code
	resp.ErrorMessage = e.Message
	resp.Matches = nil
	resp.Token = nil

	metrics.ProtocolErrors.WithLabelValues(string(e.Code)).Inc()
	log.Debug().
		Str("code", string(e.Code)).
		Str("message", e.Message).
		Str("url", resp.ThisURL).
		Msg("oai protocol error")
	return resp
}
