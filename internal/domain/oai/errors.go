package oai

import "fmt"

// ErrorCode is the closed set of protocol errors this repository reports
type ErrorCode string

const (
	BadVerb            ErrorCode = "badVerb"
	BadArgument        ErrorCode = "badArgument"
	BadResumptionToken ErrorCode = "badResumptionToken"
)

// Error is a user-facing protocol error. It is returned as a value and
// rendered into the response; it never indicates a server fault.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a protocol error with a formatted message
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func ErrNoVerb() *Error {
	return NewError(BadVerb, "No verb specified!")
}

func ErrVerbNotImplemented(verb string) *Error {
	return NewError(BadVerb, "Verb \"%s\" is not implemented.", verb)
}

func ErrMetadataPrefixRequired() *Error {
	return NewError(BadArgument, "The metadataPrefix argument is required.")
}

func ErrUnknownSet(name string) *Error {
	return NewError(BadArgument, "The set \"%s\" does not exist.", name)
}

func ErrBadDate(param, value string) *Error {
	return NewError(BadArgument, "The parameter \"%s\" expects a valid date, not \"%s\".", param, value)
}

func ErrFromAfterUntil() *Error {
	return NewError(BadArgument, "\"from\" should not be after \"until\".")
}

func ErrIllegalArgument(name string) *Error {
	return NewError(BadArgument, "The argument \"%s\" is illegal.", name)
}

func ErrInvalidResumptionToken() *Error {
	return NewError(BadResumptionToken, "This resumption token is invalid.")
}
