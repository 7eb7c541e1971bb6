package domain

import (
	"errors"
	"fmt"
)

// Status is the "status" field of an API response.
type Status string

const (
	StatusOK             Status = "OK"
	StatusZeroResults    Status = "ZERO_RESULTS"
	StatusOverQueryLimit Status = "OVER_QUERY_LIMIT"
	StatusRequestDenied  Status = "REQUEST_DENIED"
	StatusInvalidRequest Status = "INVALID_REQUEST"
	StatusUnknownError   Status = "UNKNOWN_ERROR"
)

// Kind categorizes a geocoding failure.
type Kind int

const (
	// KindUnknown is the zero value and never produced by this package.
	KindUnknown Kind = iota
	// KindConfiguration indicates invalid client settings.
	KindConfiguration
	// KindQuery indicates the API rejected or could not answer a request.
	KindQuery
	// KindTooManyQueries indicates the rate limit was exceeded. It is a
	// refinement of KindQuery.
	KindTooManyQueries
	// KindGenericResult indicates an unrecognized failure status.
	KindGenericResult
	// KindParse indicates a malformed response body.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindQuery:
		return "query"
	case KindTooManyQueries:
		return "too_many_queries"
	case KindGenericResult:
		return "generic_result"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is a typed geocoding error.
type Error struct {
	Kind    Kind
	Status  Status // set when the error came from an API status
	Message string
	Err     error // underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Status != "" {
		msg = fmt.Sprintf("%s: %s", e.Status, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind. A too-many-queries
// error also matches ErrQuery.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Status != "" {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindQuery && e.Kind == KindTooManyQueries
}

// Sentinels for errors.Is. They carry only a kind.
var (
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrQuery          = &Error{Kind: KindQuery}
	ErrTooManyQueries = &Error{Kind: KindTooManyQueries}
	ErrGenericResult  = &Error{Kind: KindGenericResult}
	ErrParse          = &Error{Kind: KindParse}
)

// KindOf extracts the kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

type statusRule struct {
	kind    Kind
	message string
}

var statusRules = map[Status]statusRule{
	StatusZeroResults: {KindQuery,
		"the geocode was successful but returned no results; the address may not exist or the latlng may be in a remote location"},
	StatusOverQueryLimit: {KindTooManyQueries,
		"the given key has gone over the requests limit in the 24 hour period or has submitted too many requests in too short a period of time"},
	StatusRequestDenied: {KindQuery,
		"the request was denied, probably because of a missing sensor parameter or invalid credentials"},
	StatusInvalidRequest: {KindQuery,
		"the request is invalid, probably missing address or latlng"},
}

// StatusError maps a non-OK response status onto a typed error. Statuses
// outside the table produce KindGenericResult.
func StatusError(status Status) *Error {
	if rule, ok := statusRules[status]; ok {
		return &Error{Kind: rule.kind, Status: status, Message: rule.message}
	}
	return &Error{Kind: KindGenericResult, Status: status, Message: "unknown error"}
}

// ConfigError creates a configuration error.
func ConfigError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// QueryError creates a query error raised before any request was sent.
func QueryError(message string) *Error {
	return &Error{Kind: KindQuery, Message: message}
}

// ParseError wraps a response decoding failure.
func ParseError(message string, err error) *Error {
	return &Error{Kind: KindParse, Message: message, Err: err}
}
