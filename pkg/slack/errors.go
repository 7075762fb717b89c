package slack

import "fmt"

// ErrorKind is the machine-readable error code returned by the Slack Web
// API in the "error" field of a non-ok response.
type ErrorKind string

const (
	KindNotAuthed    ErrorKind = "not_authed"
	KindInvalidAuth  ErrorKind = "invalid_auth"
	KindMissingScope ErrorKind = "missing_scope"
	KindRateLimited  ErrorKind = "rate_limited"
	KindTransport    ErrorKind = "transport_error"
)

// APIError is a failed Slack API call. Kind carries the remote error
// code so callers can classify without string matching.
type APIError struct {
	Method string
	Kind   ErrorKind
	err    error
}

func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("slack %s: %s: %v", e.Method, e.Kind, e.err)
	}
	return fmt.Sprintf("slack %s: %s", e.Method, e.Kind)
}

func (e *APIError) Unwrap() error {
	return e.err
}

func newAPIError(method string, kind ErrorKind) *APIError {
	return &APIError{Method: method, Kind: kind}
}

func transportError(method string, err error) *APIError {
	return &APIError{Method: method, Kind: KindTransport, err: err}
}
