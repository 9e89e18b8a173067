package djedi

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is returned when no response was received.
	ErrTransport = errors.New("djedi: transport failure")
	// ErrStatus is returned for a response status outside 200 <= status < 400.
	ErrStatus = errors.New("djedi: unexpected status")
	// ErrMalformed is returned when the response body is not a JSON node map.
	ErrMalformed = errors.New("djedi: malformed response")
	// ErrMissing is returned when the service answered but left a node out.
	ErrMissing = errors.New("djedi: missing node")
	// ErrReset is delivered to callbacks still queued when the client state is reset.
	ErrReset = errors.New("djedi: client reset")
)

// RequestError describes a failed request to the content service.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int // -1 when no response was received
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode < 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d: %v", e.Method, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %d: %v: %s", e.Method, e.URL, e.StatusCode, e.Err, e.Body)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Kind returns the sentinel classifying the failure.
func (e *RequestError) Kind() error {
	switch {
	case errors.Is(e.Err, ErrStatus):
		return ErrStatus
	case errors.Is(e.Err, ErrMalformed):
		return ErrMalformed
	default:
		return ErrTransport
	}
}

// Is makes errors.Is(err, ErrTransport) true for every transport error, even
// when the wrapped cause is a net or context error.
func (e *RequestError) Is(target error) bool {
	return target == e.Kind()
}

// MissingError reports a node the service did not return.
type MissingError struct {
	URI string
}

func (e *MissingError) Error() string {
	return "djedi: missing result for node: " + e.URI
}

func (e *MissingError) Is(target error) bool { return target == ErrMissing }
