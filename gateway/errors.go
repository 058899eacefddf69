package gateway

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is matched by every StatusError.
var ErrUnauthorized = errors.New("gateway: unauthorized")

// StatusError is returned when a request ends in a 401 the gateway could
// not recover from. Err holds the refresh failure, if a refresh was tried.
type StatusError struct {
	StatusCode int
	Body       []byte
	// Retried is set when the 401 came back on the retried request.
	Retried bool
	Err     error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("gateway: request unauthorized (%d)", e.StatusCode)
	if e.Retried {
		msg += " after refresh"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// HTTPStatus returns the status of the rejected response.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

func (e *StatusError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnauthorized}
	}
	return []error{ErrUnauthorized, e.Err}
}
