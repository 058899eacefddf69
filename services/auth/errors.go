package auth

import (
	"errors"
	"fmt"
)

// Kind classifies authentication failures.
type Kind int

const (
	// InvalidCredentials: login rejected. The user can retry the form.
	InvalidCredentials Kind = iota + 1
	// SignupFailed: account creation rejected. The user can retry the form.
	SignupFailed
	// RefreshFailed: the silent refresh was rejected; the session is gone.
	RefreshFailed
	// NetworkUnavailable: the backend could not be reached.
	NetworkUnavailable
)

func (k Kind) String() string {
	switch k {
	case InvalidCredentials:
		return "InvalidCredentials"
	case SignupFailed:
		return "SignupFailed"
	case RefreshFailed:
		return "RefreshFailed"
	case NetworkUnavailable:
		return "NetworkUnavailable"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// AuthError is the error returned by every credential exchange. Message is
// safe to show to the user.
type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches another *AuthError of the same kind, so callers can write
// errors.Is(err, &AuthError{Kind: InvalidCredentials}).
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// KindOf returns the kind of the first AuthError in err's chain, or 0.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// Generic messages used when the backend gives no better one.
const (
	msgLoginFailed        = "Login failed"
	msgSignupFailed       = "Signup failed"
	msgGoogleSignupFailed = "Google signup failed"
	msgNetwork            = "Unable to reach the server. Please try again."
)

// BackendError is a non-2xx answer from the backend.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend answered %d", e.Status)
	}
	return fmt.Sprintf("backend answered %d: %s", e.Status, e.Body)
}

// HTTPStatus returns the status the backend answered with.
func (e *BackendError) HTTPStatus() int { return e.Status }
