package authapi

import (
	"errors"
	"fmt"
)

// Operations reported in AuthError.Op.
const (
	OpExchange = "exchange credentials"
	OpRoles    = "fetch roles"
)

var (
	// ErrUnexpectedStatus wraps non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrMissingToken is returned when the token response has no access_token.
	ErrMissingToken = errors.New("response has no access token")
	// ErrMalformedResponse is returned when a response body is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed response")
)

// AuthError is a failed credential exchange or role lookup.
type AuthError struct {
	Op     string
	Status int // 0 when no response was received
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
