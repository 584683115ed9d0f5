package api

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is against *Error values.
var (
	ErrNetwork        = errors.New("network failure")
	ErrServerRejected = errors.New("server rejected request")
	ErrUnauthorized   = errors.New("unauthorized")
	// ErrMalformedResponse marks a 2xx response whose body could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// Error is returned for every failed backend call.
type Error struct {
	Kind    error
	Status  int
	Method  string
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Kind)
	}
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err came from a 401 response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
