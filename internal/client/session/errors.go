package session

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable indicates the server could not be reached at all.
	ErrUnavailable = errors.New("server unavailable")

	// ErrSessionExpired indicates the session could not be kept alive and
	// all local credentials were discarded. The user must log in again.
	ErrSessionExpired = errors.New("session expired")
)

// APIError is a non-2xx response the server answered deliberately, carrying
// the envelope's message and any per-field validation errors.
type APIError struct {
	Status  int
	Message string
	Fields  []FieldError
}

type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("server returned %d: %s (%s)", e.Status, e.Message, e.Fields[0].Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}
