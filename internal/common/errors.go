// Package common contains shared constants and sentinel errors used across
// duetchat components.
package common

import "errors"

var (
	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// service specific errors
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrorAlreadyExists = errors.New("already exists")

	// token specific errors; the API surfaces the exact message so that
	// clients can tell a retryable expiry from a fatal token failure
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidToken        = errors.New("invalid token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// ValidationError reports one or more invalid request fields. It maps to a
// 400 response with per-field entries in the envelope's errors array.
type ValidationError struct {
	Fields []FieldError
}

type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error"
	}
	return "validation error: " + e.Fields[0].Message
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(pairs ...string) *ValidationError {
	e := &ValidationError{}
	for i := 0; i+1 < len(pairs); i += 2 {
		e.Fields = append(e.Fields, FieldError{Field: pairs[i], Message: pairs[i+1]})
	}
	return e
}
