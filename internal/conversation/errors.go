// ABOUTME: Error types returned by the conversation service
// ABOUTME: ValidationError means the request was rejected before any store mutation

package conversation

import (
	"errors"
	"fmt"
)

// ErrUnknownContact is returned when a quick message targets someone who is
// not among the sender's contacts.
var ErrUnknownContact = errors.New("unknown contact")

// ErrNotPermitted is returned when user's role does not allow contact with
// the named directory user.
var ErrNotPermitted = errors.New("you cannot message this user")

// ValidationError reports a rejected request. Nothing is written when it is
// returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
