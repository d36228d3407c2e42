package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBoardNotFound = errors.New("board not found")
	ErrPostNotFound  = errors.New("post not found")
)

// ValidationError is returned before any store call when a submission is rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrBoardNotAccepting is returned by the submission flow for boards that are
// closed or archived.
var ErrBoardNotAccepting = errors.New("board is not accepting posts")
