package matchmaking

import (
	"errors"
	"fmt"
)

// ErrValidation marks a malformed join request. It never changes server state.
var ErrValidation = errors.New("validation failed")

// ValidationError describes what was wrong with a join request
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsCardCount reports whether err is about the number of cards
func IsCardCount(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Field == "cardPool"
}
