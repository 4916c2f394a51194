package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when input is rejected before any state is touched.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is the parent of every lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrGameNotFound is returned when no game is stored under the requested id.
	ErrGameNotFound = fmt.Errorf("game %w", ErrNotFound)
	// ErrHistoryEntryNotFound is returned when a vote targets an index outside the history.
	ErrHistoryEntryNotFound = fmt.Errorf("history entry %w", ErrNotFound)
	// ErrInvalidChoice indicates the choice id is not offered by the current scene.
	ErrInvalidChoice = errors.New("choice is not available in the current scene")
	// ErrGameEnded indicates the current scene is an ending and accepts no choices.
	ErrGameEnded = errors.New("the story has already ended")
	// ErrSelfVote indicates a user tried to vote on a choice they authored.
	ErrSelfVote = errors.New("you cannot vote on your own choice")
	// ErrInvalidPath indicates the story tree and the active path disagree.
	ErrInvalidPath = errors.New("story tree does not match the active path")
	// ErrBusy is returned when another mutation holds the aggregate for too long.
	ErrBusy = errors.New("resource is busy, try again")
	// ErrForbidden indicates the acting user may not perform the operation.
	ErrForbidden = errors.New("only the game owner may do that")
	// ErrGameUnavailable is the generic signal for corrupted or unreadable games.
	ErrGameUnavailable = errors.New("this game is unavailable")
)

// ValidationError carries the offending field and a user-facing reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Invalid builds a ValidationError for callers outside the package.
func Invalid(field, reason string) error {
	return invalid(field, reason)
}

var publicErrors = []error{
	ErrGameNotFound,
	ErrHistoryEntryNotFound,
	ErrInvalidChoice,
	ErrGameEnded,
	ErrSelfVote,
	ErrBusy,
	ErrForbidden,
	ErrNotFound,
}

// PublicMessage maps an error to the reason shown to users. Policy and
// validation failures keep their reason; anything else, corruption included,
// collapses to ErrGameUnavailable.
func PublicMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	if errors.Is(err, ErrInvalidPath) {
		return ErrGameUnavailable.Error()
	}
	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrGameUnavailable.Error()
}
