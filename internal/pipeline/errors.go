package pipeline

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the run is cancelled before every page
// reached a terminal state.
var ErrCancelled = errors.New("run cancelled")

// PageError reports the page whose failure aborted the run.
type PageError struct {
	// Page is the 1-based page number.
	Page int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	return fmt.Sprintf("processing page %d: %v", e.Page, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *PageError) Unwrap() error {
	return e.Err
}
