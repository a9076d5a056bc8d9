package engine

import (
	"errors"
	"fmt"
)

// Common engine errors
var (
	// ErrEngineNotFound is returned at construction when the back-end's
	// external tool or service is not present or not usable.
	ErrEngineNotFound = errors.New("OCR engine not found")

	// ErrInvalidLanguageID is returned when a language identifier is
	// syntactically invalid for the back-end.
	ErrInvalidLanguageID = errors.New("invalid language identifier")

	// ErrMissingLanguagePack is returned when a language identifier is valid
	// but the corresponding language data is not installed.
	ErrMissingLanguagePack = errors.New("language pack not installed")

	// ErrUnknownLanguageList is returned when the back-end provides no way to
	// enumerate its languages. Callers may proceed optimistically.
	ErrUnknownLanguageList = errors.New("cannot determine list of available languages")

	// ErrRecognitionFailed is returned when the external recognition step
	// cannot run or exits abnormally.
	ErrRecognitionFailed = errors.New("recognition failed")

	// ErrMalformedOutput is returned when raw engine output cannot be parsed
	// into the expected structure.
	ErrMalformedOutput = errors.New("malformed engine output")
)

// EngineError wraps errors with additional context about the failing engine
// operation.
type EngineError struct {
	// Op is the operation that failed (e.g., "Recognize", "ListLanguages").
	Op string

	// Engine is the back-end name.
	Engine string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("engine %s: %s failed: %s: %v", e.Engine, e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("engine %s: %s failed: %v", e.Engine, e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *EngineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEngineError creates a new EngineError.
func NewEngineError(engineName, op string, err error, details string) *EngineError {
	return &EngineError{Op: op, Engine: engineName, Err: err, Details: details}
}

// WrapEngineError wraps an error as an EngineError unless it already is one.
func WrapEngineError(engineName, op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	return NewEngineError(engineName, op, err, details)
}
