package djvu

import (
	"errors"
	"fmt"
)

// Common document errors
var (
	// ErrToolNotFound is returned when the DjVuLibre command line tools are
	// not installed.
	ErrToolNotFound = errors.New("DjVuLibre tools not found")

	// ErrNoImage is returned when a page has no image suitable for OCR in
	// the requested render layers.
	ErrNoImage = errors.New("no image suitable for OCR")

	// ErrPageOutOfRange is returned when a requested page number does not
	// exist in the document.
	ErrPageOutOfRange = errors.New("page number out of range")

	// ErrInvalidPageRange is returned when a page range string cannot be
	// parsed.
	ErrInvalidPageRange = errors.New("unable to parse page numbers")
)

// DocumentError wraps errors with additional context about a document
// operation.
type DocumentError struct {
	// Op is the operation that failed (e.g., "Open", "RenderPage").
	Op string

	// Path is the document path.
	Path string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("djvu: %s %s failed: %s: %v", e.Op, e.Path, e.Details, e.Err)
	}
	return fmt.Sprintf("djvu: %s %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *DocumentError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
