// Package registry selects an OCR back-end by name from the closed set of
// implementations. Selection happens at configuration time; there is no
// runtime plugin mechanism.
package registry

import (
	"context"
	"fmt"
	"strings"

	"djvuocr/internal/engine"
	"djvuocr/internal/engine/docai"
	"djvuocr/internal/engine/tesseract"
	"djvuocr/internal/engine/vision"
)

// Names returns the known back-end names.
func Names() []string {
	return []string{tesseract.Name, vision.Name, docai.Name}
}

// Default returns the back-end used when none is configured.
func Default() string { return tesseract.Name }

// New constructs the named back-end. Construction probes availability, so an
// unusable engine fails here with engine.ErrEngineNotFound.
func New(ctx context.Context, name string, opts engine.Options) (engine.Engine, error) {
	switch name {
	case tesseract.Name:
		return tesseract.New(ctx, opts)
	case vision.Name:
		return vision.New(ctx, opts)
	case docai.Name:
		return docai.New(ctx, opts)
	}
	return nil, fmt.Errorf("unknown OCR engine %q (available: %s)", name, strings.Join(Names(), ", "))
}
