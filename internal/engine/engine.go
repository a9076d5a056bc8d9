// Package engine defines the capability contract an OCR back-end must satisfy
// to participate in the page pipeline: language discovery and validation, the
// raster format the back-end wants pages rendered in, recognition of a single
// page image into raw engine output, and extraction of that raw output into a
// structured zone tree.
//
// Back-ends live in subpackages (tesseract, vision, docai) and are selected by
// name through the registry subpackage. Construction of a back-end probes its
// availability up front, so an unusable engine surfaces before any page work
// begins.
package engine

import (
	"context"

	"djvuocr/internal/zones"
)

// ImageFormat describes the raster format a back-end requires for its input
// images.
type ImageFormat struct {
	// Extension is the file extension without a dot, e.g. "tif".
	Extension string
	// DDjVuFormat is the -format argument understood by ddjvu.
	DDjVuFormat string
	// MIMEType is the content type submitted to remote back-ends.
	MIMEType string
	// BitsPerPixel is the depth the page should be rendered at.
	BitsPerPixel int
}

// RawOutput is the unparsed result of a recognition call, kept around so the
// raw-OCR sink can persist it verbatim before extraction.
type RawOutput struct {
	Data []byte
	// Extension hints at the payload syntax ("hocr", "json", "txt").
	Extension string
}

// ExtractOptions parameterize the raw-output-to-zones extraction step.
type ExtractOptions struct {
	// Rotation is the page orientation in degrees counterclockwise
	// (0, 90, 180 or 270). The extracted tree is transformed accordingly.
	Rotation int
	// Details is the finest zone granularity to descend to.
	Details zones.Detail
	// PageWidth and PageHeight are the pixel dimensions of the unrotated page.
	PageWidth  int
	PageHeight int
}

// Engine is the fixed capability set of an OCR back-end.
type Engine interface {
	// Name returns the back-end identifier used on the command line.
	Name() string

	// ListLanguages enumerates the recognition languages the back-end has
	// available. Back-ends without a discovery mechanism return
	// ErrUnknownLanguageList.
	ListLanguages(ctx context.Context) ([]string, error)

	// DefaultLanguage returns the language used when none is configured.
	DefaultLanguage() string

	// CheckLanguage validates a language identifier. It returns
	// ErrInvalidLanguageID for a syntactically invalid identifier,
	// ErrMissingLanguagePack for a valid identifier that is not installed,
	// or ErrUnknownLanguageList when installation cannot be verified.
	CheckLanguage(id string) error

	// ImageFormat returns the raster format pages should be rendered in for
	// the given depth.
	ImageFormat(bitsPerPixel int) ImageFormat

	// Recognize runs OCR over the image at imagePath and returns the raw
	// engine output. Any temporary resources are released before it returns,
	// on success and failure alike.
	Recognize(ctx context.Context, imagePath, language string, details zones.Detail) (RawOutput, error)

	// ExtractText parses raw engine output into a zone tree in DjVu page
	// coordinates, applying the rotation transform from opts.
	ExtractText(raw RawOutput, opts ExtractOptions) (*zones.Zone, error)
}

// Options carry engine-specific construction knobs (the -X KEY=VALUE command
// line properties) without hard-coding them into the contract.
type Options struct {
	Properties map[string]string
}
