// Package tesseract implements the engine contract on top of a local
// Tesseract installation through the gosseract client. Recognition produces
// hOCR, which keeps the raw output human-salvageable and gives the extract
// step positional data down to word level.
package tesseract

import (
	"context"
	"regexp"
	"slices"

	"github.com/otiai10/gosseract/v2"

	"djvuocr/internal/engine"
	"djvuocr/internal/zones"
)

const Name = "tesseract"

// languagePattern matches Tesseract traineddata identifiers such as "eng",
// "chi_sim" or "deu_frak".
var languagePattern = regexp.MustCompile(`^[a-z]{3}(_[a-zA-Z]+)?$`)

// Engine runs OCR through the Tesseract C API via gosseract.
type Engine struct {
	properties map[string]string
}

// New constructs the Tesseract back-end. It probes the installation by
// enumerating available languages, so a missing or broken Tesseract fails
// here rather than on the first page.
func New(_ context.Context, opts engine.Options) (*Engine, error) {
	const op = "New"

	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, engine.NewEngineError(Name, op, engine.ErrEngineNotFound, err.Error())
	}
	if len(langs) == 0 {
		return nil, engine.NewEngineError(Name, op, engine.ErrEngineNotFound, "no language data installed")
	}

	return &Engine{properties: opts.Properties}, nil
}

// Name returns the back-end identifier.
func (e *Engine) Name() string { return Name }

// ListLanguages enumerates the installed traineddata files.
func (e *Engine) ListLanguages(_ context.Context) ([]string, error) {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, engine.WrapEngineError(Name, "ListLanguages", engine.ErrUnknownLanguageList, err.Error())
	}
	slices.Sort(langs)
	return langs, nil
}

// DefaultLanguage returns the language used when none is configured.
func (e *Engine) DefaultLanguage() string { return "eng" }

// CheckLanguage validates the identifier syntax and verifies the language
// data is installed.
func (e *Engine) CheckLanguage(id string) error {
	const op = "CheckLanguage"

	if err := CheckLanguageSyntax(id); err != nil {
		return engine.WrapEngineError(Name, op, err, id)
	}
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return engine.WrapEngineError(Name, op, engine.ErrUnknownLanguageList, err.Error())
	}
	if !slices.Contains(langs, id) {
		return engine.NewEngineError(Name, op, engine.ErrMissingLanguagePack, id)
	}
	return nil
}

// CheckLanguageSyntax validates an identifier without touching the
// installation.
func CheckLanguageSyntax(id string) error {
	if !languagePattern.MatchString(id) {
		return engine.ErrInvalidLanguageID
	}
	return nil
}

// ImageFormat requests TIFF rasters; Leptonica reads both bitonal and
// full-color TIFF directly.
func (e *Engine) ImageFormat(bitsPerPixel int) engine.ImageFormat {
	return engine.ImageFormat{
		Extension:    "tif",
		DDjVuFormat:  "tiff",
		MIMEType:     "image/tiff",
		BitsPerPixel: bitsPerPixel,
	}
}

// Recognize runs Tesseract over the image and returns its hOCR output. The
// gosseract client is closed on every exit path.
func (e *Engine) Recognize(ctx context.Context, imagePath, language string, _ zones.Detail) (engine.RawOutput, error) {
	const op = "Recognize"

	if err := ctx.Err(); err != nil {
		return engine.RawOutput{}, engine.WrapEngineError(Name, op, err, "")
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImage(imagePath); err != nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, err.Error())
	}
	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, err.Error())
		}
	}
	for k, v := range e.properties {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, "set variable "+k+": "+err.Error())
		}
	}

	hocr, err := client.HOCRText()
	if err != nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, err.Error())
	}
	return engine.RawOutput{Data: []byte(hocr), Extension: "hocr"}, nil
}

// ExtractText parses the hOCR output into a zone tree and rotates it into
// page coordinates.
func (e *Engine) ExtractText(raw engine.RawOutput, opts engine.ExtractOptions) (*zones.Zone, error) {
	const op = "ExtractText"

	page, err := zonesFromHOCR(raw.Data, opts.Details)
	if err != nil {
		return nil, engine.WrapEngineError(Name, op, err, "")
	}
	if page.BBox == (zones.BBox{}) {
		w, h := opts.PageWidth, opts.PageHeight
		if opts.Rotation == 90 || opts.Rotation == 270 {
			w, h = h, w
		}
		page.BBox = zones.BBox{X1: w, Y1: h}
	}
	if err := page.Rotate(opts.Rotation, opts.PageWidth, opts.PageHeight); err != nil {
		return nil, engine.WrapEngineError(Name, op, err, "")
	}
	return page, nil
}
