// Package docai implements the engine contract on top of Google Document AI.
// Each page raster is submitted to an OCR processor and the returned Document
// is serialized as JSON for the raw-OCR sink.
//
// Required environment variables (unless overridden via -X properties):
//   - GOOGLE_PROJECT_ID or GOOGLE_CLOUD_PROJECT
//   - GOOGLE_PROCESSOR_ID or DOCUMENT_AI_PROCESSOR_ID
//
// Optional:
//   - GOOGLE_LOCATION or GOOGLE_CLOUD_LOCATION (default "us")
//   - GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS
package docai

import (
	"context"
	"fmt"
	"os"
	"regexp"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"

	"djvuocr/internal/engine"
	"djvuocr/internal/zones"
)

const Name = "documentai"

var languagePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]+)*$`)

// Config identifies the Document AI processor to call.
type Config struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

// Engine submits page rasters to a Document AI OCR processor.
type Engine struct {
	client *documentai.DocumentProcessorClient
	config Config
}

// New constructs the Document AI back-end. Processor coordinates come from
// the -X properties "project", "location" and "processor", falling back to
// the environment. Missing configuration or an unreachable service surfaces
// as ErrEngineNotFound.
func New(ctx context.Context, opts engine.Options) (*Engine, error) {
	const op = "New"

	config := Config{
		ProjectID:   property(opts, "project", "GOOGLE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
		Location:    property(opts, "location", "GOOGLE_LOCATION", "GOOGLE_CLOUD_LOCATION"),
		ProcessorID: property(opts, "processor", "GOOGLE_PROCESSOR_ID", "DOCUMENT_AI_PROCESSOR_ID"),
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, engine.NewEngineError(Name, op, engine.ErrEngineNotFound, "project and processor id are required")
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, engine.NewEngineError(Name, op, engine.ErrEngineNotFound, err.Error())
	}
	return &Engine{client: client, config: config}, nil
}

// NewWithClient constructs the back-end around an existing client (for testing).
func NewWithClient(config Config, client *documentai.DocumentProcessorClient) *Engine {
	return &Engine{client: client, config: config}
}

// Name returns the back-end identifier.
func (e *Engine) Name() string { return Name }

// Close releases the underlying API client.
func (e *Engine) Close() error { return e.client.Close() }

// ListLanguages fails: Document AI provides no discovery mechanism.
func (e *Engine) ListLanguages(_ context.Context) ([]string, error) {
	return nil, engine.NewEngineError(Name, "ListLanguages", engine.ErrUnknownLanguageList, "")
}

// DefaultLanguage returns the language hint used when none is configured.
func (e *Engine) DefaultLanguage() string { return "en" }

// CheckLanguage validates the hint syntax; installation cannot be verified
// against a remote service.
func (e *Engine) CheckLanguage(id string) error {
	const op = "CheckLanguage"
	if !languagePattern.MatchString(id) {
		return engine.NewEngineError(Name, op, engine.ErrInvalidLanguageID, id)
	}
	return engine.NewEngineError(Name, op, engine.ErrUnknownLanguageList, "")
}

// ImageFormat requests TIFF rasters.
func (e *Engine) ImageFormat(bitsPerPixel int) engine.ImageFormat {
	return engine.ImageFormat{
		Extension:    "tif",
		DDjVuFormat:  "tiff",
		MIMEType:     "image/tiff",
		BitsPerPixel: bitsPerPixel,
	}
}

// Recognize submits the raster to the processor and returns the resulting
// Document serialized as JSON.
func (e *Engine) Recognize(ctx context.Context, imagePath, _ string, _ zones.Detail) (engine.RawOutput, error) {
	const op = "Recognize"

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, err.Error())
	}

	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		e.config.ProjectID, e.config.Location, e.config.ProcessorID)
	req := &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "image/tiff",
			},
		},
	}

	resp, err := e.client.ProcessDocument(ctx, req)
	if err != nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, err.Error())
	}
	if resp.Document == nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, "empty document in response")
	}

	raw, err := protojson.Marshal(resp.Document)
	if err != nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, err, "serialize document")
	}
	return engine.RawOutput{Data: raw, Extension: "json"}, nil
}

// ExtractText rebuilds the Document and converts its first page into a zone
// tree. Lines become line zones; with word or character detail the page
// tokens are attached to the line whose box contains them.
func (e *Engine) ExtractText(raw engine.RawOutput, opts engine.ExtractOptions) (*zones.Zone, error) {
	const op = "ExtractText"

	var doc documentaipb.Document
	if err := protojson.Unmarshal(raw.Data, &doc); err != nil {
		return nil, engine.NewEngineError(Name, op, engine.ErrMalformedOutput, err.Error())
	}

	rasterW, rasterH := opts.PageWidth, opts.PageHeight
	if opts.Rotation == 90 || opts.Rotation == 270 {
		rasterW, rasterH = rasterH, rasterW
	}
	page := zones.NewPage(rasterW, rasterH)

	if len(doc.Pages) > 0 {
		p := doc.Pages[0]
		if d := p.Dimension; d != nil && d.Width > 0 && d.Height > 0 {
			page.BBox = zones.BBox{X1: int(d.Width), Y1: int(d.Height)}
		}
		w, h := page.BBox.Width(), page.BBox.Height()
		for _, line := range p.Lines {
			lz := &zones.Zone{Type: zones.Line, BBox: layoutBBox(line.Layout, w, h)}
			if opts.Details <= zones.Line {
				lz.Text = zones.Sanitize(anchorText(doc.Text, line.Layout))
			} else {
				attachTokens(lz, &doc, p.Tokens, w, h, opts.Details)
			}
			if lz.Text != "" || len(lz.Children) > 0 {
				page.Add(lz)
			}
		}
	}

	if err := page.Rotate(opts.Rotation, opts.PageWidth, opts.PageHeight); err != nil {
		return nil, engine.WrapEngineError(Name, op, err, "")
	}
	return page, nil
}

// attachTokens adds the tokens whose box center falls inside the line box as
// word zones, optionally subdivided into character zones.
func attachTokens(line *zones.Zone, doc *documentaipb.Document, tokens []*documentaipb.Document_Page_Token, w, h int, details zones.Detail) {
	for _, tok := range tokens {
		b := layoutBBox(tok.Layout, w, h)
		cx, cy := (b.X0+b.X1)/2, (b.Y0+b.Y1)/2
		if cx < line.BBox.X0 || cx > line.BBox.X1 || cy < line.BBox.Y0 || cy > line.BBox.Y1 {
			continue
		}
		text := zones.Sanitize(trimToken(anchorText(doc.Text, tok.Layout)))
		if text == "" {
			continue
		}
		wz := &zones.Zone{Type: zones.Word, BBox: b}
		if details >= zones.Char {
			wz.Children = zones.CharZones(text, b)
		} else {
			wz.Text = text
		}
		line.Add(wz)
	}
}

func trimToken(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}

// anchorText resolves a layout's text anchor against the document text.
func anchorText(text string, layout *documentaipb.Document_Page_Layout) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	var out []byte
	for _, seg := range layout.TextAnchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 || end > len(text) || start > end {
			continue
		}
		out = append(out, text[start:end]...)
	}
	return string(out)
}

// layoutBBox converts a layout bounding poly to a pixel box, resolving
// normalized vertices against the page dimensions when needed.
func layoutBBox(layout *documentaipb.Document_Page_Layout, w, h int) zones.BBox {
	if layout == nil || layout.BoundingPoly == nil {
		return zones.BBox{}
	}
	poly := layout.BoundingPoly
	if len(poly.Vertices) > 0 {
		b := zones.BBox{
			X0: int(poly.Vertices[0].X), Y0: int(poly.Vertices[0].Y),
			X1: int(poly.Vertices[0].X), Y1: int(poly.Vertices[0].Y),
		}
		for _, v := range poly.Vertices[1:] {
			b.X0 = min(b.X0, int(v.X))
			b.Y0 = min(b.Y0, int(v.Y))
			b.X1 = max(b.X1, int(v.X))
			b.Y1 = max(b.Y1, int(v.Y))
		}
		return b
	}
	if len(poly.NormalizedVertices) > 0 {
		v0 := poly.NormalizedVertices[0]
		b := zones.BBox{
			X0: int(v0.X * float32(w)), Y0: int(v0.Y * float32(h)),
			X1: int(v0.X * float32(w)), Y1: int(v0.Y * float32(h)),
		}
		for _, v := range poly.NormalizedVertices[1:] {
			b.X0 = min(b.X0, int(v.X*float32(w)))
			b.Y0 = min(b.Y0, int(v.Y*float32(h)))
			b.X1 = max(b.X1, int(v.X*float32(w)))
			b.Y1 = max(b.Y1, int(v.Y*float32(h)))
		}
		return b
	}
	return zones.BBox{}
}

func property(opts engine.Options, key string, envKeys ...string) string {
	if v, ok := opts.Properties[key]; ok && v != "" {
		return v
	}
	for _, k := range envKeys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
