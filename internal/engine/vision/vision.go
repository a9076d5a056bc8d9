// Package vision implements the engine contract on top of the Google Cloud
// Vision API using document text detection. Raw output is the annotate
// response serialized as JSON, so the raw-OCR sink stores exactly what the
// service returned.
//
// Required environment variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: path to a service account JSON file, OR
//   - GOOGLE_CREDENTIALS: inline JSON credentials string
//
// Without either, application default credentials are tried.
package vision

import (
	"context"
	"os"
	"regexp"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"

	"djvuocr/internal/engine"
	"djvuocr/internal/zones"
)

const Name = "vision"

// languagePattern accepts BCP-47-style hints such as "en", "deu" or "zh-Hans".
var languagePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]+)*$`)

// Engine submits page rasters to the Cloud Vision image annotator.
type Engine struct {
	client *vision.ImageAnnotatorClient
}

// New constructs the Cloud Vision back-end with credentials from the
// environment. A client that cannot be created surfaces as ErrEngineNotFound
// so the failure happens before any page work.
func New(ctx context.Context, _ engine.Options) (*Engine, error) {
	const op = "New"

	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, engine.NewEngineError(Name, op, engine.ErrEngineNotFound, err.Error())
	}
	return &Engine{client: client}, nil
}

// NewWithClient constructs the back-end around an existing client (for testing).
func NewWithClient(client *vision.ImageAnnotatorClient) *Engine {
	return &Engine{client: client}
}

// Name returns the back-end identifier.
func (e *Engine) Name() string { return Name }

// Close releases the underlying API client.
func (e *Engine) Close() error { return e.client.Close() }

// ListLanguages fails: the Vision API provides no discovery mechanism.
func (e *Engine) ListLanguages(_ context.Context) ([]string, error) {
	return nil, engine.NewEngineError(Name, "ListLanguages", engine.ErrUnknownLanguageList, "")
}

// DefaultLanguage returns the language hint used when none is configured.
func (e *Engine) DefaultLanguage() string { return "en" }

// CheckLanguage validates the hint syntax. Installation cannot be verified
// against a remote service, so a well-formed hint yields
// ErrUnknownLanguageList and callers proceed optimistically.
func (e *Engine) CheckLanguage(id string) error {
	const op = "CheckLanguage"
	if !languagePattern.MatchString(id) {
		return engine.NewEngineError(Name, op, engine.ErrInvalidLanguageID, id)
	}
	return engine.NewEngineError(Name, op, engine.ErrUnknownLanguageList, "")
}

// ImageFormat requests TIFF rasters, which the file annotation endpoint
// accepts directly.
func (e *Engine) ImageFormat(bitsPerPixel int) engine.ImageFormat {
	return engine.ImageFormat{
		Extension:    "tif",
		DDjVuFormat:  "tiff",
		MIMEType:     "image/tiff",
		BitsPerPixel: bitsPerPixel,
	}
}

// Recognize submits the raster for document text detection and returns the
// annotate response as JSON.
func (e *Engine) Recognize(ctx context.Context, imagePath, language string, _ zones.Detail) (engine.RawOutput, error) {
	const op = "Recognize"

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, err.Error())
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				Content:  data,
				MimeType: "image/tiff",
			},
			Features: []*visionpb.Feature{{
				Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
			}},
			ImageContext: &visionpb.ImageContext{
				LanguageHints: languageHints(language),
			},
			Pages: []int32{1},
		}},
	}

	resp, err := e.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, err.Error())
	}
	if len(resp.Responses) == 0 || len(resp.Responses[0].Responses) == 0 {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, "empty response")
	}
	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, fileResp.Error.Message)
	}
	imgResp := fileResp.Responses[0]
	if imgResp.Error != nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, engine.ErrRecognitionFailed, imgResp.Error.Message)
	}

	raw, err := protojson.Marshal(imgResp)
	if err != nil {
		return engine.RawOutput{}, engine.NewEngineError(Name, op, err, "serialize response")
	}
	return engine.RawOutput{Data: raw, Extension: "json"}, nil
}

// ExtractText rebuilds the annotate response and converts its full text
// annotation into a zone tree: block, paragraph, word and symbol map onto
// region, para, word and char zones.
func (e *Engine) ExtractText(raw engine.RawOutput, opts engine.ExtractOptions) (*zones.Zone, error) {
	const op = "ExtractText"

	var resp visionpb.AnnotateImageResponse
	if err := protojson.Unmarshal(raw.Data, &resp); err != nil {
		return nil, engine.NewEngineError(Name, op, engine.ErrMalformedOutput, err.Error())
	}

	rasterW, rasterH := opts.PageWidth, opts.PageHeight
	if opts.Rotation == 90 || opts.Rotation == 270 {
		rasterW, rasterH = rasterH, rasterW
	}
	page := zones.NewPage(rasterW, rasterH)

	fta := resp.FullTextAnnotation
	if fta != nil && len(fta.Pages) > 0 {
		p := fta.Pages[0]
		if p.Width > 0 && p.Height > 0 {
			page.BBox = zones.BBox{X1: int(p.Width), Y1: int(p.Height)}
		}
		for _, block := range p.Blocks {
			region := &zones.Zone{Type: zones.Region, BBox: bboxFromPoly(block.BoundingBox)}
			for _, para := range block.Paragraphs {
				region.Add(paraZone(para, opts.Details))
			}
			if len(region.Children) > 0 {
				page.Add(region)
			}
		}
	}

	if err := page.Rotate(opts.Rotation, opts.PageWidth, opts.PageHeight); err != nil {
		return nil, engine.WrapEngineError(Name, op, err, "")
	}
	return page, nil
}

func paraZone(para *visionpb.Paragraph, details zones.Detail) *zones.Zone {
	z := &zones.Zone{Type: zones.Para, BBox: bboxFromPoly(para.BoundingBox)}
	if details <= zones.Line {
		// The Vision hierarchy has no line level; a paragraph is the closest
		// aggregate when only line detail is requested.
		z.Text = paraText(para)
		return z
	}
	for _, word := range para.Words {
		w := &zones.Zone{Type: zones.Word, BBox: bboxFromPoly(word.BoundingBox)}
		if details >= zones.Char {
			for _, sym := range word.Symbols {
				w.Add(&zones.Zone{
					Type: zones.Char,
					BBox: bboxFromPoly(sym.BoundingBox),
					Text: zones.Sanitize(sym.Text),
				})
			}
		} else {
			w.Text = zones.Sanitize(wordText(word))
		}
		if w.Text != "" || len(w.Children) > 0 {
			z.Add(w)
		}
	}
	return z
}

func wordText(word *visionpb.Word) string {
	var sb []byte
	for _, sym := range word.Symbols {
		sb = append(sb, sym.Text...)
	}
	return string(sb)
}

func paraText(para *visionpb.Paragraph) string {
	parts := make([]string, 0, len(para.Words))
	for _, w := range para.Words {
		if t := zones.Sanitize(wordText(w)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func bboxFromPoly(poly *visionpb.BoundingPoly) zones.BBox {
	if poly == nil || len(poly.Vertices) == 0 {
		return zones.BBox{}
	}
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

func languageHints(language string) []string {
	if language == "" {
		return nil
	}
	return []string{language}
}
