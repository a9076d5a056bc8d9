package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"djvuocr/internal/djvu"
	"djvuocr/internal/engine"
	"djvuocr/internal/logger"
)

// RawSink persists each page's raw engine output into a directory before the
// output is discarded. It is a side channel: failures are logged and never
// affect the main transcript.
type RawSink struct {
	dir      string
	template string
	log      zerolog.Logger
}

// NewRawSink validates the target directory and the filename template up
// front, so configuration mistakes surface before any page work.
func NewRawSink(dir, template string) (*RawSink, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("raw OCR directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("raw OCR directory: %s is not a directory", dir)
	}
	if _, err := ExpandTemplate(template, 0, ""); err != nil {
		return nil, fmt.Errorf("raw OCR filename template %q: %w", template, err)
	}
	return &RawSink{
		dir:      dir,
		template: template,
		log:      logger.WithComponent("raw-sink"),
	}, nil
}

// Save writes the raw output for one page. Best effort only.
func (s *RawSink) Save(p djvu.Page, raw engine.RawOutput) {
	name, err := ExpandTemplate(s.template, p.Number, p.ID)
	if err != nil {
		s.log.Warn().Err(err).Int("page", p.Number).Msg("Cannot expand raw OCR filename template")
		return
	}
	path := filepath.Join(s.dir, name+"."+raw.Extension)
	if err := os.WriteFile(path, raw.Data, 0o644); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("Cannot save raw OCR output")
	}
}
