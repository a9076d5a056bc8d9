package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"djvuocr/internal/djvu"
	"djvuocr/internal/zones"
)

// Transcript accumulates the per-page text layer as a djvused script. It is
// written strictly in ascending page order by the ordered assembler, which is
// the only writer, so no locking is needed.
type Transcript struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// CreateTranscript creates a transcript file at path.
func CreateTranscript(path string) (*Transcript, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}
	return &Transcript{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// NewTranscript wraps an arbitrary writer (used by tests and dry runs).
func NewTranscript(w io.Writer) *Transcript {
	return &Transcript{w: bufio.NewWriter(w)}
}

// Path returns the on-disk location, or "" for writer-backed transcripts.
func (t *Transcript) Path() string { return t.path }

// RemoveText emits a directive clearing all existing hidden text before any
// page entry.
func (t *Transcript) RemoveText() error {
	_, err := t.w.WriteString("remove-txt\n")
	return err
}

// WritePage appends one page entry. A nil zone records the page as having no
// text layer (its existing hidden text is cleared by the empty set-txt).
func (t *Transcript) WritePage(p djvu.Page, zone *zones.Zone) error {
	if err := t.writeSelect(p); err != nil {
		return err
	}
	if _, err := t.w.WriteString("set-txt\n"); err != nil {
		return err
	}
	if zone != nil {
		if err := zone.WriteSexpr(t.w); err != nil {
			return err
		}
	}
	_, err := t.w.WriteString("\n.\n\n")
	return err
}

// writeSelect addresses the page by identifier, falling back to the page
// number when the identifier is unusable in a quoted script string.
func (t *Transcript) writeSelect(p djvu.Page) error {
	if usableID(p.ID) {
		_, err := fmt.Fprintf(t.w, "select '%s'\n", escapeID(p.ID))
		return err
	}
	_, err := fmt.Fprintf(t.w, "select %d\n", p.Number)
	return err
}

// Flush pushes buffered entries to the underlying file.
func (t *Transcript) Flush() error {
	return t.w.Flush()
}

// Close flushes and closes the transcript. The file itself is left on disk;
// deletion is the run's decision (it is retained for diagnostics on abort).
func (t *Transcript) Close() error {
	if err := t.w.Flush(); err != nil {
		if t.f != nil {
			t.f.Close()
		}
		return err
	}
	if t.f == nil {
		return nil
	}
	return t.f.Close()
}

func usableID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

func escapeID(id string) string {
	id = strings.ReplaceAll(id, `\`, `\\`)
	return strings.ReplaceAll(id, `'`, `\'`)
}
