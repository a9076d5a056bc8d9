package djvu

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"djvuocr/internal/engine"
)

// RenderMode selects which image layers of a page are rasterized for OCR.
type RenderMode int

const (
	// RenderMask rasterizes the bitonal stencil only (the usual choice for
	// scanned text).
	RenderMask RenderMode = iota
	// RenderForeground rasterizes the foreground layer.
	RenderForeground
	// RenderAll rasterizes the full color page.
	RenderAll
)

// ParseRenderMode parses a render mode name.
func ParseRenderMode(s string) (RenderMode, error) {
	switch s {
	case "mask":
		return RenderMask, nil
	case "foreground":
		return RenderForeground, nil
	case "all":
		return RenderAll, nil
	}
	return 0, fmt.Errorf("invalid render mode %q (mask, foreground or all)", s)
}

func (m RenderMode) String() string {
	switch m {
	case RenderMask:
		return "mask"
	case RenderForeground:
		return "foreground"
	case RenderAll:
		return "all"
	}
	return "render(" + strconv.Itoa(int(m)) + ")"
}

// BitsPerPixel returns the raster depth the mode produces.
func (m RenderMode) BitsPerPixel() int {
	if m == RenderMask {
		return 1
	}
	return 24
}

func (m RenderMode) ddjvuMode() string {
	switch m {
	case RenderForeground:
		return "foreground"
	case RenderAll:
		return "color"
	default:
		return "mask"
	}
}

// RenderPage rasterizes one page into dest using ddjvu. A page whose
// requested layers cannot be decoded yields ErrNoImage.
func (d *Document) RenderPage(ctx context.Context, p Page, mode RenderMode, format engine.ImageFormat, dest string) error {
	const op = "RenderPage"

	cmd := exec.CommandContext(ctx, "ddjvu",
		"-format="+format.DDjVuFormat,
		"-mode="+mode.ddjvuMode(),
		"-page="+strconv.Itoa(p.Number),
		d.Path, dest,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if isNoImage(msg) {
			return &DocumentError{Op: op, Path: d.Path, Err: ErrNoImage, Details: fmt.Sprintf("page %d", p.Number)}
		}
		if msg == "" {
			msg = err.Error()
		}
		return &DocumentError{Op: op, Path: d.Path, Err: fmt.Errorf("ddjvu: %s", msg), Details: fmt.Sprintf("page %d", p.Number)}
	}

	if info, err := os.Stat(dest); err != nil || info.Size() == 0 {
		return &DocumentError{Op: op, Path: d.Path, Err: ErrNoImage, Details: fmt.Sprintf("page %d produced no raster", p.Number)}
	}
	return nil
}

// isNoImage classifies ddjvu failures that mean the page simply has no
// renderable image in the requested layers, as opposed to a broken document.
func isNoImage(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "layer") ||
		strings.Contains(s, "not available") ||
		strings.Contains(s, "empty image")
}
