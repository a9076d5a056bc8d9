// Package djvu adapts a DjVu document into the page descriptors and rasters
// the OCR pipeline consumes. It shells out to the DjVuLibre tools: djvused
// for page enumeration, djvudump for page geometry and ddjvu for rendering.
// No Go bindings for DjVuLibre exist, so all document access is subprocess
// based, the same way the format's own tooling works.
package djvu

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Page describes one page of the requested work set.
type Page struct {
	// Index is the 0-based position within the requested page set. Indices
	// are dense and contiguous; the result store is keyed by them.
	Index int
	// Number is the 1-based page number within the document.
	Number int
	// ID is the document-scoped page identifier. May be empty for documents
	// whose component names cannot be enumerated.
	ID string
	// Rotation is the page orientation in degrees counterclockwise.
	Rotation int
	// Width and Height are the pixel dimensions of the unrotated page.
	Width  int
	Height int
	// DPI is the page resolution.
	DPI int
}

// Document is an open DjVu document.
type Document struct {
	Path  string
	pages []Page
}

var (
	// djvused -e ls lines: "   1 P      2157  p0001.djvu"
	lsPageLine = regexp.MustCompile(`^\s*(\d+)\s+P\s+\d+\s+(\S+)`)
	// djvudump INFO lines: "INFO [10] DjVu 2550x3300, v24, 300 dpi, gamma=2.2"
	infoLine        = regexp.MustCompile(`INFO \[\d+\]\s+DjVu (\d+)x(\d+), v\d+, (\d+) dpi`)
	orientationAttr = regexp.MustCompile(`orientation=(\d+)`)
)

// DjVuInfo orientation codes.
var orientationDegrees = map[int]int{1: 0, 6: 90, 2: 180, 5: 270}

// Open reads the page structure of the document at path.
func Open(ctx context.Context, path string) (*Document, error) {
	const op = "Open"

	for _, tool := range []string{"djvused", "djvudump", "ddjvu"} {
		if _, err := exec.LookPath(tool); err != nil {
			return nil, &DocumentError{Op: op, Path: path, Err: ErrToolNotFound, Details: tool}
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &DocumentError{Op: op, Path: path, Err: err}
	}

	count, err := pageCount(ctx, path)
	if err != nil {
		return nil, &DocumentError{Op: op, Path: path, Err: err, Details: "count pages"}
	}
	ids, err := pageIDs(ctx, path)
	if err != nil {
		return nil, &DocumentError{Op: op, Path: path, Err: err, Details: "list pages"}
	}
	geometry, err := pageGeometry(ctx, path)
	if err != nil {
		return nil, &DocumentError{Op: op, Path: path, Err: err, Details: "dump structure"}
	}

	pages := make([]Page, count)
	for i := range pages {
		p := Page{Index: i, Number: i + 1}
		if i < len(ids) {
			p.ID = ids[i]
		}
		if i < len(geometry) {
			p.Width = geometry[i].Width
			p.Height = geometry[i].Height
			p.DPI = geometry[i].DPI
			p.Rotation = geometry[i].Rotation
		}
		pages[i] = p
	}
	return &Document{Path: path, pages: pages}, nil
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int { return len(d.pages) }

// SelectPages resolves a list of 1-based page numbers into descriptors with
// dense 0-based indices. A nil list selects every page.
func (d *Document) SelectPages(numbers []int) ([]Page, error) {
	if numbers == nil {
		out := make([]Page, len(d.pages))
		copy(out, d.pages)
		return out, nil
	}
	out := make([]Page, 0, len(numbers))
	for i, n := range numbers {
		if n < 1 || n > len(d.pages) {
			return nil, &DocumentError{Op: "SelectPages", Path: d.Path, Err: ErrPageOutOfRange, Details: strconv.Itoa(n)}
		}
		p := d.pages[n-1]
		p.Index = i
		out = append(out, p)
	}
	return out, nil
}

func pageCount(ctx context.Context, path string) (int, error) {
	out, err := runTool(ctx, "djvused", "-e", "n", path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("unexpected page count %q", strings.TrimSpace(string(out)))
	}
	return n, nil
}

// pageIDs parses the component listing. Documents without enumerable
// components (e.g. single-page files) yield an empty list; pages then fall
// back to numeric identifiers downstream.
func pageIDs(ctx context.Context, path string) ([]string, error) {
	out, err := runTool(ctx, "djvused", "-e", "ls", path)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, line := range strings.Split(string(out), "\n") {
		if m := lsPageLine.FindStringSubmatch(line); m != nil {
			ids = append(ids, m[2])
		}
	}
	return ids, nil
}

type geometry struct {
	Width, Height, DPI, Rotation int
}

func pageGeometry(ctx context.Context, path string) ([]geometry, error) {
	out, err := runTool(ctx, "djvudump", path)
	if err != nil {
		return nil, err
	}
	var gs []geometry
	for _, line := range strings.Split(string(out), "\n") {
		m := infoLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		g := geometry{}
		g.Width, _ = strconv.Atoi(m[1])
		g.Height, _ = strconv.Atoi(m[2])
		g.DPI, _ = strconv.Atoi(m[3])
		if om := orientationAttr.FindStringSubmatch(line); om != nil {
			code, _ := strconv.Atoi(om[1])
			g.Rotation = orientationDegrees[code]
		}
		gs = append(gs, g)
	}
	return gs, nil
}

func runTool(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%s: %s", name, msg)
	}
	return stdout.Bytes(), nil
}
