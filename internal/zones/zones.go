// Package zones models structured OCR output for a single page as a tree of
// nested text zones, down to a configurable granularity (line, word or
// character), and renders it in the S-expression syntax understood by djvused.
//
// Engines build zone trees in raster coordinates (origin in the upper-left
// corner, y growing downwards). Rotate converts a tree into DjVu page
// coordinates (origin in the lower-left corner of the unrotated page),
// accounting for the page orientation.
package zones

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ZoneType identifies a level of the zone hierarchy.
type ZoneType int

const (
	Page ZoneType = iota + 1
	Column
	Region
	Para
	Line
	Word
	Char
)

// String returns the djvused keyword for the zone type.
func (t ZoneType) String() string {
	switch t {
	case Page:
		return "page"
	case Column:
		return "column"
	case Region:
		return "region"
	case Para:
		return "para"
	case Line:
		return "line"
	case Word:
		return "word"
	case Char:
		return "char"
	}
	return fmt.Sprintf("zone(%d)", int(t))
}

// Detail is the finest zone type an extraction should descend to.
type Detail = ZoneType

// BBox is an axis-aligned bounding box. The coordinate interpretation depends
// on whether the zone tree has been rotated yet; see the package comment.
type BBox struct {
	X0, Y0, X1, Y1 int
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() int { return b.X1 - b.X0 }

// Height returns the vertical extent of the box.
func (b BBox) Height() int { return b.Y1 - b.Y0 }

// Zone is one node of the page text hierarchy. A zone carries either Text
// (leaf) or Children, never both.
type Zone struct {
	Type     ZoneType
	BBox     BBox
	Text     string
	Children []*Zone
}

// NewPage returns a page zone spanning a raster of the given size.
func NewPage(width, height int) *Zone {
	return &Zone{Type: Page, BBox: BBox{0, 0, width, height}}
}

// Add appends a child zone and returns it.
func (z *Zone) Add(child *Zone) *Zone {
	z.Children = append(z.Children, child)
	return child
}

// Rotate converts the tree from raster coordinates into DjVu page coordinates
// for a page of pageW x pageH pixels displayed with the given orientation.
// rotation must be one of 0, 90, 180 or 270 (degrees counterclockwise).
func (z *Zone) Rotate(rotation, pageW, pageH int) error {
	switch rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("zones: unsupported rotation %d", rotation)
	}
	z.rotate(rotation, pageW, pageH)
	return nil
}

func (z *Zone) rotate(rotation, w, h int) {
	z.BBox = rotateBBox(z.BBox, rotation, w, h)
	for _, c := range z.Children {
		c.rotate(rotation, w, h)
	}
}

// rotateBBox maps both corners of a raster-space box into page space and
// renormalizes. For 90/270 the raster has swapped dimensions (h x w).
func rotateBBox(b BBox, rotation, w, h int) BBox {
	x0, y0 := rotatePoint(b.X0, b.Y0, rotation, w, h)
	x1, y1 := rotatePoint(b.X1, b.Y1, rotation, w, h)
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return BBox{x0, y0, x1, y1}
}

func rotatePoint(x, y, rotation, w, h int) (int, int) {
	switch rotation {
	case 90:
		return w - y, h - x
	case 180:
		return w - x, y
	case 270:
		return y, x
	default:
		return x, h - y
	}
}

// WriteSexpr renders the zone tree as a djvused S-expression. For a page zone
// the output starts with "(page x0 y0 x1 y1" followed by the quoted text or
// the child expressions.
func (z *Zone) WriteSexpr(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "(%s %d %d %d %d", z.Type, z.BBox.X0, z.BBox.Y0, z.BBox.X1, z.BBox.Y1); err != nil {
		return err
	}
	if len(z.Children) == 0 {
		if _, err := io.WriteString(w, " "+Quote(z.Text)); err != nil {
			return err
		}
	} else {
		for _, c := range z.Children {
			if _, err := io.WriteString(w, "\n "); err != nil {
				return err
			}
			if err := c.WriteSexpr(w); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, ")")
	return err
}

// Sexpr renders the zone tree to a string.
func (z *Zone) Sexpr() string {
	var sb strings.Builder
	z.WriteSexpr(&sb) // strings.Builder never fails
	return sb.String()
}

// Quote escapes a string for use inside a djvused S-expression. Backslashes
// and double quotes get a backslash escape; other control bytes are emitted as
// octal escapes.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, b := range []byte(s) {
		switch {
		case b == '"' || b == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(b)
		case b < 0x20:
			fmt.Fprintf(&sb, "\\%03o", b)
		default:
			sb.WriteByte(b)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// Sanitize replaces invalid UTF-8 sequences and control characters other than
// CR, LF and TAB with the Unicode replacement character.
func Sanitize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r == utf8.RuneError:
			sb.WriteRune('�')
		case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
			sb.WriteRune('�')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// CharZones splits a word into per-character zones by even horizontal
// subdivision of the word box. Backends that cannot report symbol-level
// geometry use this to honor character granularity.
func CharZones(word string, b BBox) []*Zone {
	runes := []rune(word)
	if len(runes) == 0 {
		return nil
	}
	out := make([]*Zone, 0, len(runes))
	w := b.Width()
	for i, r := range runes {
		x0 := b.X0 + w*i/len(runes)
		x1 := b.X0 + w*(i+1)/len(runes)
		out = append(out, &Zone{
			Type: Char,
			BBox: BBox{x0, b.Y0, x1, b.Y1},
			Text: string(r),
		})
	}
	return out
}
