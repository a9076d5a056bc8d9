package tesseract

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"djvuocr/internal/engine"
	"djvuocr/internal/zones"
)

// hOCR class names mapped onto the zone hierarchy. Line-like classes all
// collapse to a line zone.
var hocrClasses = map[string]zones.ZoneType{
	"ocr_page":      zones.Page,
	"ocr_carea":     zones.Column,
	"ocr_par":       zones.Para,
	"ocr_line":      zones.Line,
	"ocr_textfloat": zones.Line,
	"ocr_caption":   zones.Line,
	"ocr_header":    zones.Line,
	"ocrx_word":     zones.Word,
}

// zonesFromHOCR parses an hOCR document into a zone tree pruned to the
// requested granularity. The returned tree is in raster coordinates.
func zonesFromHOCR(data []byte, details zones.Detail) (*zones.Zone, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrMalformedOutput, err)
	}

	page := findPage(doc)
	if page == nil {
		return nil, fmt.Errorf("%w: no ocr_page element", engine.ErrMalformedOutput)
	}
	prune(page, details)
	return page, nil
}

func findPage(n *html.Node) *zones.Zone {
	if n.Type == html.ElementNode {
		if t, ok := hocrClasses[nodeClass(n)]; ok && t == zones.Page {
			z := &zones.Zone{Type: zones.Page, BBox: nodeBBox(n)}
			collectChildren(n, z)
			return z
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if z := findPage(c); z != nil {
			return z
		}
	}
	return nil
}

// collectChildren walks the element subtree below an hOCR container,
// appending recognized zones to parent. Unknown wrappers (div/span without an
// hOCR class) are descended through transparently.
func collectChildren(n *html.Node, parent *zones.Zone) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		t, ok := hocrClasses[nodeClass(c)]
		if !ok || t == zones.Page {
			collectChildren(c, parent)
			continue
		}
		z := &zones.Zone{Type: t, BBox: nodeBBox(c)}
		if t == zones.Word {
			z.Text = zones.Sanitize(strings.TrimSpace(textContent(c)))
		} else {
			collectChildren(c, z)
		}
		if z.Text != "" || len(z.Children) > 0 {
			parent.Add(z)
		}
	}
}

// prune cuts the tree down to the requested granularity: zones at the cutoff
// level become text leaves, and word zones grow synthetic character children
// when character detail is requested.
func prune(z *zones.Zone, details zones.Detail) {
	for _, c := range z.Children {
		switch {
		case details == zones.Char && c.Type == zones.Word:
			text := c.Text
			c.Text = ""
			c.Children = zones.CharZones(text, c.BBox)
		case c.Type >= details:
			c.Text = aggregateText(c)
			c.Children = nil
		default:
			prune(c, details)
		}
	}
}

// aggregateText joins the leaf texts under a zone with single spaces.
func aggregateText(z *zones.Zone) string {
	if len(z.Children) == 0 {
		return z.Text
	}
	parts := make([]string, 0, len(z.Children))
	for _, c := range z.Children {
		if s := aggregateText(c); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func nodeClass(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return a.Val
		}
	}
	return ""
}

// nodeBBox parses the "bbox x0 y0 x1 y1" property from an hOCR title
// attribute. A missing or malformed box yields a zero box, which downstream
// consumers tolerate.
func nodeBBox(n *html.Node) zones.BBox {
	var title string
	for _, a := range n.Attr {
		if a.Key == "title" {
			title = a.Val
			break
		}
	}
	for _, prop := range strings.Split(title, ";") {
		fields := strings.Fields(strings.TrimSpace(prop))
		if len(fields) != 5 || fields[0] != "bbox" {
			continue
		}
		var b zones.BBox
		if _, err := fmt.Sscanf(strings.Join(fields[1:], " "), "%d %d %d %d", &b.X0, &b.Y0, &b.X1, &b.Y1); err == nil {
			return b
		}
	}
	return zones.BBox{}
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
