package zones

import (
	"testing"
)

func TestRotateBBox(t *testing.T) {
	// A page of 100x200 pixels. For 90 and 270 degree orientations the
	// raster has swapped dimensions, so the input box lives in a 200x100
	// space.
	const w, h = 100, 200
	tests := []struct {
		rotation int
		in       BBox
		want     BBox
	}{
		{0, BBox{10, 20, 30, 40}, BBox{10, 160, 30, 180}},
		{180, BBox{10, 20, 30, 40}, BBox{70, 20, 90, 40}},
		{90, BBox{10, 20, 30, 40}, BBox{60, 170, 80, 190}},
		{270, BBox{10, 20, 30, 40}, BBox{20, 10, 40, 30}},
	}
	for _, tt := range tests {
		got := rotateBBox(tt.in, tt.rotation, w, h)
		if got != tt.want {
			t.Errorf("rotateBBox(%v, %d) = %v, want %v", tt.in, tt.rotation, got, tt.want)
		}
	}
}

func TestRotatePageBBoxInvariant(t *testing.T) {
	// The full-page box maps onto itself for every orientation.
	const w, h = 100, 200
	want := BBox{0, 0, w, h}
	for _, rotation := range []int{0, 90, 180, 270} {
		in := BBox{0, 0, w, h}
		if rotation == 90 || rotation == 270 {
			in = BBox{0, 0, h, w}
		}
		if got := rotateBBox(in, rotation, w, h); got != want {
			t.Errorf("rotation %d: page box = %v, want %v", rotation, got, want)
		}
	}
}

func TestRotateRejectsBadAngle(t *testing.T) {
	z := NewPage(10, 10)
	if err := z.Rotate(45, 10, 10); err == nil {
		t.Fatal("Rotate(45) succeeded, want error")
	}
}

func TestSexpr(t *testing.T) {
	page := NewPage(100, 50)
	line := page.Add(&Zone{Type: Line, BBox: BBox{5, 5, 95, 20}})
	line.Add(&Zone{Type: Word, BBox: BBox{5, 5, 40, 20}, Text: "Hello"})
	line.Add(&Zone{Type: Word, BBox: BBox{50, 5, 95, 20}, Text: "world"})

	want := `(page 0 0 100 50
 (line 5 5 95 20
 (word 5 5 40 20 "Hello")
 (word 50 5 95 20 "world")))`
	if got := page.Sexpr(); got != want {
		t.Errorf("Sexpr() =\n%s\nwant\n%s", got, want)
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", `"plain"`},
		{`say "hi"`, `"say \"hi\""`},
		{`back\slash`, `"back\\slash"`},
		{"tab\there", `"tab\011here"`},
		{"", `""`},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ordinary text", "ordinary text"},
		{"line\nbreak\tand\rreturn", "line\nbreak\tand\rreturn"},
		{"bell\x07char", "bell�char"},
		{"bad\xffutf8", "bad�utf8"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCharZones(t *testing.T) {
	got := CharZones("abc", BBox{0, 10, 30, 20})
	if len(got) != 3 {
		t.Fatalf("CharZones returned %d zones, want 3", len(got))
	}
	wantBoxes := []BBox{{0, 10, 10, 20}, {10, 10, 20, 20}, {20, 10, 30, 20}}
	wantText := []string{"a", "b", "c"}
	for i, z := range got {
		if z.BBox != wantBoxes[i] || z.Text != wantText[i] || z.Type != Char {
			t.Errorf("char %d = %+v, want bbox %v text %q", i, z, wantBoxes[i], wantText[i])
		}
	}

	if got := CharZones("", BBox{0, 0, 10, 10}); got != nil {
		t.Errorf("CharZones(\"\") = %v, want nil", got)
	}
}
