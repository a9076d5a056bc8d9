package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"djvuocr/internal/djvu"
	"djvuocr/internal/engine"
)

func TestRawSinkSave(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewRawSink(dir, "{id-ext}")
	if err != nil {
		t.Fatal(err)
	}

	page := djvu.Page{Number: 3, ID: "p0003.djvu"}
	sink.Save(page, engine.RawOutput{Data: []byte("<hocr/>"), Extension: "hocr"})

	data, err := os.ReadFile(filepath.Join(dir, "p0003.hocr"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<hocr/>" {
		t.Errorf("saved data = %q", data)
	}
}

func TestNewRawSinkValidation(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewRawSink(filepath.Join(dir, "absent"), "{id}"); err == nil {
		t.Error("missing directory accepted")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRawSink(file, "{id}"); err == nil {
		t.Error("plain file accepted as directory")
	}

	if _, err := NewRawSink(dir, "{bogus}"); err == nil {
		t.Error("invalid template accepted")
	}
}
