package registry

import (
	"context"
	"slices"
	"strings"
	"testing"

	"djvuocr/internal/engine"
)

func TestNames(t *testing.T) {
	names := Names()
	for _, want := range []string{"tesseract", "vision", "documentai"} {
		if !slices.Contains(names, want) {
			t.Errorf("Names() = %v, missing %q", names, want)
		}
	}
	if !slices.Contains(names, Default()) {
		t.Errorf("default engine %q is not registered", Default())
	}
}

func TestNewUnknownEngine(t *testing.T) {
	_, err := New(context.Background(), "cuneiform", engine.Options{})
	if err == nil {
		t.Fatal("New with an unknown name succeeded")
	}
	if !strings.Contains(err.Error(), "cuneiform") {
		t.Errorf("error %q does not name the engine", err)
	}
}
