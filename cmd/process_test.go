package cmd

import (
	"testing"

	"github.com/spf13/cobra"

	"djvuocr/internal/zones"
)

func TestParseDetails(t *testing.T) {
	tests := []struct {
		in   string
		want zones.Detail
	}{
		{"lines", zones.Line},
		{"words", zones.Word},
		{"chars", zones.Char},
	}
	for _, tt := range tests {
		got, err := parseDetails(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseDetails(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := parseDetails("paragraphs"); err == nil {
		t.Error("parseDetails(\"paragraphs\") succeeded, want error")
	}
}

func TestParseProperties(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().StringArrayP("property", "X", nil, "")
	cmd.Flags().Set("property", "tessedit_char_whitelist=0123456789")
	cmd.Flags().Set("property", "psm=6")

	props, err := parseProperties(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if props["tessedit_char_whitelist"] != "0123456789" || props["psm"] != "6" {
		t.Errorf("props = %v", props)
	}
}

func TestParsePropertiesInvalid(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().StringArrayP("property", "X", nil, "")
	cmd.Flags().Set("property", "no-equals-sign")

	if _, err := parseProperties(cmd); err == nil {
		t.Error("malformed property accepted")
	}
}
