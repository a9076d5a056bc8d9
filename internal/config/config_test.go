package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DJVUOCR_ENGINE", "DJVUOCR_JOBS", "DJVUOCR_DETAILS", "DJVUOCR_ON_ERROR", "DJVUOCR_RENDER"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine != "tesseract" {
		t.Errorf("Engine = %q, want tesseract", cfg.Engine)
	}
	if cfg.Jobs != 1 {
		t.Errorf("Jobs = %d, want 1", cfg.Jobs)
	}
	if cfg.Details != "words" {
		t.Errorf("Details = %q, want words", cfg.Details)
	}
	if cfg.OnError != "abort" {
		t.Errorf("OnError = %q, want abort", cfg.OnError)
	}
	if cfg.RenderMode != "mask" {
		t.Errorf("RenderMode = %q, want mask", cfg.RenderMode)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DJVUOCR_ENGINE", "vision")
	t.Setenv("DJVUOCR_JOBS", "4")
	t.Setenv("DJVUOCR_ON_ERROR", "resume")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine != "vision" || cfg.Jobs != 4 || cfg.OnError != "resume" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("DJVUOCR_ON_ERROR", "explode")
	if _, err := Load(); err == nil {
		t.Error("invalid DJVUOCR_ON_ERROR accepted")
	}
}
