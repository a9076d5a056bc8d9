// Package saver implements the persistence strategies that merge a finished
// transcript back into a DjVu document: bundled copy, indirect copy, bare
// script, in-place mutation, or dry run. Exactly one strategy is chosen per
// run.
//
// The strategies shell out to djvused, djvm and djvmcvt from DjVuLibre.
package saver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"djvuocr/internal/djvu"
)

// Saver persists the transcript for a processed document. retain lists the
// 1-based numbers of the pages to keep in the saved document; nil keeps all.
type Saver interface {
	Save(ctx context.Context, doc *djvu.Document, retain []int, scriptPath string) error
}

// BundledSaver writes a bundled multi-page document at SavePath.
type BundledSaver struct {
	SavePath string
}

func (s *BundledSaver) Save(ctx context.Context, doc *djvu.Document, retain []int, scriptPath string) error {
	if err := copyFile(s.SavePath, doc.Path); err != nil {
		return fmt.Errorf("save bundled: %w", err)
	}
	if err := subsetPages(ctx, s.SavePath, doc.PageCount(), retain); err != nil {
		return fmt.Errorf("save bundled: %w", err)
	}
	if err := applyScript(ctx, s.SavePath, scriptPath); err != nil {
		return fmt.Errorf("save bundled: %w", err)
	}
	return nil
}

// IndirectSaver writes an indirect multi-page document whose index file is
// SavePath; the per-page component files land next to it.
type IndirectSaver struct {
	SavePath string
}

func (s *IndirectSaver) Save(ctx context.Context, doc *djvu.Document, retain []int, scriptPath string) error {
	dir := filepath.Dir(s.SavePath)
	tmp, err := os.CreateTemp(dir, "djvuocr-*.djvu")
	if err != nil {
		return fmt.Errorf("save indirect: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := copyFile(tmp.Name(), doc.Path); err != nil {
		return fmt.Errorf("save indirect: %w", err)
	}
	if err := subsetPages(ctx, tmp.Name(), doc.PageCount(), retain); err != nil {
		return fmt.Errorf("save indirect: %w", err)
	}
	if err := applyScript(ctx, tmp.Name(), scriptPath); err != nil {
		return fmt.Errorf("save indirect: %w", err)
	}
	if _, err := runTool(ctx, "djvmcvt", "-i", tmp.Name(), dir, filepath.Base(s.SavePath)); err != nil {
		return fmt.Errorf("save indirect: %w", err)
	}
	return nil
}

// ScriptSaver copies the djvused script itself to SavePath.
type ScriptSaver struct {
	SavePath string
}

func (s *ScriptSaver) Save(_ context.Context, _ *djvu.Document, _ []int, scriptPath string) error {
	if err := copyFile(s.SavePath, scriptPath); err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	return nil
}

// InPlaceSaver applies the transcript to the original document.
type InPlaceSaver struct{}

func (s *InPlaceSaver) Save(ctx context.Context, doc *djvu.Document, _ []int, scriptPath string) error {
	if err := applyScript(ctx, doc.Path, scriptPath); err != nil {
		return fmt.Errorf("save in place: %w", err)
	}
	return nil
}

// DryRunSaver changes no files.
type DryRunSaver struct{}

func (s *DryRunSaver) Save(context.Context, *djvu.Document, []int, string) error { return nil }

// applyScript runs the transcript through djvused against the document.
func applyScript(ctx context.Context, djvuPath, scriptPath string) error {
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return err
	}
	_, err = runTool(ctx, "djvused", "-s", "-f", abs, djvuPath)
	return err
}

// subsetPages deletes the pages not listed in retain, from the highest page
// number down so earlier numbers stay stable.
func subsetPages(ctx context.Context, path string, pageCount int, retain []int) error {
	if retain == nil || len(retain) >= pageCount {
		return nil
	}
	keep := make(map[int]bool, len(retain))
	for _, n := range retain {
		keep[n] = true
	}
	var drop []int
	for n := 1; n <= pageCount; n++ {
		if !keep[n] {
			drop = append(drop, n)
		}
	}
	slices.Reverse(drop)
	for _, n := range drop {
		if _, err := runTool(ctx, "djvm", "-d", path, strconv.Itoa(n)); err != nil {
			return err
		}
	}
	return nil
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

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
