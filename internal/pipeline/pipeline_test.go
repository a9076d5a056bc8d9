package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"djvuocr/internal/djvu"
	"djvuocr/internal/engine"
	"djvuocr/internal/zones"
)

// fakeEngine echoes the rendered file content back as a single word, so the
// transcript reveals which page each entry came from.
type fakeEngine struct{}

func (fakeEngine) Name() string                                    { return "fake" }
func (fakeEngine) ListLanguages(context.Context) ([]string, error) { return []string{"eng"}, nil }
func (fakeEngine) DefaultLanguage() string                         { return "eng" }
func (fakeEngine) CheckLanguage(string) error                      { return nil }

func (fakeEngine) ImageFormat(bitsPerPixel int) engine.ImageFormat {
	return engine.ImageFormat{
		Extension:    "pbm",
		DDjVuFormat:  "pbm",
		MIMEType:     "image/x-portable-bitmap",
		BitsPerPixel: bitsPerPixel,
	}
}

func (fakeEngine) Recognize(_ context.Context, imagePath, _ string, _ zones.Detail) (engine.RawOutput, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return engine.RawOutput{}, err
	}
	return engine.RawOutput{Data: data, Extension: "txt"}, nil
}

func (fakeEngine) ExtractText(raw engine.RawOutput, opts engine.ExtractOptions) (*zones.Zone, error) {
	page := zones.NewPage(opts.PageWidth, opts.PageHeight)
	page.Add(&zones.Zone{
		Type: zones.Word,
		BBox: zones.BBox{X0: 0, Y0: 0, X1: opts.PageWidth, Y1: opts.PageHeight},
		Text: string(raw.Data),
	})
	return page, nil
}

// fakeRenderer produces a tiny text file per page, with optional per-page
// delays and failures to exercise scheduling and error paths.
type fakeRenderer struct {
	mu     sync.Mutex
	delays map[int]time.Duration
	errs   map[int]error
	calls  []int
}

func (r *fakeRenderer) RenderPage(ctx context.Context, p djvu.Page, _ djvu.RenderMode, _ engine.ImageFormat, dest string) error {
	r.mu.Lock()
	r.calls = append(r.calls, p.Number)
	delay := r.delays[p.Number]
	err := r.errs[p.Number]
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(fmt.Sprintf("page %d", p.Number)), 0o644)
}

func makePages(n int) []djvu.Page {
	pages := make([]djvu.Page, n)
	for i := range pages {
		pages[i] = djvu.Page{Index: i, Number: i + 1, Width: 100, Height: 50}
	}
	return pages
}

func newTestRunner(pages []djvu.Page, jobs int, r *fakeRenderer, policy Policy, workDir string) *Runner {
	return New(Options{
		Engine:   fakeEngine{},
		Renderer: r,
		Pages:    pages,
		Jobs:     jobs,
		Language: "eng",
		Details:  zones.Word,
		Policy:   policy,
		WorkDir:  workDir,
	})
}

// selectedPages extracts the page numbers addressed by the transcript, in
// entry order.
func selectedPages(t *testing.T, transcript string) []int {
	t.Helper()
	var pages []int
	for _, line := range strings.Split(transcript, "\n") {
		if rest, ok := strings.CutPrefix(line, "select "); ok {
			n, err := strconv.Atoi(rest)
			if err != nil {
				t.Fatalf("unparsable select line %q", line)
			}
			pages = append(pages, n)
		}
	}
	return pages
}

func TestRunAssemblesInPageOrder(t *testing.T) {
	pages := makePages(8)
	// Early pages are the slowest, so with several workers the later pages
	// finish first and the assembler has to hold them back.
	r := &fakeRenderer{delays: map[int]time.Duration{
		1: 40 * time.Millisecond,
		2: 30 * time.Millisecond,
		3: 20 * time.Millisecond,
	}}
	runner := newTestRunner(pages, 3, r, AbortOnError, t.TempDir())

	var buf bytes.Buffer
	written, err := runner.Run(context.Background(), NewTranscript(&buf))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []int{1, 2, 3, 4, 5, 6, 7, 8}; !equalInts(written, want) {
		t.Errorf("written = %v, want %v", written, want)
	}
	if got := selectedPages(t, buf.String()); !equalInts(got, written) {
		t.Errorf("transcript order = %v, want %v", got, written)
	}
	for n := 1; n <= 8; n++ {
		word := fmt.Sprintf("%q", fmt.Sprintf("page %d", n))
		if !strings.Contains(buf.String(), word) {
			t.Errorf("transcript lacks text for page %d", n)
		}
	}
	if runner.Retained() {
		t.Error("Retained() = true after a clean run")
	}
}

func TestRunEachPageProcessedOnce(t *testing.T) {
	pages := makePages(12)
	r := &fakeRenderer{delays: map[int]time.Duration{
		2: 5 * time.Millisecond,
		5: 10 * time.Millisecond,
		9: 5 * time.Millisecond,
	}}
	runner := newTestRunner(pages, 4, r, AbortOnError, t.TempDir())

	var buf bytes.Buffer
	if _, err := runner.Run(context.Background(), NewTranscript(&buf)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seen := map[int]int{}
	for _, n := range r.calls {
		seen[n]++
	}
	for n := 1; n <= 12; n++ {
		if seen[n] != 1 {
			t.Errorf("page %d rendered %d times, want 1", n, seen[n])
		}
	}
}

func TestRunNoImagePage(t *testing.T) {
	pages := makePages(3)
	r := &fakeRenderer{errs: map[int]error{2: djvu.ErrNoImage}}
	runner := newTestRunner(pages, 2, r, AbortOnError, t.TempDir())

	var buf bytes.Buffer
	written, err := runner.Run(context.Background(), NewTranscript(&buf))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []int{1, 3}; !equalInts(written, want) {
		t.Errorf("written = %v, want %v", written, want)
	}
	// The imageless page still gets a transcript entry, with no text.
	if got := selectedPages(t, buf.String()); !equalInts(got, []int{1, 2, 3}) {
		t.Errorf("transcript pages = %v, want [1 2 3]", got)
	}
	if !strings.Contains(buf.String(), "select 2\nset-txt\n\n.\n") {
		t.Errorf("page 2 entry is not empty:\n%s", buf.String())
	}
}

func TestRunResumePolicy(t *testing.T) {
	pages := makePages(4)
	r := &fakeRenderer{errs: map[int]error{3: errors.New("render exploded")}}
	runner := newTestRunner(pages, 2, r, ResumeOnError, t.TempDir())

	var buf bytes.Buffer
	written, err := runner.Run(context.Background(), NewTranscript(&buf))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []int{1, 2, 4}; !equalInts(written, want) {
		t.Errorf("written = %v, want %v", written, want)
	}
	if got := selectedPages(t, buf.String()); !equalInts(got, []int{1, 2, 3, 4}) {
		t.Errorf("transcript pages = %v, want [1 2 3 4]", got)
	}
	if runner.Retained() {
		t.Error("Retained() = true under the resume policy")
	}
}

func TestRunAbortPolicy(t *testing.T) {
	pages := makePages(5)
	r := &fakeRenderer{errs: map[int]error{3: errors.New("render exploded")}}
	runner := newTestRunner(pages, 2, r, AbortOnError, t.TempDir())

	var buf bytes.Buffer
	written, err := runner.Run(context.Background(), NewTranscript(&buf))
	if err == nil {
		t.Fatal("Run succeeded, want page error")
	}
	var pageErr *PageError
	if !errors.As(err, &pageErr) || pageErr.Page != 3 {
		t.Fatalf("Run error = %v, want PageError for page 3", err)
	}
	if want := []int{1, 2}; !equalInts(written, want) {
		t.Errorf("written = %v, want %v", written, want)
	}
	// Entries written before the failing page survive the abort.
	if got := selectedPages(t, buf.String()); !equalInts(got, []int{1, 2}) {
		t.Errorf("transcript pages = %v, want [1 2]", got)
	}
	if !runner.Retained() {
		t.Error("Retained() = false after an abort")
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	pages := makePages(3)
	r := &fakeRenderer{}
	runner := newTestRunner(pages, 2, r, AbortOnError, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	written, err := runner.Run(ctx, NewTranscript(&buf))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if len(written) != 0 {
		t.Errorf("written = %v, want none", written)
	}
	if !runner.Retained() {
		t.Error("Retained() = false after cancellation")
	}
}

func TestRunInterruptMidRun(t *testing.T) {
	pages := makePages(4)
	r := &fakeRenderer{delays: map[int]time.Duration{
		2: 5 * time.Second,
		3: 5 * time.Second,
	}}
	runner := newTestRunner(pages, 2, r, AbortOnError, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var buf bytes.Buffer
	start := time.Now()
	_, err := runner.Run(ctx, NewTranscript(&buf))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	// The blocked renders observe the context, so the run winds down long
	// before their full delay.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("run took %v to wind down", elapsed)
	}
	if !runner.Retained() {
		t.Error("Retained() = false after an interrupt")
	}
}

func TestRunNoPages(t *testing.T) {
	runner := newTestRunner(nil, 2, &fakeRenderer{}, AbortOnError, t.TempDir())
	var buf bytes.Buffer
	written, err := runner.Run(context.Background(), NewTranscript(&buf))
	if err != nil || len(written) != 0 || buf.Len() != 0 {
		t.Errorf("empty run: written=%v err=%v transcript=%q", written, err, buf.String())
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
