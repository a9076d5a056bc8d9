// Package pipeline implements the concurrent page-OCR orchestration: a fixed
// pool of workers races to claim pages, runs the OCR engine outside any lock,
// and reports outcomes into a shared result store; a single ordered assembler
// drains the store strictly in page order and builds the transcript.
//
// Cancellation is cooperative. A fatal page error (abort policy) or an
// interrupt pre-claims all unstarted pages so idle workers stop picking up
// work; in-flight engine calls run to completion rather than being killed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"djvuocr/internal/djvu"
	"djvuocr/internal/engine"
	"djvuocr/internal/logger"
	"djvuocr/internal/zones"
)

// Policy selects how a per-page processing error affects the run.
type Policy int

const (
	// AbortOnError halts the whole run after draining in-flight work.
	AbortOnError Policy = iota
	// ResumeOnError skips the failing page and continues.
	ResumeOnError
)

// ParsePolicy parses an error handling strategy name.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "abort":
		return AbortOnError, nil
	case "resume":
		return ResumeOnError, nil
	}
	return 0, fmt.Errorf("invalid error handling strategy %q (abort or resume)", s)
}

// Renderer materializes a raster image for a page. *djvu.Document implements
// it; tests substitute fakes.
type Renderer interface {
	RenderPage(ctx context.Context, p djvu.Page, mode djvu.RenderMode, format engine.ImageFormat, dest string) error
}

// Options configure one document run.
type Options struct {
	Engine     engine.Engine
	Renderer   Renderer
	Pages      []djvu.Page
	Jobs       int
	Language   string
	Details    zones.Detail
	RenderMode djvu.RenderMode
	Policy     Policy
	// Debug keeps per-page rasters around instead of deleting them after
	// recognition.
	Debug   bool
	WorkDir string
	RawSink *RawSink
}

// Runner owns the result store and the worker pool for one document run. A
// runner is single use.
type Runner struct {
	opts     Options
	store    *ResultStore
	format   engine.ImageFormat
	log      zerolog.Logger
	retained bool
}

// New prepares a run over the given pages. Jobs < 1 selects one worker per
// available processing unit.
func New(opts Options) *Runner {
	if opts.Jobs < 1 {
		opts.Jobs = runtime.NumCPU()
	}
	return &Runner{
		opts:   opts,
		store:  NewResultStore(len(opts.Pages)),
		format: opts.Engine.ImageFormat(opts.RenderMode.BitsPerPixel()),
		log:    logger.WithComponent("pipeline"),
	}
}

// Retained reports whether intermediate files should be kept for diagnosis
// because the run aborted.
func (r *Runner) Retained() bool { return r.retained }

// Run dispatches the worker pool and assembles the transcript in ascending
// page order. It returns the 1-based numbers of the pages whose text was
// actually written; on abort, entries already written for prior pages are
// preserved in the transcript. No worker is left running when Run returns.
func (r *Runner) Run(ctx context.Context, t *Transcript) ([]int, error) {
	if len(r.opts.Pages) == 0 {
		return nil, t.Flush()
	}

	g, gctx := errgroup.WithContext(ctx)
	for range r.opts.Jobs {
		g.Go(func() error { return r.worker(gctx) })
	}
	// An interrupt must also release an assembler blocked in AwaitTerminal
	// on a page nobody will ever claim.
	stopWatch := context.AfterFunc(gctx, func() { r.store.CancelRemaining(0) })
	defer stopWatch()

	var written []int
	for _, p := range r.opts.Pages {
		res := r.store.AwaitTerminal(p.Index)
		switch res.State {
		case SlotSuccess:
			if err := t.WritePage(p, res.Zone); err != nil {
				return written, r.abort(p.Index, g, err)
			}
			written = append(written, p.Number)
		case SlotNoImage:
			if err := t.WritePage(p, nil); err != nil {
				return written, r.abort(p.Index, g, err)
			}
		case SlotFailed:
			return written, r.abort(p.Index, g, &PageError{Page: p.Number, Err: res.Err})
		case SlotCancelled:
			r.retained = true
			g.Wait()
			if cause := context.Cause(gctx); cause != nil {
				return written, cause
			}
			return written, ErrCancelled
		}
	}

	if err := g.Wait(); err != nil {
		r.retained = true
		return written, err
	}
	return written, t.Flush()
}

// abort cancels outstanding pages, drains the pool and marks the run for
// diagnostic retention.
func (r *Runner) abort(fromIndex int, g *errgroup.Group, err error) error {
	r.retained = true
	r.store.CancelRemaining(fromIndex)
	if r.opts.Jobs > 1 {
		r.log.Info().Msg("Waiting for other jobs to finish")
	}
	g.Wait()
	return err
}

// worker loops over the full page list claiming unclaimed pages. Engine calls
// happen with no lock held. Every claimed page is completed on all paths, so
// the assembler can never wait on a stranded slot.
func (r *Runner) worker(ctx context.Context) error {
	for _, p := range r.opts.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.store.TryClaim(p.Index) {
			continue
		}
		zone, err := r.processPage(ctx, p)
		switch {
		case err == nil:
			r.store.Complete(p.Index, Result{State: SlotSuccess, Zone: zone})
		case errors.Is(err, djvu.ErrNoImage):
			r.log.Info().Int("page", p.Number).Msg("No image suitable for OCR")
			r.store.Complete(p.Index, Result{State: SlotNoImage})
		case ctx.Err() != nil:
			r.store.Complete(p.Index, Result{State: SlotFailed, Err: err})
			return ctx.Err()
		case r.opts.Policy == ResumeOnError:
			r.log.Error().Err(err).Int("page", p.Number).Msg("Error while processing page, resuming")
			r.store.Complete(p.Index, Result{State: SlotNoImage})
		default:
			r.log.Error().Err(err).Int("page", p.Number).Msg("Error while processing page")
			r.store.Complete(p.Index, Result{State: SlotFailed, Err: err})
			return nil
		}
	}
	return nil
}

// processPage renders the page, runs recognition and extraction, and feeds
// the raw output side channel. The raster is deleted on success unless debug
// retention is on; failing pages keep theirs for diagnosis.
func (r *Runner) processPage(ctx context.Context, p djvu.Page) (*zones.Zone, error) {
	r.log.Info().Int("page", p.Number).Str("id", p.ID).Msg("Processing page")

	dest := filepath.Join(r.opts.WorkDir, fmt.Sprintf("%06d.%s", p.Index, r.format.Extension))
	if err := r.opts.Renderer.RenderPage(ctx, p, r.opts.RenderMode, r.format, dest); err != nil {
		return nil, err
	}

	raw, err := r.opts.Engine.Recognize(ctx, dest, r.opts.Language, r.opts.Details)
	if err != nil {
		return nil, err
	}
	if r.opts.RawSink != nil {
		r.opts.RawSink.Save(p, raw)
	}

	zone, err := r.opts.Engine.ExtractText(raw, engine.ExtractOptions{
		Rotation:   p.Rotation,
		Details:    r.opts.Details,
		PageWidth:  p.Width,
		PageHeight: p.Height,
	})
	if err != nil {
		return nil, err
	}

	if !r.opts.Debug {
		os.Remove(dest)
	}
	return zone, nil
}
