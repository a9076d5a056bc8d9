package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"djvuocr/internal/config"
	"djvuocr/internal/djvu"
	"djvuocr/internal/engine"
	"djvuocr/internal/engine/registry"
	"djvuocr/internal/logger"
	"djvuocr/internal/pipeline"
	"djvuocr/internal/saver"
	"djvuocr/internal/zones"
)

var processCmd = &cobra.Command{
	Use:   "process [flags] FILE",
	Short: "OCR a DjVu document and store the text layer",
	Long: `Process a DjVu document: render its pages, run them through the selected
OCR engine in parallel, and persist the recognized text as a hidden text
layer using exactly one of the output options.

Pages are processed by a pool of worker jobs, but the text layer is always
assembled in page order, so the result is identical regardless of -j.`,
	Example: `  # OCR the whole document into a new bundled file
  djvuocr process -o out.djvu in.djvu

  # OCR pages 17 and 37-42 in place, four jobs, resume on page errors
  djvuocr process --in-place -p 17,37-42 -j 4 --on-error resume in.djvu

  # Keep the raw Tesseract output next to the result
  djvuocr process -o out.djvu --save-raw-ocr ./raw in.djvu`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringP("save-bundled", "o", "", "Save as a bundled multi-page document at FILE")
	processCmd.Flags().StringP("save-indirect", "i", "", "Save as an indirect multi-page document with index FILE")
	processCmd.Flags().String("save-script", "", "Save the djvused script with the results at FILE")
	processCmd.Flags().Bool("in-place", false, "Save the results in the original file")
	processCmd.Flags().Bool("dry-run", false, "Don't change any files")
	processCmd.Flags().Bool("ocr-only", false, "Don't save pages without OCR")
	processCmd.Flags().Bool("clear-text", false, "Remove existing hidden text")
	processCmd.Flags().String("save-raw-ocr", "", "Save raw OCR output into DIRECTORY")
	processCmd.Flags().String("raw-ocr-filename-template", "{id-ext}", "File naming scheme for raw OCR output")
	processCmd.Flags().StringP("engine", "e", "", "OCR engine to use (default from DJVUOCR_ENGINE)")
	processCmd.Flags().StringP("language", "l", "", "Recognition language")
	processCmd.Flags().String("render", "", "Image layers to render: mask, foreground or all")
	processCmd.Flags().StringP("pages", "p", "", "Pages to process, e.g. 17,37-42")
	processCmd.Flags().IntP("jobs", "j", 1, "Number of jobs to run simultaneously (0 = one per CPU)")
	processCmd.Flags().Lookup("jobs").NoOptDefVal = "0"
	processCmd.Flags().StringP("details", "t", "", "Amount of text details to extract: lines, words or chars")
	processCmd.Flags().BoolP("debug", "D", false, "Don't delete intermediate files")
	processCmd.Flags().StringArrayP("property", "X", nil, "Set an engine-specific property (KEY=VALUE)")
	processCmd.Flags().String("on-error", "", "Error handling strategy: abort or resume")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")
	path := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sv, err := selectSaver(cmd)
	if err != nil {
		return err
	}

	pageNumbers, err := djvu.ParsePageNumbers(flagString(cmd, "pages", ""))
	if err != nil {
		return err
	}
	details, err := parseDetails(flagString(cmd, "details", cfg.Details))
	if err != nil {
		return err
	}
	renderMode, err := djvu.ParseRenderMode(flagString(cmd, "render", cfg.RenderMode))
	if err != nil {
		return err
	}
	policy, err := pipeline.ParsePolicy(flagString(cmd, "on-error", cfg.OnError))
	if err != nil {
		return err
	}
	properties, err := parseProperties(cmd)
	if err != nil {
		return err
	}
	jobs := cfg.Jobs
	if cmd.Flags().Changed("jobs") {
		jobs, _ = cmd.Flags().GetInt("jobs")
	}
	debug, _ := cmd.Flags().GetBool("debug")
	ocrOnly, _ := cmd.Flags().GetBool("ocr-only")
	clearText, _ := cmd.Flags().GetBool("clear-text")

	// An interrupt is always fatal: it stops new page claims and lets
	// in-flight engine calls drain.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := registry.New(ctx, flagString(cmd, "engine", cfg.Engine), engine.Options{Properties: properties})
	if err != nil {
		return err
	}
	defer closeEngine(eng)

	language := flagString(cmd, "language", cfg.Language)
	if language == "" {
		language = eng.DefaultLanguage()
	}
	if err := eng.CheckLanguage(language); err != nil {
		if !errors.Is(err, engine.ErrUnknownLanguageList) {
			return err
		}
		// No discovery mechanism; assume the language pack is installed.
		log.Debug().Str("language", language).Msg("Cannot verify language, proceeding")
	}

	var rawSink *pipeline.RawSink
	if dir := flagString(cmd, "save-raw-ocr", ""); dir != "" {
		rawSink, err = pipeline.NewRawSink(dir, flagString(cmd, "raw-ocr-filename-template", "{id-ext}"))
		if err != nil {
			return err
		}
	}

	doc, err := djvu.Open(ctx, path)
	if err != nil {
		return err
	}
	pages, err := doc.SelectPages(pageNumbers)
	if err != nil {
		return err
	}

	log.Info().
		Str("file", path).
		Str("engine", eng.Name()).
		Str("language", language).
		Int("pages", len(pages)).
		Int("jobs", jobs).
		Msg("Processing document")

	workDir, err := os.MkdirTemp("", "djvuocr.")
	if err != nil {
		return err
	}

	transcript, err := pipeline.CreateTranscript(filepath.Join(workDir, "djvuocr.djvused"))
	if err != nil {
		os.RemoveAll(workDir)
		return err
	}
	if clearText {
		if err := transcript.RemoveText(); err != nil {
			os.RemoveAll(workDir)
			return err
		}
	}

	runner := pipeline.New(pipeline.Options{
		Engine:     eng,
		Renderer:   doc,
		Pages:      pages,
		Jobs:       jobs,
		Language:   language,
		Details:    details,
		RenderMode: renderMode,
		Policy:     policy,
		Debug:      debug,
		WorkDir:    workDir,
		RawSink:    rawSink,
	})

	written, runErr := runner.Run(ctx, transcript)
	if closeErr := transcript.Close(); runErr == nil {
		runErr = closeErr
	}

	retain := debug || runner.Retained()
	defer func() {
		if retain {
			log.Info().Str("dir", workDir).Msg("Intermediate files were left behind")
		} else {
			os.RemoveAll(workDir)
		}
	}()

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Info().Msg("Interrupted by user")
		}
		retain = true
		return runErr
	}

	// With --ocr-only the saved document keeps only the pages that went
	// through OCR processing; pages outside the requested range are dropped.
	var retainPages []int
	if ocrOnly {
		retainPages = make([]int, len(pages))
		for i, p := range pages {
			retainPages[i] = p.Number
		}
	}
	if err := sv.Save(ctx, doc, retainPages, transcript.Path()); err != nil {
		// The transcript still has salvage value when saving fails.
		retain = true
		return err
	}

	log.Info().Int("pages_with_text", len(written)).Msg("Document processed")
	return nil
}

// selectSaver maps the mutually exclusive output flags onto a persistence
// strategy. Exactly one must be given.
func selectSaver(cmd *cobra.Command) (saver.Saver, error) {
	var savers []saver.Saver
	if path := flagString(cmd, "save-bundled", ""); path != "" {
		savers = append(savers, &saver.BundledSaver{SavePath: absPath(path)})
	}
	if path := flagString(cmd, "save-indirect", ""); path != "" {
		savers = append(savers, &saver.IndirectSaver{SavePath: absPath(path)})
	}
	if path := flagString(cmd, "save-script", ""); path != "" {
		savers = append(savers, &saver.ScriptSaver{SavePath: absPath(path)})
	}
	if inPlace, _ := cmd.Flags().GetBool("in-place"); inPlace {
		savers = append(savers, &saver.InPlaceSaver{})
	}
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		savers = append(savers, &saver.DryRunSaver{})
	}
	if len(savers) != 1 {
		return nil, fmt.Errorf("exactly one of --save-bundled/--save-indirect/--save-script/--in-place/--dry-run is required")
	}
	return savers[0], nil
}

func parseDetails(s string) (zones.Detail, error) {
	switch s {
	case "lines":
		return zones.Line, nil
	case "words":
		return zones.Word, nil
	case "chars":
		return zones.Char, nil
	}
	return 0, fmt.Errorf("invalid details %q (lines, words or chars)", s)
}

func parseProperties(cmd *cobra.Command) (map[string]string, error) {
	raw, _ := cmd.Flags().GetStringArray("property")
	if len(raw) == 0 {
		return nil, nil
	}
	properties := make(map[string]string, len(raw))
	for _, prop := range raw {
		key, value, ok := strings.Cut(prop, "=")
		if !ok {
			return nil, fmt.Errorf("argument -X: expected KEY=VALUE, got %q", prop)
		}
		properties[key] = value
	}
	return properties, nil
}

func flagString(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	if fallback != "" {
		return fallback
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func closeEngine(eng engine.Engine) {
	if closer, ok := eng.(interface{ Close() error }); ok {
		closer.Close()
	}
}
