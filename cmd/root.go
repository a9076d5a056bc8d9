package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"djvuocr/internal/logger"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "djvuocr",
	Short: "djvuocr - OCR text layers for DjVu documents",
	Long: `djvuocr runs an OCR engine over the pages of a DjVu document and stores
the recognized text back into the document as a hidden text layer.

The local Tesseract installation is used by default; Google Cloud Vision
and Google Document AI back-ends are available with -e.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().
			Err(err).
			Msg("Command execution failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
