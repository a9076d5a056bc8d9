package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"djvuocr/internal/engine"
	"djvuocr/internal/engine/registry"
	"djvuocr/internal/logger"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List available OCR engines",
	Long: `Print the names of the OCR engines that can be used on this system,
one per line. An engine is listed only if its back-end can be reached,
so a missing Tesseract installation or absent cloud credentials hide
the corresponding entry.`,
	Args: cobra.NoArgs,
	RunE: runEngines,
}

func init() {
	rootCmd.AddCommand(enginesCmd)
}

func runEngines(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("engines")
	for _, name := range registry.Names() {
		eng, err := registry.New(cmd.Context(), name, engine.Options{})
		if err != nil {
			log.Debug().Str("engine", name).Err(err).Msg("Engine not usable")
			continue
		}
		closeEngine(eng)
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
