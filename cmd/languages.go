package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"djvuocr/internal/config"
	"djvuocr/internal/engine"
	"djvuocr/internal/engine/registry"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List languages supported by the selected OCR engine",
	Args:  cobra.NoArgs,
	RunE:  runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)
	languagesCmd.Flags().StringP("engine", "e", "", "OCR engine to query (default from DJVUOCR_ENGINE)")
}

func runLanguages(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	eng, err := registry.New(cmd.Context(), flagString(cmd, "engine", cfg.Engine), engine.Options{})
	if err != nil {
		return err
	}
	defer closeEngine(eng)

	languages, err := eng.ListLanguages(cmd.Context())
	if err != nil {
		if errors.Is(err, engine.ErrUnknownLanguageList) {
			return fmt.Errorf("engine %s cannot enumerate its languages", eng.Name())
		}
		return err
	}
	sort.Strings(languages)
	for _, language := range languages {
		fmt.Fprintln(cmd.OutOrStdout(), language)
	}
	return nil
}
