package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"evalgen/internal/validate"
)

var (
	valOut   string
	valInput string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate generated artifacts against the data contract",
	Long: `Checks the artifact set in the output directory: per-record schema,
referential integrity between artifacts, floor counts and coverage
policies. When the original input document is available its line ranges
are cross-checked against evidence quotes.

Exit status is non-zero if the report contains any error; warnings never
affect the outcome.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&valOut, "out", "", "output directory to validate")
	validateCmd.Flags().StringVar(&valInput, "input", "", "path to input markdown (for evidence checking)")
	_ = validateCmd.MarkFlagRequired("out")
}

func runValidate(cmd *cobra.Command, args []string) error {
	outDir, err := filepath.Abs(valOut)
	if err != nil {
		return err
	}
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		return fmt.Errorf("output directory not found: %s", outDir)
	}

	inputPath := valInput
	if inputPath != "" {
		if abs, err := filepath.Abs(inputPath); err == nil {
			inputPath = abs
		}
	}

	report := validate.Run(outDir, inputPath)
	renderReport(report)

	if !report.OK() {
		return fmt.Errorf("validation failed with %d error(s)", len(report.Errors))
	}
	return nil
}
