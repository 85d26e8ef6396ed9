package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"evalgen/internal/config"
	"evalgen/internal/gateway"
	"evalgen/internal/pipeline"
	"evalgen/internal/store"
)

var (
	genInput       string
	genOut         string
	genSeed        int
	genNUseCases   int
	genNTestCases  int
	genNExamples   int
	genModel       string
	genTemperature float64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate dataset artifacts from a markdown requirements document",
	Long: `Runs the full three-stage pipeline against the input document.

Artifacts already present in the output directory are not regenerated:
use_cases.json/policies.json and test_cases.json resume all-or-nothing,
dataset.json resumes per test case. The Gemini API key is read from
GEMINI_API_KEY or GOOGLE_API_KEY, with a .env file fallback.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genInput, "input", "", "path to markdown input file")
	generateCmd.Flags().StringVar(&genOut, "out", "", "output directory")
	generateCmd.Flags().IntVar(&genSeed, "seed", 42, "random seed")
	generateCmd.Flags().IntVar(&genNUseCases, "n-use-cases", 8, "target number of use cases")
	generateCmd.Flags().IntVar(&genNTestCases, "n-test-cases-per-uc", 5, "test cases per use case")
	generateCmd.Flags().IntVar(&genNExamples, "n-examples-per-tc", 2, "examples per test case")
	generateCmd.Flags().StringVar(&genModel, "model", "gemini-2.0-flash", "Gemini model")
	generateCmd.Flags().Float64Var(&genTemperature, "temperature", 0.7, "sampling temperature")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := generateConfig(cmd)
	if err != nil {
		return err
	}

	cfg.ResolveAPIKey()
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY / GOOGLE_API_KEY not set (environment or .env file)")
	}
	if cfg.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.OutPath == "" {
		return fmt.Errorf("output directory is required")
	}
	if abs, err := filepath.Abs(cfg.InputPath); err == nil {
		cfg.InputPath = abs
	}
	if abs, err := filepath.Abs(cfg.OutPath); err == nil {
		cfg.OutPath = abs
	}
	if _, err := os.Stat(cfg.InputPath); err != nil {
		return fmt.Errorf("input file not found: %s", cfg.InputPath)
	}

	ctx := cmd.Context()
	gwCfg := gateway.DefaultGeminiConfig(cfg.APIKey)
	gwCfg.Model = cfg.Model
	gwCfg.Temperature = cfg.Temperature
	gwCfg.Seed = cfg.Seed
	client, err := gateway.NewGeminiClient(ctx, gwCfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	st := store.New(cfg.OutPath, logger)
	runner := pipeline.NewRunner(cfg, client, st, logger)

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Generation complete ===")
	fmt.Printf("  Use cases:  %d\n", summary.UseCases)
	fmt.Printf("  Policies:   %d\n", summary.Policies)
	fmt.Printf("  Test cases: %d\n", summary.TestCases)
	fmt.Printf("  Examples:   %d\n", summary.Examples)
	fmt.Printf("  Repairs:    %d\n", len(runner.Repairs().Entries()))
	fmt.Printf("  Output:     %s\n", summary.OutDir)
	return nil
}

// generateConfig merges defaults, the optional config file, and any flags
// the user actually set, in that order.
func generateConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputPath = genInput
	}
	if flags.Changed("out") {
		cfg.OutPath = genOut
	}
	if flags.Changed("seed") {
		cfg.Seed = genSeed
	}
	if flags.Changed("n-use-cases") {
		cfg.NUseCases = genNUseCases
	}
	if flags.Changed("n-test-cases-per-uc") {
		cfg.NTestCasesPerUC = genNTestCases
	}
	if flags.Changed("n-examples-per-tc") {
		cfg.NExamplesPerTC = genNExamples
	}
	if flags.Changed("model") {
		cfg.Model = genModel
	}
	if flags.Changed("temperature") {
		cfg.Temperature = genTemperature
	}
	return cfg, nil
}
