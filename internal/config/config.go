// Package config holds run configuration for the generator CLI.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Version is the generator version recorded in the run manifest.
const Version = "0.1.0"

// Config holds all generator settings. Values come from defaults, then an
// optional YAML file, then flags; the API key additionally falls back to the
// environment and a .env file.
type Config struct {
	InputPath string `yaml:"input"`
	OutPath   string `yaml:"out"`
	Seed      int    `yaml:"seed"`

	// Target counts per stage.
	NUseCases       int `yaml:"n_use_cases"`
	NTestCasesPerUC int `yaml:"n_test_cases_per_uc"`
	NExamplesPerTC  int `yaml:"n_examples_per_tc"`

	// Model settings.
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	APIKey      string  `yaml:"api_key"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Seed:            42,
		NUseCases:       8,
		NTestCasesPerUC: 5,
		NExamplesPerTC:  2,
		Model:           "gemini-2.0-flash",
		Temperature:     0.7,
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ResolveAPIKey fills APIKey from the environment (GEMINI_API_KEY, then
// GOOGLE_API_KEY) and finally a .env file in the working directory. An empty
// result after all fallbacks is a precondition failure for generate.
func (c *Config) ResolveAPIKey() {
	if c.APIKey != "" {
		return
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.APIKey = key
		return
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.APIKey = key
		return
	}
	c.APIKey = keyFromEnvFile(".env")
}

// keyFromEnvFile scans a dotenv-style file for a Gemini API key.
func keyFromEnvFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		for _, prefix := range []string{"GEMINI_API_KEY=", "GOOGLE_API_KEY="} {
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSpace(strings.TrimPrefix(line, prefix))
			}
		}
	}
	return ""
}
