package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 42, cfg.Seed)
	assert.Equal(t, 8, cfg.NUseCases)
	assert.Equal(t, 5, cfg.NTestCasesPerUC)
	assert.Equal(t, 2, cfg.NExamplesPerTC)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input: docs/source.md\nn_use_cases: 3\ntemperature: 0.2\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "docs/source.md", cfg.InputPath)
	assert.Equal(t, 3, cfg.NUseCases)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.NTestCasesPerUC)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestResolveAPIKey(t *testing.T) {
	t.Run("explicit key wins", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "from-env")
		cfg := &Config{APIKey: "explicit"}
		cfg.ResolveAPIKey()
		assert.Equal(t, "explicit", cfg.APIKey)
	})

	t.Run("gemini env before google env", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gemini-key")
		t.Setenv("GOOGLE_API_KEY", "google-key")
		cfg := &Config{}
		cfg.ResolveAPIKey()
		assert.Equal(t, "gemini-key", cfg.APIKey)
	})

	t.Run("google env fallback", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "google-key")
		cfg := &Config{}
		cfg.ResolveAPIKey()
		assert.Equal(t, "google-key", cfg.APIKey)
	})

	t.Run("dotenv fallback", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "")
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
			[]byte("# local secrets\nGEMINI_API_KEY=dotenv-key\n"), 0644))
		t.Chdir(dir)

		cfg := &Config{}
		cfg.ResolveAPIKey()
		assert.Equal(t, "dotenv-key", cfg.APIKey)
	})

	t.Run("nothing found stays empty", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "")
		t.Chdir(t.TempDir())

		cfg := &Config{}
		cfg.ResolveAPIKey()
		assert.Empty(t, cfg.APIKey)
	})
}
