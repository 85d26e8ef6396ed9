package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evalgen/internal/config"
	"evalgen/internal/contract"
	"evalgen/internal/store"
)

// stubGenerator replays a scripted sequence of parsed gateway responses.
type stubGenerator struct {
	responses []any
	errs      []error
	calls     int
	prompts   []string
}

func (s *stubGenerator) GenerateJSON(ctx context.Context, prompt, system string) (any, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return nil, fmt.Errorf("unexpected gateway call #%d", i+1)
}

// supportDoc is a minimal requirements document that classifies as
// support_bot.
const supportDoc = `# Поддержка интернет-магазина

Бот отвечает на вопросы о заказах и доставке.
Возврат товара оформляется через личный кабинет.
FAQ доступен на сайте.
`

func writeInputDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig(t *testing.T, outDir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.InputPath = writeInputDoc(t, supportDoc)
	cfg.OutPath = outDir
	return cfg
}

func validEvidence() []any {
	return []any{map[string]any{
		"input_file": "doc.md", "line_start": 3.0, "line_end": 3.0,
		"quote": "Бот отвечает на вопросы о заказах и доставке.",
	}}
}

func qaExample(criteria ...string) map[string]any {
	list := make([]any, 0, len(criteria))
	for _, c := range criteria {
		list = append(list, c)
	}
	return map[string]any{
		"input": map[string]any{
			"messages": []any{map[string]any{"role": "user", "content": "где мой заказ?"}},
		},
		"expected_output":     "Сейчас проверю статус заказа.",
		"evaluation_criteria": list,
		"metadata":            map[string]any{},
	}
}

func TestRunnerFullRun(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.NUseCases = 1
	cfg.NTestCasesPerUC = 1
	cfg.NExamplesPerTC = 1

	stub := &stubGenerator{responses: []any{
		map[string]any{"use_cases": []any{
			map[string]any{"name": "Статус заказа", "description": "Пользователь спрашивает о заказе", "evidence": validEvidence()},
		}},
		map[string]any{"policies": []any{
			map[string]any{"type": "must", "statement": "Отвечать на русском", "evidence": validEvidence()},
			map[string]any{"type": "style", "statement": "Вежливый тон", "evidence": validEvidence()},
		}},
		map[string]any{"test_cases": []any{
			map[string]any{"parameters": map[string]any{"tone": "polite"}, "policy_ids": []any{"pol_1"}},
		}},
		map[string]any{"examples": []any{qaExample("a", "b", "c")}},
	}}
	st := store.New(dir, zap.NewNop())
	runner := NewRunner(cfg, stub, st, zap.NewNop())

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.UseCases)
	assert.Equal(t, 2, summary.Policies)
	assert.Equal(t, 1, summary.TestCases)
	assert.Equal(t, 1, summary.Examples)
	assert.Equal(t, 4, stub.calls)

	var manifest contract.RunManifest
	found, err := st.LoadObject(store.ManifestFile, &manifest)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, manifest.RunID)
	assert.Equal(t, cfg.InputPath, manifest.InputPath)
	assert.Equal(t, "google", manifest.LLM.Provider)
}

func TestRunnerRerunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.NUseCases = 1
	cfg.NTestCasesPerUC = 1
	cfg.NExamplesPerTC = 1

	stub := &stubGenerator{responses: []any{
		map[string]any{"use_cases": []any{
			map[string]any{"name": "Статус заказа", "description": "d", "evidence": validEvidence()},
		}},
		map[string]any{"policies": []any{
			map[string]any{"type": "must", "statement": "s", "evidence": validEvidence()},
		}},
		map[string]any{"test_cases": []any{
			map[string]any{"parameters": map[string]any{}, "policy_ids": []any{"pol_1"}},
		}},
		map[string]any{"examples": []any{qaExample("a", "b", "c")}},
	}}
	st := store.New(dir, zap.NewNop())
	_, err := NewRunner(cfg, stub, st, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	artifacts := []string{"use_cases.json", "policies.json", "test_cases.json", "dataset.json"}
	before := map[string]string{}
	for _, name := range artifacts {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		before[name] = string(data)
	}

	// Second run over a complete output directory makes no gateway calls and
	// rewrites nothing but the manifest.
	second := &stubGenerator{}
	_, err = NewRunner(cfg, second, st, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.calls)

	for _, name := range artifacts {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		if diff := cmp.Diff(before[name], string(data)); diff != "" {
			t.Errorf("%s changed on re-run (-first +second):\n%s", name, diff)
		}
	}
}

func TestRepairLog(t *testing.T) {
	rl := NewRepairLog(zap.NewNop())
	rl.Record(RepairPaddedCriteria, "ex_1", "padded 2 fallback criteria")
	rl.Record(RepairPaddedCriteria, "ex_2", "padded 1 fallback criteria")
	rl.Record(RepairClampedEvidence, "uc_1", "range 0-99 clamped to 1-5")

	assert.Len(t, rl.Entries(), 3)
	assert.Equal(t, 2, rl.Count(RepairPaddedCriteria))
	assert.Equal(t, 1, rl.Count(RepairClampedEvidence))
	assert.Zero(t, rl.Count(RepairReplacedQuote))
}
