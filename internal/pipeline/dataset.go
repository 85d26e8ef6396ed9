package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"evalgen/internal/config"
	"evalgen/internal/contract"
	"evalgen/internal/gateway"
	"evalgen/internal/store"
)

const datasetSystem = "You are a dataset generator creating realistic test examples for LLM agent evaluation. " +
	"Always respond with valid JSON only. Generate examples in Russian."

// Fallback criteria used to pad short evaluation_criteria lists to the
// contract floor of 3.
var fallbackCriteria = []string{
	"Response is relevant",
	"Response follows policies",
	"Response is in Russian",
}

// Source labels rotated across support_bot examples within a batch.
var supportSources = []string{"tickets", "faq_paraphrase", "corner"}

const splitLabel = "test"

// DatasetGenerator is stage 3: one gateway call per test case, with the
// accumulated example list persisted after every test case. This is the only
// stage with item-level resume.
type DatasetGenerator struct {
	cfg     *config.Config
	gen     gateway.Generator
	store   *store.Store
	log     *zap.Logger
	repairs *RepairLog
}

// NewDatasetGenerator creates the dataset generation stage.
func NewDatasetGenerator(cfg *config.Config, gen gateway.Generator, st *store.Store, log *zap.Logger, repairs *RepairLog) *DatasetGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &DatasetGenerator{cfg: cfg, gen: gen, store: st, log: log, repairs: repairs}
}

// formatFor picks the example format from the case type and the test case's
// ordinal position. support_bot always maps to QA; operator_quality
// alternates between the two correction formats.
func formatFor(caseType contract.CaseType, tcIndex int) contract.Format {
	if caseType == contract.CaseSupportBot {
		return contract.FormatSingleTurnQA
	}
	if tcIndex%2 == 0 {
		return contract.FormatSingleUtteranceCorrection
	}
	return contract.FormatDialogLastTurnCorrection
}

func sourceFor(exIndex int) string {
	return supportSources[exIndex%len(supportSources)]
}

// Run produces the dataset artifact. Test cases whose ids already appear in
// the persisted examples are skipped entirely; on a gateway failure whatever
// has accumulated is flushed before the error propagates.
func (g *DatasetGenerator) Run(ctx context.Context, useCases []contract.UseCase, policies []contract.Policy, testCases []contract.TestCase) ([]contract.DatasetExample, error) {
	ucByID := make(map[string]contract.UseCase, len(useCases))
	for _, uc := range useCases {
		ucByID[uc.ID] = uc
	}
	polByID := make(map[string]contract.Policy, len(policies))
	for _, p := range policies {
		polByID[p.ID] = p
	}

	examples, found, err := store.Load[contract.DatasetExample](g.store, store.Dataset)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]bool)
	for _, ex := range examples {
		completed[ex.TestCaseID] = true
	}
	if found && len(examples) > 0 {
		g.log.Info("resuming dataset generation",
			zap.Int("examples", len(examples)), zap.Int("test_cases_done", len(completed)))
	}

	counter := len(examples) + 1

	for tcIndex, tc := range testCases {
		if completed[tc.ID] {
			continue
		}
		uc, ok := ucByID[tc.UseCaseID]
		if !ok {
			continue
		}

		format := formatFor(tc.Case, tcIndex)
		g.log.Info("generating examples",
			zap.String("test_case", tc.ID), zap.String("format", string(format)))

		prompt := g.buildPrompt(uc, tc, format, polByID)
		result, err := g.gen.GenerateJSON(ctx, prompt, datasetSystem)
		if err != nil {
			// Flush partial progress so the next run resumes past the
			// completed test cases, then propagate.
			if saveErr := store.Save(g.store, store.Dataset, examples); saveErr != nil {
				g.log.Error("failed to flush partial dataset", zap.Error(saveErr))
			}
			return examples, fmt.Errorf("dataset generation for %s failed: %w", tc.ID, err)
		}

		records := gateway.Unwrap(result, "examples")
		if len(records) > g.cfg.NExamplesPerTC {
			records = records[:g.cfg.NExamplesPerTC]
		}

		for exIndex, rec := range records {
			examples = append(examples, g.buildExample(rec, uc, tc, format, counter, exIndex))
			counter++
		}

		if err := store.Save(g.store, store.Dataset, examples); err != nil {
			return examples, err
		}
	}

	g.log.Info("dataset generation complete", zap.Int("examples", len(examples)))
	return examples, nil
}

// buildExample normalizes one raw gateway example into the contract shape,
// applying the deterministic repairs and metadata tagging.
func (g *DatasetGenerator) buildExample(rec map[string]any, uc contract.UseCase, tc contract.TestCase, format contract.Format, counter, exIndex int) contract.DatasetExample {
	id := fmt.Sprintf("ex_%d", counter)

	input := contract.ExampleInput{}
	rawInput := mapField(rec, "input")
	for _, item := range listField(rawInput, "messages") {
		msg, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role := stringField(msg, "role")
		if role == "" {
			role = "user"
		}
		input.Messages = append(input.Messages, contract.Message{
			Role:    role,
			Content: stringField(msg, "content"),
		})
	}

	criteria := stringListField(rec, "evaluation_criteria")
	if len(criteria) < 3 {
		missing := 3 - len(criteria)
		criteria = append(criteria, fallbackCriteria[:missing]...)
		g.repairs.Record(RepairPaddedCriteria, id,
			fmt.Sprintf("padded %d fallback criteria", missing))
	}

	metadata := mapField(rec, "metadata")
	if metadata == nil {
		metadata = map[string]any{}
	}
	if tc.Case == contract.CaseSupportBot {
		metadata["source"] = sourceFor(exIndex)
	}
	metadata["split"] = splitLabel

	switch format {
	case contract.FormatSingleUtteranceCorrection:
		idx := 0
		input.TargetMessageIndex = &idx
	case contract.FormatDialogLastTurnCorrection:
		if len(input.Messages) > 0 {
			idx := len(input.Messages) - 1
			input.TargetMessageIndex = &idx
		}
	}

	return contract.DatasetExample{
		ID:                 id,
		Case:               tc.Case,
		Format:             format,
		UseCaseID:          tc.UseCaseID,
		TestCaseID:         tc.ID,
		Input:              input,
		ExpectedOutput:     stringField(rec, "expected_output"),
		EvaluationCriteria: criteria,
		PolicyIDs:          tc.PolicyIDs,
		Metadata:           metadata,
	}
}

func (g *DatasetGenerator) buildPrompt(uc contract.UseCase, tc contract.TestCase, format contract.Format, polByID map[string]contract.Policy) string {
	statements := make([]string, 0, len(tc.PolicyIDs))
	for _, pid := range tc.PolicyIDs {
		if p, ok := polByID[pid]; ok {
			statements = append(statements, fmt.Sprintf("- %s: %s", p.ID, p.Statement))
		}
	}
	paramsJSON, _ := json.MarshalIndent(tc.Parameters, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, `Generate exactly %d realistic test examples for LLM agent evaluation.

Use Case: %s
Description: %s
Case type: %s
Format: %s

Test parameters:
%s

Relevant policies:
%s
`, g.cfg.NExamplesPerTC, uc.Name, uc.Description, tc.Case, format, paramsJSON, strings.Join(statements, "\n"))

	switch format {
	case contract.FormatSingleTurnQA:
		b.WriteString(`
Each example should have:
- input: object with "messages" array containing a single message with role "user" and content (a user question/request in Russian)
- expected_output: the ideal assistant response in Russian
- evaluation_criteria: array of 3+ specific criteria to evaluate the response quality
- metadata: object (can be empty)

The user messages should be realistic — with typos, informal language, or varying levels of detail based on the test parameters.
`)
	case contract.FormatSingleUtteranceCorrection:
		b.WriteString(`
Each example should have:
- input: object with "messages" array containing a single message with role "operator" and content (an operator message that may contain errors)
- expected_output: the corrected version of the operator's message
- evaluation_criteria: array of 3+ specific criteria for evaluating the correction
- metadata: object (can be empty)

The operator messages should reflect the test parameters (punctuation errors, slang, etc.).
`)
	case contract.FormatDialogLastTurnCorrection:
		b.WriteString(`
Each example should have:
- input: object with "messages" array containing 3-5 messages alternating between "user" and "operator" roles, where the LAST message is from the operator and may contain errors
- expected_output: the corrected version of the LAST operator message only
- evaluation_criteria: array of 3+ specific criteria for evaluating the correction
- metadata: object (can be empty)

The dialog should be realistic and contextually coherent. Errors should be in the last operator message.
`)
	}

	b.WriteString(`
Return a JSON object with key "examples" containing an array of example objects.
All text content must be in Russian.
`)
	return b.String()
}
