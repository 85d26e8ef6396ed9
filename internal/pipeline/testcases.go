package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"evalgen/internal/config"
	"evalgen/internal/contract"
	"evalgen/internal/gateway"
	"evalgen/internal/store"
)

const qaSystem = "You are a QA engineer generating test cases for LLM agent testing. " +
	"Always respond with valid JSON only."

// Variation axes per case type. The prompt asks the model to explore these
// when assigning parameters.
var variationAxes = map[contract.CaseType][]string{
	contract.CaseSupportBot: {
		"tone", "has_order_id", "requires_account", "language", "abuse", "garbage",
	},
	contract.CaseOperatorQuality: {
		"punctuation_errors", "slang", "medical_terms", "escalation_needed", "emoji",
	},
}

func axesDescription(caseType contract.CaseType) string {
	if caseType == contract.CaseSupportBot {
		return `- tone: "polite", "neutral", "angry", "confused"
- has_order_id: true/false — whether the user provides an order ID
- requires_account: true/false — whether the scenario requires account access
- language: "ru", "mixed_ru_en" — language of user message
- abuse: true/false — whether the user uses abusive language
- garbage: true/false — whether the input is nonsensical/random text`
	}
	return `- punctuation_errors: "none", "minor", "major" — level of punctuation errors in operator text
- slang: true/false — whether operator uses informal/slang language
- medical_terms: "correct", "incorrect", "missing" — accuracy of medical terminology
- escalation_needed: true/false — whether the situation requires escalation
- emoji: "none", "appropriate", "excessive" — emoji usage level`
}

// TestCaseGenerator is stage 2: one gateway call per use case, ids assigned
// sequentially across the whole run.
type TestCaseGenerator struct {
	cfg     *config.Config
	gen     gateway.Generator
	store   *store.Store
	log     *zap.Logger
	repairs *RepairLog
}

// NewTestCaseGenerator creates the test-case generation stage.
func NewTestCaseGenerator(cfg *config.Config, gen gateway.Generator, st *store.Store, log *zap.Logger, repairs *RepairLog) *TestCaseGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &TestCaseGenerator{cfg: cfg, gen: gen, store: st, log: log, repairs: repairs}
}

// Run produces the test-case artifact. An existing non-empty artifact is
// returned unchanged, even if it falls short of the per-use-case floor; the
// validator owns that check and regeneration would break the resume
// contract.
func (g *TestCaseGenerator) Run(ctx context.Context, useCases []contract.UseCase, policies []contract.Policy) ([]contract.TestCase, error) {
	existing, found, err := store.Load[contract.TestCase](g.store, store.TestCases)
	if err != nil {
		return nil, err
	}
	if found && len(existing) > 0 {
		g.log.Info("test case artifact present, skipping generation",
			zap.Int("test_cases", len(existing)))
		return existing, nil
	}

	caseType := contract.CaseSupportBot
	if len(useCases) > 0 {
		caseType = useCases[0].Case
	}
	axes := variationAxes[caseType]
	policyIDs := make([]string, 0, len(policies))
	for _, p := range policies {
		policyIDs = append(policyIDs, p.ID)
	}
	known := make(map[string]bool, len(policyIDs))
	for _, id := range policyIDs {
		known[id] = true
	}

	axesJSON, _ := json.Marshal(axes)
	idsJSON, _ := json.Marshal(policyIDs)

	var testCases []contract.TestCase
	counter := 1

	for _, uc := range useCases {
		g.log.Info("generating test cases", zap.String("use_case", uc.ID), zap.String("name", uc.Name))

		prompt := fmt.Sprintf(`Generate exactly %d test cases for the following use case.

Use Case:
- ID: %s
- Name: %s
- Description: %s
- Case type: %s

Available variation axes: %s

Available policy IDs: %s

For each test case:
- Assign unique parameter combinations using the variation axes
- Select 1-4 relevant policy_ids that this test case should verify
- Make test cases diverse — cover normal, edge, and adversarial scenarios

Axes values:
%s

Return a JSON object with key "test_cases" containing an array of objects:
- parameters: dict mapping axis names to values
- policy_ids: array of relevant policy IDs from the available list
`, g.cfg.NTestCasesPerUC, uc.ID, uc.Name, uc.Description, caseType, axesJSON, idsJSON, axesDescription(caseType))

		result, err := g.gen.GenerateJSON(ctx, prompt, qaSystem)
		if err != nil {
			return nil, fmt.Errorf("test case generation for %s failed: %w", uc.ID, err)
		}

		records := gateway.Unwrap(result, "test_cases")
		if len(records) > g.cfg.NTestCasesPerUC {
			records = records[:g.cfg.NTestCasesPerUC]
		}

		for _, rec := range records {
			id := fmt.Sprintf("tc_%d", counter)

			pids := make([]string, 0, 4)
			for _, pid := range stringListField(rec, "policy_ids") {
				if known[pid] {
					pids = append(pids, pid)
				}
			}
			// Unknown references are dropped; an empty result falls back to
			// the first two known policies so the >=1 invariant holds.
			if len(pids) == 0 && len(policyIDs) > 0 {
				fallback := policyIDs
				if len(fallback) > 2 {
					fallback = fallback[:2]
				}
				pids = append(pids, fallback...)
				g.repairs.Record(RepairSubstitutedPolicies, id,
					fmt.Sprintf("no valid policy ids, substituted %v", pids))
			}

			params := mapField(rec, "parameters")
			if params == nil {
				params = map[string]any{}
			}

			testCases = append(testCases, contract.TestCase{
				ID:         id,
				Case:       caseType,
				UseCaseID:  uc.ID,
				Parameters: params,
				PolicyIDs:  pids,
			})
			counter++
		}
	}

	g.log.Info("generated test cases", zap.Int("count", len(testCases)))
	if err := store.Save(g.store, store.TestCases, testCases); err != nil {
		return nil, err
	}
	return testCases, nil
}
