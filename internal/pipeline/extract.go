package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"evalgen/internal/config"
	"evalgen/internal/contract"
	"evalgen/internal/gateway"
	"evalgen/internal/store"
)

const analystSystem = "You are an expert business analyst. You extract structured data from documents. " +
	"Always respond with valid JSON only."

// The policy prompt asks for a floor, not an exact count.
const policyPromptFloor = 8

// Extractor is stage 1: it classifies the input document and extracts use
// cases and policies with line-range evidence.
type Extractor struct {
	cfg     *config.Config
	gen     gateway.Generator
	store   *store.Store
	log     *zap.Logger
	repairs *RepairLog
}

// NewExtractor creates the extraction stage.
func NewExtractor(cfg *config.Config, gen gateway.Generator, st *store.Store, log *zap.Logger, repairs *RepairLog) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{cfg: cfg, gen: gen, store: st, log: log, repairs: repairs}
}

// Run produces the use-case and policy artifacts. When both already exist
// and are non-empty the loaded records are returned unchanged and no
// generation happens (all-or-nothing resume).
func (e *Extractor) Run(ctx context.Context) ([]contract.UseCase, []contract.Policy, error) {
	useCases, ucFound, err := store.Load[contract.UseCase](e.store, store.UseCases)
	if err != nil {
		return nil, nil, err
	}
	policies, polFound, err := store.Load[contract.Policy](e.store, store.Policies)
	if err != nil {
		return nil, nil, err
	}
	if ucFound && polFound && len(useCases) > 0 && len(policies) > 0 {
		e.log.Info("extraction artifacts present, skipping generation",
			zap.Int("use_cases", len(useCases)), zap.Int("policies", len(policies)))
		return useCases, policies, nil
	}

	doc, err := ReadDocument(e.cfg.InputPath)
	if err != nil {
		return nil, nil, err
	}
	caseType := DetectCase(strings.Join(doc.Lines, "\n"))
	e.log.Info("classified input document",
		zap.String("case", string(caseType)), zap.Int("lines", len(doc.Lines)))

	useCases, err = e.extractUseCases(ctx, doc, caseType)
	if err != nil {
		return nil, nil, fmt.Errorf("use case extraction failed: %w", err)
	}
	e.log.Info("extracted use cases", zap.Int("count", len(useCases)))

	policies, err = e.extractPolicies(ctx, doc, caseType)
	if err != nil {
		return nil, nil, fmt.Errorf("policy extraction failed: %w", err)
	}
	e.log.Info("extracted policies", zap.Int("count", len(policies)))

	if err := store.Save(e.store, store.UseCases, useCases); err != nil {
		return nil, nil, err
	}
	if err := store.Save(e.store, store.Policies, policies); err != nil {
		return nil, nil, err
	}
	return useCases, policies, nil
}

func (e *Extractor) extractUseCases(ctx context.Context, doc *Document, caseType contract.CaseType) ([]contract.UseCase, error) {
	prompt := fmt.Sprintf(`Analyze the following business requirements document and extract all distinct business use cases (scenarios).
The document has numbered lines for reference.

Document type: %s

DOCUMENT:
%s

Extract exactly %d use cases. For each use case provide:
- id: sequential id in format "uc_1", "uc_2", etc.
- case: %q
- name: short name of the use case
- description: detailed description of what the use case covers
- evidence: array of objects with:
  - input_file: %q
  - line_start: starting line number in the document
  - line_end: ending line number
  - quote: exact quote from the document that supports this use case

Return a JSON object with key "use_cases" containing an array of use case objects.
`, caseType, doc.Numbered(), e.cfg.NUseCases, caseType, doc.Name())

	result, err := e.gen.GenerateJSON(ctx, prompt, analystSystem)
	if err != nil {
		return nil, err
	}
	records := gateway.Unwrap(result, "use_cases")
	if len(records) > e.cfg.NUseCases {
		records = records[:e.cfg.NUseCases]
	}

	useCases := make([]contract.UseCase, 0, len(records))
	for i, rec := range records {
		id := fmt.Sprintf("uc_%d", i+1)
		name := stringField(rec, "name")
		if name == "" {
			name = fmt.Sprintf("Use Case %d", i+1)
		}
		useCases = append(useCases, contract.UseCase{
			ID:          id,
			Case:        caseType,
			Name:        name,
			Description: stringField(rec, "description"),
			Evidence:    e.repairEvidence(listField(rec, "evidence"), doc, id),
		})
	}
	return useCases, nil
}

func (e *Extractor) extractPolicies(ctx context.Context, doc *Document, caseType contract.CaseType) ([]contract.Policy, error) {
	prompt := fmt.Sprintf(`Analyze the following business requirements document and extract all constraints, rules, and policies.

Document type: %s

DOCUMENT:
%s

Extract at least %d policies. For each policy provide:
- id: sequential id in format "pol_1", "pol_2", etc.
- type: one of "must", "must_not", "escalate", "style", "format"
  - "must": something the agent/operator MUST do
  - "must_not": something the agent/operator MUST NOT do
  - "escalate": conditions requiring escalation to human/supervisor
  - "style": tone, language, communication style requirements
  - "format": formatting, structure requirements for responses
- case: %q
- statement: clear statement of the policy/rule
- evidence: array of objects with:
  - input_file: %q
  - line_start: starting line number in the document
  - line_end: ending line number
  - quote: exact quote from the document

Return a JSON object with key "policies" containing an array of policy objects.
`, caseType, doc.Numbered(), policyPromptFloor, caseType, doc.Name())

	result, err := e.gen.GenerateJSON(ctx, prompt, analystSystem)
	if err != nil {
		return nil, err
	}
	records := gateway.Unwrap(result, "policies")

	policies := make([]contract.Policy, 0, len(records))
	for i, rec := range records {
		id := fmt.Sprintf("pol_%d", i+1)
		polType := contract.PolicyType(stringField(rec, "type"))
		switch polType {
		case contract.PolicyMust, contract.PolicyMustNot, contract.PolicyEscalate,
			contract.PolicyStyle, contract.PolicyFormat:
		default:
			e.repairs.Record(RepairCoercedPolicyType, id,
				fmt.Sprintf("unknown type %q coerced to must", polType))
			polType = contract.PolicyMust
		}
		policies = append(policies, contract.Policy{
			ID:        id,
			Type:      polType,
			Case:      caseType,
			Statement: stringField(rec, "statement"),
			Evidence:  e.repairEvidence(listField(rec, "evidence"), doc, id),
		})
	}
	return policies, nil
}

// repairEvidence validates gateway-supplied evidence against the actual
// document. Line ranges are clamped into bounds, untrusted quotes are
// replaced with the literal line-range text, and a placeholder entry is
// synthesized when no evidence came back at all.
func (e *Extractor) repairEvidence(raw []any, doc *Document, recordID string) []contract.Evidence {
	validated := make([]contract.Evidence, 0, len(raw))
	total := len(doc.Lines)

	for _, item := range raw {
		ev, ok := item.(map[string]any)
		if !ok {
			continue
		}
		lineStart := intField(ev, "line_start", 1)
		lineEnd := intField(ev, "line_end", lineStart)
		quote := strings.TrimSpace(stringField(ev, "quote"))

		start := lineStart
		if start < 1 {
			start = 1
		}
		if start > total {
			start = total
		}
		end := lineEnd
		if end > total {
			end = total
		}
		if end < start {
			end = start
		}
		if start != lineStart || end != lineEnd {
			e.repairs.Record(RepairClampedEvidence, recordID,
				fmt.Sprintf("range %d-%d clamped to %d-%d", lineStart, lineEnd, start, end))
		}

		actual := doc.Range(start, end)
		final := quote
		if quote == "" || !strings.Contains(actual, quote) {
			replaced := strings.TrimSpace(actual)
			if replaced != "" {
				final = replaced
			}
			if quote != "" {
				e.repairs.Record(RepairReplacedQuote, recordID,
					fmt.Sprintf("quote not found in lines %d-%d", start, end))
			}
		}

		validated = append(validated, contract.Evidence{
			InputFile: doc.Name(),
			LineStart: start,
			LineEnd:   end,
			Quote:     final,
		})
	}

	if len(validated) == 0 {
		e.repairs.Record(RepairSynthesizedEvidence, recordID, "no evidence supplied, placeholder added")
		validated = append(validated, contract.Evidence{
			InputFile: doc.Name(),
			LineStart: 1,
			LineEnd:   1,
			Quote:     "N/A",
		})
	}
	return validated
}
