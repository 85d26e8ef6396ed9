// Package validate checks a run's persisted artifacts against the data
// contract: structural schema, referential integrity and coverage policies.
// It has no dependency on the pipeline beyond the files it produced.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"evalgen/internal/contract"
	"evalgen/internal/store"
)

// Floor counts enforced by the contract.
const (
	minUseCases       = 5
	minPolicies       = 5
	minPolicyTypes    = 2
	minTestCasesPerUC = 3
)

type artifactShape int

const (
	shapeWrapped artifactShape = iota
	shapeBare
	shapeInvalid
)

// Run validates all artifacts in outDir. inputPath optionally names the
// original document for evidence cross-checking; when empty, the manifest's
// input_path is tried instead.
func Run(outDir, inputPath string) *Report {
	report := &Report{}

	required := []string{
		store.ManifestFile,
		store.UseCases.Filename(),
		store.Policies.Filename(),
		store.TestCases.Filename(),
		store.Dataset.Filename(),
	}
	for _, name := range required {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			report.Errorf("missing required file: %s", name)
		}
	}
	if !report.OK() {
		return report
	}

	inputLines := readInputLines(inputPath)

	// Manifest schema; its input_path doubles as the evidence-check source
	// when the caller supplied none.
	var manifest contract.RunManifest
	manifestData, err := os.ReadFile(filepath.Join(outDir, store.ManifestFile))
	if err != nil {
		report.Errorf("%s validation failed: %v", store.ManifestFile, err)
	} else if err := json.Unmarshal(manifestData, &manifest); err != nil {
		report.Errorf("%s validation failed: %v", store.ManifestFile, err)
	} else if err := manifest.Validate(); err != nil {
		report.Errorf("%s validation failed: %v", store.ManifestFile, err)
	} else if inputLines == nil && manifest.InputPath != "" {
		inputLines = readInputLines(manifest.InputPath)
	}

	useCaseIDs := checkUseCases(outDir, inputLines, report)
	policyIDs := checkPolicies(outDir, inputLines, report)
	testCaseIDs := checkTestCases(outDir, useCaseIDs, policyIDs, report)
	checkDataset(outDir, useCaseIDs, policyIDs, testCaseIDs, report)

	return report
}

func checkUseCases(outDir string, inputLines []string, report *Report) map[string]bool {
	list, shape := loadArtifact(filepath.Join(outDir, store.UseCases.Filename()), store.UseCases.WrapperKey())
	noteShape(shape, store.UseCases.Filename(), store.UseCases.WrapperKey(), report)

	report.AddStat("use_cases", len(list))
	if len(list) < minUseCases {
		report.Errorf("Minimum %d use cases required, found %d", minUseCases, len(list))
	}

	ids := make(map[string]bool)
	for i, raw := range list {
		var uc contract.UseCase
		if err := json.Unmarshal(raw, &uc); err != nil {
			report.Errorf("use_cases[%d] validation failed: %v", i, err)
			continue
		}
		if err := uc.Validate(); err != nil {
			report.Errorf("use_cases[%d] validation failed: %v", i, err)
			continue
		}
		ids[uc.ID] = true
		for _, ev := range uc.Evidence {
			checkEvidence(ev, inputLines, report, fmt.Sprintf("use_cases[%d]", i))
		}
	}
	return ids
}

func checkPolicies(outDir string, inputLines []string, report *Report) map[string]bool {
	list, shape := loadArtifact(filepath.Join(outDir, store.Policies.Filename()), store.Policies.WrapperKey())
	noteShape(shape, store.Policies.Filename(), store.Policies.WrapperKey(), report)

	report.AddStat("policies", len(list))
	if len(list) < minPolicies {
		report.Errorf("Minimum %d policies required, found %d", minPolicies, len(list))
	}

	ids := make(map[string]bool)
	types := make(map[contract.PolicyType]bool)
	for i, raw := range list {
		var pol contract.Policy
		if err := json.Unmarshal(raw, &pol); err != nil {
			report.Errorf("policies[%d] validation failed: %v", i, err)
			continue
		}
		if err := pol.Validate(); err != nil {
			report.Errorf("policies[%d] validation failed: %v", i, err)
			continue
		}
		ids[pol.ID] = true
		types[pol.Type] = true
		for _, ev := range pol.Evidence {
			checkEvidence(ev, inputLines, report, fmt.Sprintf("policies[%d]", i))
		}
	}
	if len(types) < minPolicyTypes {
		names := make([]string, 0, len(types))
		for t := range types {
			names = append(names, string(t))
		}
		report.Errorf("Minimum %d policy types required, found %d: %v", minPolicyTypes, len(types), names)
	}
	return ids
}

func checkTestCases(outDir string, useCaseIDs, policyIDs map[string]bool, report *Report) map[string]bool {
	list, shape := loadArtifact(filepath.Join(outDir, store.TestCases.Filename()), store.TestCases.WrapperKey())
	noteShape(shape, store.TestCases.Filename(), store.TestCases.WrapperKey(), report)

	report.AddStat("test_cases", len(list))

	ids := make(map[string]bool)
	perUseCase := make(map[string]int)
	for i, raw := range list {
		var tc contract.TestCase
		if err := json.Unmarshal(raw, &tc); err != nil {
			report.Errorf("test_cases[%d] validation failed: %v", i, err)
			continue
		}
		if err := tc.Validate(); err != nil {
			report.Errorf("test_cases[%d] validation failed: %v", i, err)
			continue
		}
		ids[tc.ID] = true
		perUseCase[tc.UseCaseID]++
		if !useCaseIDs[tc.UseCaseID] {
			report.Errorf("test_cases[%d].use_case_id '%s' not found in use_cases", i, tc.UseCaseID)
		}
		for _, pid := range tc.PolicyIDs {
			if !policyIDs[pid] {
				report.Errorf("test_cases[%d].policy_ids contains '%s' not found in policies", i, pid)
			}
		}
		if len(tc.PolicyIDs) == 0 {
			report.Errorf("test_cases[%d] must have at least 1 policy_id", i)
		}
	}

	for ucID, count := range perUseCase {
		if count < minTestCasesPerUC {
			report.Errorf("Use case %s has only %d test case(s), minimum is %d", ucID, count, minTestCasesPerUC)
		}
	}
	return ids
}

func checkDataset(outDir string, useCaseIDs, policyIDs, testCaseIDs map[string]bool, report *Report) {
	list, shape := loadArtifact(filepath.Join(outDir, store.Dataset.Filename()), store.Dataset.WrapperKey())
	noteShape(shape, store.Dataset.Filename(), store.Dataset.WrapperKey(), report)

	report.AddStat("examples", len(list))

	perTestCase := make(map[string]int)
	formatsSeen := make(map[contract.Format]bool)
	sourcesSeen := make(map[string]bool)
	var caseType contract.CaseType

	for i, raw := range list {
		var ex contract.DatasetExample
		if err := json.Unmarshal(raw, &ex); err != nil {
			report.Errorf("dataset[%d] validation failed: %v", i, err)
			continue
		}
		if err := ex.Validate(); err != nil {
			report.Errorf("dataset[%d] validation failed: %v", i, err)
			continue
		}
		if caseType == "" {
			caseType = ex.Case
		}
		formatsSeen[ex.Format] = true
		perTestCase[ex.TestCaseID]++
		if src, ok := ex.Metadata["source"].(string); ok && src != "" {
			sourcesSeen[src] = true
		}

		if !useCaseIDs[ex.UseCaseID] {
			report.Errorf("dataset[%d].use_case_id '%s' not found in use_cases", i, ex.UseCaseID)
		}
		if !testCaseIDs[ex.TestCaseID] {
			report.Errorf("dataset[%d].test_case_id '%s' not found in test_cases", i, ex.TestCaseID)
		}
		for _, pid := range ex.PolicyIDs {
			if !policyIDs[pid] {
				report.Errorf("dataset[%d].policy_ids contains '%s' not found in policies", i, pid)
			}
		}
		if len(ex.PolicyIDs) == 0 {
			report.Errorf("dataset[%d] must have at least 1 policy_id", i)
		}

		messages := ex.Input.Messages
		if len(messages) == 0 {
			report.Errorf("dataset[%d] input.messages is empty", i)
		}

		checkFormatShape(ex, i, report)

		if ex.Case == contract.CaseSupportBot {
			if src, ok := ex.Metadata["source"].(string); !ok || src == "" {
				report.Warnf("dataset[%d] support_bot example missing metadata.source", i)
			}
		}
	}

	for tcID := range testCaseIDs {
		if perTestCase[tcID] == 0 {
			report.Errorf("Test case %s has no examples in dataset", tcID)
		}
	}

	report.AddStat("formats", len(formatsSeen))
	report.AddStat("sources", len(sourcesSeen))

	switch caseType {
	case contract.CaseSupportBot:
		for _, src := range []string{"tickets", "faq_paraphrase", "corner"} {
			if !sourcesSeen[src] {
				report.Errorf("Support dataset missing required source: %s", src)
			}
		}
	case contract.CaseOperatorQuality:
		for _, f := range []contract.Format{contract.FormatSingleUtteranceCorrection, contract.FormatDialogLastTurnCorrection} {
			if !formatsSeen[f] {
				report.Errorf("Operator dataset missing required format: %s", f)
			}
		}
	}
}

// checkFormatShape enforces the per-format message-shape rules. The
// single-utterance format warns on index defects while the dialog format
// errors on them: multi-turn indexing mistakes are unambiguous bugs.
func checkFormatShape(ex contract.DatasetExample, i int, report *Report) {
	messages := ex.Input.Messages
	tmi := ex.Input.TargetMessageIndex

	switch ex.Format {
	case contract.FormatSingleUtteranceCorrection:
		if len(messages) != 1 {
			report.Warnf("dataset[%d] single_utterance_correction should have exactly 1 message, has %d", i, len(messages))
		}
		if len(messages) > 0 && messages[0].Role != "operator" {
			report.Errorf("dataset[%d] single_utterance_correction message must have role=operator", i)
		}
		if tmi == nil {
			report.Warnf("dataset[%d] single_utterance_correction missing input.target_message_index", i)
		} else if *tmi != 0 {
			report.Warnf("dataset[%d] single_utterance_correction target_message_index should be 0", i)
		}

	case contract.FormatDialogLastTurnCorrection:
		if len(messages) < 2 {
			report.Errorf("dataset[%d] dialog_last_turn_correction must have >= 2 messages", i)
		}
		if len(messages) > 0 && messages[len(messages)-1].Role != "operator" {
			report.Errorf("dataset[%d] dialog_last_turn_correction last message must have role=operator", i)
		}
		if tmi == nil {
			report.Errorf("dataset[%d] dialog_last_turn_correction missing input.target_message_index", i)
		} else if *tmi != len(messages)-1 {
			report.Errorf("dataset[%d] target_message_index=%d but should be %d", i, *tmi, len(messages)-1)
		}
	}
}

// checkEvidence cross-checks an evidence citation against the actual input
// document. Both defects are soft: gateway text is inherently approximate.
func checkEvidence(ev contract.Evidence, inputLines []string, report *Report, context string) {
	if inputLines == nil {
		return
	}
	if ev.LineStart < 1 || ev.LineEnd < ev.LineStart || ev.LineEnd > len(inputLines) {
		report.Warnf("%s: line range %d-%d out of bounds (file has %d lines)",
			context, ev.LineStart, ev.LineEnd, len(inputLines))
		return
	}
	actual := strings.TrimSpace(strings.Join(inputLines[ev.LineStart-1:ev.LineEnd], "\n"))
	quote := strings.TrimSpace(ev.Quote)
	if quote != "" && !strings.Contains(actual, quote) {
		report.Warnf("%s: evidence quote does not match lines %d-%d", context, ev.LineStart, ev.LineEnd)
	}
}

// loadArtifact reads one artifact file and reports its wrapper shape. An
// unreadable or malformed file counts as invalid and yields no records.
func loadArtifact(path, key string) ([]json.RawMessage, artifactShape) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shapeInvalid
	}
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, shapeInvalid
		}
		return list, shapeBare
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, shapeInvalid
	}
	inner, ok := doc[key]
	if !ok {
		return nil, shapeInvalid
	}
	var list []json.RawMessage
	if err := json.Unmarshal(inner, &list); err != nil {
		return nil, shapeInvalid
	}
	return list, shapeWrapped
}

func noteShape(shape artifactShape, filename, key string, report *Report) {
	switch shape {
	case shapeBare:
		report.Warnf("%s should be {%q: [...]}, not a bare array", filename, key)
	case shapeInvalid:
		report.Errorf("%s must be {%q: [...]}", filename, key)
	}
}

func readInputLines(path string) []string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
