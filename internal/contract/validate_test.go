package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvidenceValidate(t *testing.T) {
	assert.NoError(t, Evidence{InputFile: "doc.md", LineStart: 2, LineEnd: 5, Quote: "q"}.Validate())
	assert.Error(t, Evidence{InputFile: "doc.md", LineStart: 0, LineEnd: 1}.Validate())
	assert.Error(t, Evidence{InputFile: "doc.md", LineStart: 5, LineEnd: 2}.Validate())
}

func TestUseCaseValidate(t *testing.T) {
	ev := []Evidence{{InputFile: "doc.md", LineStart: 1, LineEnd: 1, Quote: "q"}}

	assert.NoError(t, UseCase{ID: "uc_1", Case: CaseSupportBot, Name: "n", Evidence: ev}.Validate())
	assert.Error(t, UseCase{ID: "case_1", Case: CaseSupportBot, Evidence: ev}.Validate(), "wrong id prefix")
	assert.Error(t, UseCase{ID: "uc_1", Case: "chat_bot", Evidence: ev}.Validate(), "unknown case")
	assert.Error(t, UseCase{ID: "uc_1", Case: CaseSupportBot}.Validate(), "no evidence")
}

func TestPolicyValidate(t *testing.T) {
	ev := []Evidence{{InputFile: "doc.md", LineStart: 1, LineEnd: 1, Quote: "q"}}

	assert.NoError(t, Policy{ID: "pol_1", Type: PolicyEscalate, Case: CaseOperatorQuality, Statement: "s", Evidence: ev}.Validate())
	assert.Error(t, Policy{ID: "pol_1", Type: "should", Case: CaseSupportBot, Evidence: ev}.Validate(), "unknown type")
}

func TestDatasetExampleValidate(t *testing.T) {
	ex := DatasetExample{
		ID: "ex_1", Case: CaseSupportBot, Format: FormatSingleTurnQA,
		UseCaseID: "uc_1", TestCaseID: "tc_1",
		Input:              ExampleInput{Messages: []Message{{Role: "user", Content: "hi"}}},
		EvaluationCriteria: []string{"a", "b", "c"},
	}
	assert.NoError(t, ex.Validate())

	short := ex
	short.EvaluationCriteria = []string{"a"}
	assert.Error(t, short.Validate(), "criteria floor")

	badRole := ex
	badRole.Input = ExampleInput{Messages: []Message{{Role: "moderator", Content: "hi"}}}
	assert.Error(t, badRole.Validate())
}

func TestRunManifestValidate(t *testing.T) {
	m := RunManifest{
		RunID: "r", InputPath: "in.md", OutPath: "out", Seed: 1,
		Timestamp: "2025-01-01T00:00:00Z", GeneratorVersion: "0.1.0",
		LLM: LLMInfo{Provider: "google", Model: "gemini-2.0-flash"},
	}
	assert.NoError(t, m.Validate())

	m.LLM.Model = ""
	assert.Error(t, m.Validate())
}
