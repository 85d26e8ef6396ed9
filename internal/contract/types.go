// Package contract defines the artifact record types shared by the
// generation pipeline and the validator, together with their schema rules.
// Identifiers carry fixed prefixes (uc_, pol_, tc_, ex_) and are unique per
// artifact, not globally.
package contract

// CaseType classifies the input document; one document maps to exactly one
// case type for the entire run.
type CaseType string

const (
	CaseSupportBot      CaseType = "support_bot"
	CaseOperatorQuality CaseType = "operator_quality"
)

// PolicyType categorizes a policy statement.
type PolicyType string

const (
	PolicyMust     PolicyType = "must"
	PolicyMustNot  PolicyType = "must_not"
	PolicyEscalate PolicyType = "escalate"
	PolicyStyle    PolicyType = "style"
	PolicyFormat   PolicyType = "format"
)

// Format identifies the shape of a dataset example's input.
type Format string

const (
	FormatSingleTurnQA              Format = "single_turn_qa"
	FormatSingleUtteranceCorrection Format = "single_utterance_correction"
	FormatDialogLastTurnCorrection  Format = "dialog_last_turn_correction"
)

// Id prefixes per record type.
const (
	UseCaseIDPrefix  = "uc_"
	PolicyIDPrefix   = "pol_"
	TestCaseIDPrefix = "tc_"
	ExampleIDPrefix  = "ex_"
)

// Evidence is a document line-range citation supporting an extracted claim.
// Line numbers are 1-based and inclusive.
type Evidence struct {
	InputFile string `json:"input_file"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Quote     string `json:"quote"`
}

// UseCase is a distinct business scenario the dataset must exercise.
type UseCase struct {
	ID          string     `json:"id"`
	Case        CaseType   `json:"case"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Evidence    []Evidence `json:"evidence"`
}

// Policy is a rule or constraint an agent or operator response must satisfy.
type Policy struct {
	ID        string     `json:"id"`
	Type      PolicyType `json:"type"`
	Case      CaseType   `json:"case"`
	Statement string     `json:"statement"`
	Evidence  []Evidence `json:"evidence"`
}

// TestCase is a parameterized scenario instance tied to one use case and a
// subset of policies.
type TestCase struct {
	ID         string         `json:"id"`
	Case       CaseType       `json:"case"`
	UseCaseID  string         `json:"use_case_id"`
	Parameters map[string]any `json:"parameters"`
	PolicyIDs  []string       `json:"policy_ids"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExampleInput is the input half of a dataset example. TargetMessageIndex is
// present only for the correction formats.
type ExampleInput struct {
	Messages           []Message `json:"messages"`
	TargetMessageIndex *int      `json:"target_message_index,omitempty"`
}

// DatasetExample is one concrete input/expected-output pair for evaluation.
type DatasetExample struct {
	ID                 string         `json:"id"`
	Case               CaseType       `json:"case"`
	Format             Format         `json:"format"`
	UseCaseID          string         `json:"use_case_id"`
	TestCaseID         string         `json:"test_case_id"`
	Input              ExampleInput   `json:"input"`
	ExpectedOutput     string         `json:"expected_output"`
	EvaluationCriteria []string       `json:"evaluation_criteria"`
	PolicyIDs          []string       `json:"policy_ids"`
	Metadata           map[string]any `json:"metadata"`
}

// LLMInfo records the model configuration used for a run.
type LLMInfo struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// RunManifest is written once at pipeline start and never mutated.
type RunManifest struct {
	RunID            string  `json:"run_id"`
	InputPath        string  `json:"input_path"`
	OutPath          string  `json:"out_path"`
	Seed             int     `json:"seed"`
	Timestamp        string  `json:"timestamp"`
	GeneratorVersion string  `json:"generator_version"`
	LLM              LLMInfo `json:"llm"`
}
