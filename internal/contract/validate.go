package contract

import (
	"fmt"
	"strings"
)

// Message roles accepted by the contract.
var validRoles = map[string]bool{
	"user":      true,
	"operator":  true,
	"assistant": true,
	"system":    true,
}

func validCase(c CaseType) bool {
	return c == CaseSupportBot || c == CaseOperatorQuality
}

func validPolicyType(t PolicyType) bool {
	switch t {
	case PolicyMust, PolicyMustNot, PolicyEscalate, PolicyStyle, PolicyFormat:
		return true
	}
	return false
}

func validFormat(f Format) bool {
	switch f {
	case FormatSingleTurnQA, FormatSingleUtteranceCorrection, FormatDialogLastTurnCorrection:
		return true
	}
	return false
}

// Validate checks the evidence's internal consistency. Bounds against the
// source document are the validator's concern; here only the line ordering
// is enforced.
func (e Evidence) Validate() error {
	if e.LineStart < 1 {
		return fmt.Errorf("line_start must be >= 1, got %d", e.LineStart)
	}
	if e.LineEnd < e.LineStart {
		return fmt.Errorf("line_end %d precedes line_start %d", e.LineEnd, e.LineStart)
	}
	return nil
}

// Validate checks the use case against the schema rules.
func (u UseCase) Validate() error {
	if !strings.HasPrefix(u.ID, UseCaseIDPrefix) {
		return fmt.Errorf("id %q must start with %q", u.ID, UseCaseIDPrefix)
	}
	if !validCase(u.Case) {
		return fmt.Errorf("invalid case %q", u.Case)
	}
	if len(u.Evidence) < 1 {
		return fmt.Errorf("at least 1 evidence entry required")
	}
	for i, ev := range u.Evidence {
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("evidence[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks the policy against the schema rules.
func (p Policy) Validate() error {
	if !strings.HasPrefix(p.ID, PolicyIDPrefix) {
		return fmt.Errorf("id %q must start with %q", p.ID, PolicyIDPrefix)
	}
	if !validPolicyType(p.Type) {
		return fmt.Errorf("invalid policy type %q", p.Type)
	}
	if !validCase(p.Case) {
		return fmt.Errorf("invalid case %q", p.Case)
	}
	if len(p.Evidence) < 1 {
		return fmt.Errorf("at least 1 evidence entry required")
	}
	for i, ev := range p.Evidence {
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("evidence[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks the test case against the schema rules. The non-empty
// policy_ids floor is a referential concern checked by the validator.
func (t TestCase) Validate() error {
	if !strings.HasPrefix(t.ID, TestCaseIDPrefix) {
		return fmt.Errorf("id %q must start with %q", t.ID, TestCaseIDPrefix)
	}
	if !validCase(t.Case) {
		return fmt.Errorf("invalid case %q", t.Case)
	}
	if !strings.HasPrefix(t.UseCaseID, UseCaseIDPrefix) {
		return fmt.Errorf("use_case_id %q must start with %q", t.UseCaseID, UseCaseIDPrefix)
	}
	return nil
}

// Validate checks the dataset example against the schema rules.
func (d DatasetExample) Validate() error {
	if !strings.HasPrefix(d.ID, ExampleIDPrefix) {
		return fmt.Errorf("id %q must start with %q", d.ID, ExampleIDPrefix)
	}
	if !validCase(d.Case) {
		return fmt.Errorf("invalid case %q", d.Case)
	}
	if !validFormat(d.Format) {
		return fmt.Errorf("invalid format %q", d.Format)
	}
	if !strings.HasPrefix(d.UseCaseID, UseCaseIDPrefix) {
		return fmt.Errorf("use_case_id %q must start with %q", d.UseCaseID, UseCaseIDPrefix)
	}
	if !strings.HasPrefix(d.TestCaseID, TestCaseIDPrefix) {
		return fmt.Errorf("test_case_id %q must start with %q", d.TestCaseID, TestCaseIDPrefix)
	}
	if len(d.EvaluationCriteria) < 3 {
		return fmt.Errorf("at least 3 evaluation criteria required, got %d", len(d.EvaluationCriteria))
	}
	for i, msg := range d.Input.Messages {
		if !validRoles[msg.Role] {
			return fmt.Errorf("messages[%d]: invalid role %q", i, msg.Role)
		}
	}
	return nil
}

// Validate checks the run manifest for required fields.
func (m RunManifest) Validate() error {
	if m.InputPath == "" {
		return fmt.Errorf("input_path is required")
	}
	if m.OutPath == "" {
		return fmt.Errorf("out_path is required")
	}
	if m.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	if m.GeneratorVersion == "" {
		return fmt.Errorf("generator_version is required")
	}
	if m.LLM.Provider == "" || m.LLM.Model == "" {
		return fmt.Errorf("llm provider and model are required")
	}
	return nil
}
