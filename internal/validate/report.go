package validate

import "fmt"

// Stat is one summary statistic, kept in insertion order.
type Stat struct {
	Name  string
	Value string
}

// Report collects contract violations (errors), soft inconsistencies
// (warnings) and summary statistics. Validation passes iff there are zero
// errors; warnings never affect the outcome.
type Report struct {
	Errors   []string
	Warnings []string
	Stats    []Stat
}

// Errorf appends a contract violation.
func (r *Report) Errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Warnf appends a soft inconsistency.
func (r *Report) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// AddStat appends a summary statistic.
func (r *Report) AddStat(name string, value any) {
	r.Stats = append(r.Stats, Stat{Name: name, Value: fmt.Sprint(value)})
}

// OK reports whether validation passed.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}
