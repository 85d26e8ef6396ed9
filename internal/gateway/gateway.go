// Package gateway is the generative-model call boundary: submit a prompt,
// receive parsed structured data, or fail after bounded retries. Everything
// above it treats a terminal gateway failure as fatal for the run.
package gateway

import "context"

// Generator abstracts the model call so the pipeline stages can be driven by
// a stub in tests. Implementations return already-parsed JSON data (an
// object or a list) and own their retry and rate-limit behavior.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt, system string) (any, error)
}

// Unwrap maps the accepted response shapes onto one canonical record list:
// {key: [...]} yields the inner list, a bare list is taken as-is, and a
// single object becomes a one-element list. Anything else yields nil. Every
// call site normalizes through here before domain logic runs.
func Unwrap(data any, key string) []map[string]any {
	if m, ok := data.(map[string]any); ok {
		if inner, ok := m[key]; ok {
			data = inner
		} else {
			return []map[string]any{m}
		}
	}

	switch v := data.(type) {
	case []any:
		records := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if rec, ok := item.(map[string]any); ok {
				records = append(records, rec)
			}
		}
		return records
	case map[string]any:
		return []map[string]any{v}
	}
	return nil
}
