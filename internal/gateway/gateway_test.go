package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnwrap(t *testing.T) {
	rec := map[string]any{"name": "Order status"}

	t.Run("wrapped list", func(t *testing.T) {
		got := Unwrap(map[string]any{"use_cases": []any{rec}}, "use_cases")
		assert.Equal(t, []map[string]any{rec}, got)
	})

	t.Run("bare list", func(t *testing.T) {
		got := Unwrap([]any{rec, map[string]any{"name": "Returns"}}, "use_cases")
		assert.Len(t, got, 2)
		assert.Equal(t, "Order status", got[0]["name"])
	})

	t.Run("single object without key", func(t *testing.T) {
		got := Unwrap(rec, "use_cases")
		assert.Equal(t, []map[string]any{rec}, got)
	})

	t.Run("wrapped single object", func(t *testing.T) {
		got := Unwrap(map[string]any{"policies": rec}, "policies")
		assert.Equal(t, []map[string]any{rec}, got)
	})

	t.Run("non-record list items dropped", func(t *testing.T) {
		got := Unwrap([]any{rec, "stray string", 7.0}, "use_cases")
		assert.Equal(t, []map[string]any{rec}, got)
	})

	t.Run("scalar yields nil", func(t *testing.T) {
		assert.Nil(t, Unwrap("oops", "use_cases"))
		assert.Nil(t, Unwrap(nil, "use_cases"))
	})
}
