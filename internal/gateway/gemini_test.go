package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubCaller replays a scripted sequence of responses and errors.
type stubCaller struct {
	texts []string
	errs  []error
	calls int
}

func (s *stubCaller) generate(ctx context.Context, prompt, system string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.texts) {
		return s.texts[i], nil
	}
	return "", errors.New("no scripted response")
}

func newTestClient(caller modelCaller, maxRetries int, waits *[]time.Duration) *GeminiClient {
	return &GeminiClient{
		caller:     caller,
		maxRetries: maxRetries,
		limiter:    NewRateLimiter(0),
		log:        zap.NewNop(),
		sleep: func(d time.Duration) {
			*waits = append(*waits, d)
		},
	}
}

func TestGenerateJSONFirstTry(t *testing.T) {
	var waits []time.Duration
	c := newTestClient(&stubCaller{texts: []string{`{"use_cases": []}`}}, 8, &waits)

	got, err := c.GenerateJSON(context.Background(), "prompt", "system")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"use_cases": []any{}}, got)
	assert.Empty(t, waits)
}

func TestGenerateJSONRetriesRateLimit(t *testing.T) {
	var waits []time.Duration
	c := newTestClient(&stubCaller{
		errs:  []error{errors.New("429 RESOURCE_EXHAUSTED: quota exceeded, retryDelay: 7s")},
		texts: []string{"", `{"ok": true}`},
	}, 8, &waits)

	got, err := c.GenerateJSON(context.Background(), "p", "s")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, got)
	// Hinted 7s plus the 5s slack.
	require.Len(t, waits, 1)
	assert.Equal(t, 12*time.Second, waits[0])
}

func TestGenerateJSONRetriesGenericError(t *testing.T) {
	var waits []time.Duration
	c := newTestClient(&stubCaller{
		errs:  []error{errors.New("transient network failure")},
		texts: []string{"", `{"ok": 1}`},
	}, 8, &waits)

	_, err := c.GenerateJSON(context.Background(), "p", "s")
	require.NoError(t, err)
	require.Len(t, waits, 1)
	assert.Equal(t, 1*time.Second, waits[0])
}

func TestGenerateJSONExhaustsRetries(t *testing.T) {
	var waits []time.Duration
	stub := &stubCaller{errs: []error{
		errors.New("boom"), errors.New("boom"), errors.New("boom"),
	}}
	c := newTestClient(stub, 3, &waits)

	_, err := c.GenerateJSON(context.Background(), "p", "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, stub.calls)
	// No sleep after the final attempt.
	assert.Len(t, waits, 2)
}

func TestParsePayload(t *testing.T) {
	t.Run("plain JSON", func(t *testing.T) {
		got, err := ParsePayload(`{"a": 1}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1.0}, got)
	})

	t.Run("fenced block", func(t *testing.T) {
		got, err := ParsePayload("Here you go:\n```json\n{\"a\": [1, 2]}\n```\nHope that helps!")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": []any{1.0, 2.0}}, got)
	})

	t.Run("fence without language tag", func(t *testing.T) {
		got, err := ParsePayload("```\n[{\"b\": true}]\n```")
		require.NoError(t, err)
		assert.Equal(t, []any{map[string]any{"b": true}}, got)
	})

	t.Run("near-JSON repaired", func(t *testing.T) {
		got, err := ParsePayload(`{"items": [1, 2,], "name": 'x'}`)
		require.NoError(t, err)
		m, ok := got.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "x", m["name"])
	})
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, isRateLimited(errors.New("googleapi: Error 429: quota exceeded")))
	assert.True(t, isRateLimited(errors.New("RESOURCE_EXHAUSTED")))
	assert.True(t, isRateLimited(errors.New("you hit a rate limit")))
	assert.False(t, isRateLimited(errors.New("connection reset by peer")))
}

func TestRateLimitDelay(t *testing.T) {
	t.Run("hinted delay plus slack", func(t *testing.T) {
		err := errors.New("quota exceeded, please retry in 30 seconds")
		assert.Equal(t, 35*time.Second, rateLimitDelay(err, 0))
	})

	t.Run("hinted delay capped", func(t *testing.T) {
		err := errors.New("retryDelay: 500s")
		assert.Equal(t, 120*time.Second, rateLimitDelay(err, 0))
	})

	t.Run("no hint escalates", func(t *testing.T) {
		err := errors.New("quota exceeded")
		assert.Equal(t, 12*time.Second, rateLimitDelay(err, 0))
		assert.Equal(t, 24*time.Second, rateLimitDelay(err, 1))
		assert.Equal(t, 120*time.Second, rateLimitDelay(err, 6))
	})
}

func TestGenericBackoff(t *testing.T) {
	assert.Equal(t, 1*time.Second, genericBackoff(0))
	assert.Equal(t, 4*time.Second, genericBackoff(2))
}
