package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini gateway client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	Seed        int
	MaxRetries  int
	MinInterval time.Duration
}

// DefaultGeminiConfig returns sensible defaults. The 6s minimum interval
// keeps the call rate under the free-tier limit.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
		MaxRetries:  8,
		MinInterval: 6 * time.Second,
	}
}

// modelCaller is the raw single-shot model call. Split out so the retry loop
// can be exercised without a live client.
type modelCaller interface {
	generate(ctx context.Context, prompt, system string) (string, error)
}

// GeminiClient implements Generator against the Google Gemini API with
// bounded retries, escalating backoff and a minimum inter-call spacing.
type GeminiClient struct {
	caller     modelCaller
	maxRetries int
	limiter    *RateLimiter
	log        *zap.Logger
	sleep      func(time.Duration)
}

// NewGeminiClient creates a Gemini-backed gateway client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 8
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		caller: &genaiCaller{
			client:      client,
			model:       cfg.Model,
			temperature: cfg.Temperature,
			seed:        int32(cfg.Seed),
		},
		maxRetries: cfg.MaxRetries,
		limiter:    NewRateLimiter(cfg.MinInterval),
		log:        log,
		sleep:      time.Sleep,
	}, nil
}

// GenerateJSON sends the prompt and returns the parsed JSON payload. Rate
// limit and quota failures back off longest, honoring the provider's hinted
// retry delay when one is present; malformed responses get a salvage attempt
// and a short backoff; everything else gets generic doubling. After the
// retry ceiling the last error propagates to the caller.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt, system string) (any, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		c.limiter.Wait()

		text, err := c.caller.generate(ctx, prompt, system)
		if err != nil {
			lastErr = err
			if attempt == c.maxRetries-1 {
				break
			}
			var wait time.Duration
			if isRateLimited(err) {
				wait = rateLimitDelay(err, attempt)
				c.log.Warn("rate limited, backing off",
					zap.Duration("wait", wait), zap.Int("attempt", attempt))
			} else {
				wait = genericBackoff(attempt)
				c.log.Warn("model call failed, retrying",
					zap.Error(err), zap.Duration("wait", wait), zap.Int("attempt", attempt))
			}
			c.sleep(wait)
			continue
		}

		parsed, err := ParsePayload(text)
		if err != nil {
			lastErr = fmt.Errorf("malformed JSON response: %w", err)
			if attempt == c.maxRetries-1 {
				break
			}
			wait := genericBackoff(attempt)
			c.log.Warn("JSON parse failed, retrying",
				zap.Error(err), zap.Duration("wait", wait), zap.Int("attempt", attempt))
			c.sleep(wait)
			continue
		}
		return parsed, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Close releases the underlying API client, if any. The genai SDK's client
// holds no resources that need explicit release, so this is a no-op.
func (c *GeminiClient) Close() error {
	return nil
}

// genaiCaller issues the actual API call through the genai SDK.
type genaiCaller struct {
	client      *genai.Client
	model       string
	temperature float64
	seed        int32
}

func (g *genaiCaller) generate(ctx context.Context, prompt, system string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(g.temperature)),
		Seed:             genai.Ptr(g.seed),
		ResponseMIMEType: "application/json",
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}
	return text, nil
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ParsePayload parses model output into JSON, salvaging fenced code blocks
// and near-JSON before giving up. The model's framing is not trusted.
func ParsePayload(text string) (any, error) {
	text = strings.TrimSpace(text)

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}

	if m := fenceRe.FindStringSubmatch(text); m != nil {
		inner := strings.TrimSpace(m[1])
		if err := json.Unmarshal([]byte(inner), &parsed); err == nil {
			return parsed, nil
		}
		text = inner
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, fmt.Errorf("not valid JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, fmt.Errorf("not valid JSON after repair: %w", err)
	}
	return parsed, nil
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

var retryHintRe = regexp.MustCompile(`retry\D*(\d+)`)

const maxBackoff = 120 * time.Second

// rateLimitDelay derives the wait for quota failures: the provider's hinted
// retry delay plus slack when parseable, else steep doubling, both capped.
func rateLimitDelay(err error, attempt int) time.Duration {
	msg := strings.ToLower(err.Error())
	if m := retryHintRe.FindStringSubmatch(msg); m != nil {
		secs, convErr := strconv.Atoi(m[1])
		if convErr == nil {
			wait := time.Duration(secs+5) * time.Second
			if wait > maxBackoff {
				return maxBackoff
			}
			return wait
		}
	}
	wait := time.Duration(3*(1<<uint(attempt+2))) * time.Second
	if wait > maxBackoff {
		return maxBackoff
	}
	return wait
}

func genericBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}
