package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/uvp-engine/internal/resilience"
	"github.com/sells-group/uvp-engine/pkg/anthropic"
)

// Task is a single completion request as seen by the router.
type Task struct {
	// Operation labels the call site for logging and cost attribution
	// ("extract.benefit", "synthesize", "enhance.clarity", ...).
	Operation   string
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature *float64
	// CacheSystem marks the system prompt for provider-side prompt caching,
	// used when many calls share one system prompt.
	CacheSystem bool
	// Floor, when set, stops the router's downward fallback at that tier.
	// Synthesis uses it to keep low-tier models out of the consolidation path.
	Floor Tier
}

// Response is a completed model call, including which tier actually served
// it so callers can record cost.
type Response struct {
	Text     string
	Model    string
	TierUsed Tier
	Usage    anthropic.TokenUsage
}

// Backend is one model endpoint behind a tier.
type Backend interface {
	// Complete runs the task and returns the raw text completion.
	Complete(ctx context.Context, task Task) (string, anthropic.TokenUsage, error)
	// Model returns the concrete model ID this backend calls.
	Model() string
}

// anthropicBackend implements Backend over the shared Anthropic client with
// a fixed model ID.
type anthropicBackend struct {
	client anthropic.Client
	model  string
}

// NewAnthropicBackend creates a Backend that calls the given model through
// the shared client.
func NewAnthropicBackend(client anthropic.Client, model string) Backend {
	return &anthropicBackend{client: client, model: model}
}

func (b *anthropicBackend) Model() string { return b.model }

func (b *anthropicBackend) Complete(ctx context.Context, task Task) (string, anthropic.TokenUsage, error) {
	req := anthropic.MessageRequest{
		Model:     b.model,
		MaxTokens: task.MaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: task.Prompt},
		},
		Temperature: task.Temperature,
	}
	if task.System != "" {
		if task.CacheSystem {
			req.System = anthropic.BuildCachedSystemBlocks(task.System)
		} else {
			req.System = []anthropic.SystemBlock{{Text: task.System}}
		}
	}

	resp, err := b.client.CreateMessage(ctx, req)
	if err != nil {
		return "", anthropic.TokenUsage{}, classifyAPIError(err)
	}

	text := resp.Text()
	if text == "" {
		return "", resp.Usage, eris.Errorf("llm: empty completion from %s (stop reason %q)", b.model, resp.StopReason)
	}
	return text, resp.Usage, nil
}

// classifyAPIError marks retryable API failures as transient so the
// resilience layer and the router's breaker treat them correctly.
func classifyAPIError(err error) error {
	if code := anthropic.APIStatusCode(err); code != 0 && resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	if resilience.IsTransient(err) {
		return resilience.NewTransientError(err, 0)
	}
	return err
}
