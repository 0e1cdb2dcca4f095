package llm

import (
	"context"

	"github.com/sells-group/uvp-engine/internal/resilience"
)

// Caller is the single entry point call sites use for model work: it
// coordinates the retry strategy, the per-tier circuit breakers, and the
// router's tier fallback into one call path.
type Caller struct {
	router   *Router
	retryCfg resilience.RetryConfig
}

// NewCaller wraps the router with the given retry policy.
func NewCaller(router *Router, retryCfg resilience.RetryConfig) *Caller {
	return &Caller{router: router, retryCfg: retryCfg}
}

// Router returns the underlying router.
func (c *Caller) Router() *Router { return c.router }

// CallWithResilience routes the task with retries on transient failure.
// When the router exhausts the ladder because every tier failed transiently,
// the whole ladder is re-walked after backoff. A ladder blocked by open
// breakers or a permanent error is not retried.
func (c *Caller) CallWithResilience(ctx context.Context, task Task, tier Tier) (*Response, error) {
	cfg := c.retryCfg
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(string(tier), task.Operation)
	}
	cfg.ShouldRetry = func(err error) bool {
		return resilience.Classify(err) == resilience.KindTransient
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Response, error) {
		return c.router.Route(ctx, task, tier)
	})
}
