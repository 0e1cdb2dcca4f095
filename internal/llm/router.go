package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/uvp-engine/internal/cost"
	"github.com/sells-group/uvp-engine/internal/model"
	"github.com/sells-group/uvp-engine/internal/resilience"
	"github.com/sells-group/uvp-engine/pkg/anthropic"
)

// Router dispatches a task to the preferred tier's backend and, on
// unavailability, falls back one tier down at a time. It never retries a
// tier and never upgrades; retry policy belongs to the resilience layer.
type Router struct {
	backends map[Tier]Backend
	limiters map[Tier]*rate.Limiter
	breakers *resilience.TierBreakers
	tracker  *cost.Tracker
}

// NewRouter creates a Router over the given per-tier backends. breakers may
// be shared with the resilience layer so an open circuit forces immediate
// fallback instead of waiting out the call's timeout.
func NewRouter(backends map[Tier]Backend, breakers *resilience.TierBreakers, perSec float64, burst int) *Router {
	if perSec <= 0 {
		perSec = 5
	}
	if burst <= 0 {
		burst = 10
	}
	limiters := make(map[Tier]*rate.Limiter, len(backends))
	for t := range backends {
		limiters[t] = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	return &Router{
		backends: backends,
		limiters: limiters,
		breakers: breakers,
	}
}

// Breakers exposes the per-tier circuit breakers for diagnostics.
func (r *Router) Breakers() *resilience.TierBreakers { return r.breakers }

// WithTracker attributes every successful call's token usage to the tier
// that served it.
func (r *Router) WithTracker(t *cost.Tracker) *Router {
	r.tracker = t
	return r
}

// Spend returns the accumulated per-tier spend, if a tracker is attached.
func (r *Router) Spend() (map[string]cost.TierSpend, float64) {
	if r.tracker == nil {
		return nil, 0
	}
	return r.tracker.Summary()
}

// Route attempts the preferred tier, then walks down the tier ladder on
// unavailability (transient failure, timeout, open breaker). Permanent
// errors propagate immediately. Returns model.ErrModelUnavailable once the
// preferred tier and every tier below it have failed.
func (r *Router) Route(ctx context.Context, task Task, preferred Tier) (*Response, error) {
	if !preferred.Valid() {
		return nil, eris.Errorf("llm: unknown tier %q", preferred)
	}

	var lastErr error
	for tier := preferred; tier != ""; tier = tier.Below() {
		if task.Floor != "" && tier != preferred && belowFloor(tier, task.Floor) {
			break
		}
		backend, ok := r.backends[tier]
		if !ok {
			continue
		}

		resp, err := r.callTier(ctx, backend, tier, task)
		if err == nil {
			if tier != preferred {
				zap.L().Info("router: served by fallback tier",
					zap.String("operation", task.Operation),
					zap.String("preferred", string(preferred)),
					zap.String("used", string(tier)),
				)
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, eris.Wrap(lastErr, "llm: route cancelled")
		}

		// Open breaker and transient failures mean "tier unavailable":
		// move down the ladder. Anything else is the caller's bug.
		if errors.Is(err, resilience.ErrCircuitOpen) || resilience.Classify(err) == resilience.KindTransient {
			zap.L().Warn("router: tier unavailable, falling back",
				zap.String("operation", task.Operation),
				zap.String("tier", string(tier)),
				zap.Error(err),
			)
			continue
		}
		return nil, err
	}

	return nil, eris.Wrap(errors.Join(model.ErrModelUnavailable, lastErr), "llm: all tiers exhausted")
}

// belowFloor reports whether tier sits strictly below floor on the ladder.
func belowFloor(tier, floor Tier) bool {
	for t := floor.Below(); t != ""; t = t.Below() {
		if t == tier {
			return true
		}
	}
	return false
}

func (r *Router) callTier(ctx context.Context, backend Backend, tier Tier, task Task) (*Response, error) {
	if lim, ok := r.limiters[tier]; ok {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: rate limiter wait")
		}
	}

	type completion struct {
		text  string
		usage anthropic.TokenUsage
	}

	cb := r.breakers.Get(string(tier))
	out, err := resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (completion, error) {
		text, usage, callErr := backend.Complete(ctx, task)
		return completion{text: text, usage: usage}, callErr
	})
	if err != nil {
		return nil, err
	}

	out.usage.LogCost(backend.Model(), task.Operation)
	if r.tracker != nil {
		r.tracker.Record(string(tier), backend.Model(), out.usage)
	}

	return &Response{
		Text:     out.text,
		Model:    backend.Model(),
		TierUsed: tier,
		Usage:    out.usage,
	}, nil
}
