package cost

import (
	"sync"

	"github.com/sells-group/uvp-engine/pkg/anthropic"
)

// TierSpend is the accumulated usage for one tier.
type TierSpend struct {
	Calls        int64   `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Tracker accumulates spend per tier across the process lifetime. Safe for
// concurrent use by the router's call path.
type Tracker struct {
	calc *Calculator

	mu       sync.Mutex
	byTier   map[string]*TierSpend
	totalUSD float64
}

// NewTracker creates a Tracker priced by the given calculator.
func NewTracker(calc *Calculator) *Tracker {
	if calc == nil {
		calc = NewCalculator(DefaultRates())
	}
	return &Tracker{calc: calc, byTier: make(map[string]*TierSpend)}
}

// Record attributes one model call's usage to a tier.
func (t *Tracker) Record(tier, model string, u anthropic.TokenUsage) {
	cost := t.calc.Claude(model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens)

	t.mu.Lock()
	defer t.mu.Unlock()
	spend, ok := t.byTier[tier]
	if !ok {
		spend = &TierSpend{}
		t.byTier[tier] = spend
	}
	spend.Calls++
	spend.InputTokens += u.InputTokens
	spend.OutputTokens += u.OutputTokens
	spend.CostUSD += cost
	t.totalUSD += cost
}

// Summary returns a copy of the per-tier spend and the total.
func (t *Tracker) Summary() (map[string]TierSpend, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]TierSpend, len(t.byTier))
	for tier, spend := range t.byTier {
		out[tier] = *spend
	}
	return out, t.totalUSD
}
