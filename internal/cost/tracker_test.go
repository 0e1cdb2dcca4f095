package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/uvp-engine/pkg/anthropic"
)

func TestCalculator_Claude(t *testing.T) {
	calc := NewCalculator(Rates{Anthropic: map[string]ModelRate{
		"test-model": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
	}})

	// 1M input + 1M output at these rates.
	assert.InDelta(t, 18.00, calc.Claude("test-model", 1_000_000, 1_000_000, 0, 0), 1e-9)

	// Cache writes cost input * 1.25; cache reads input * 0.1.
	assert.InDelta(t, 3.75, calc.Claude("test-model", 0, 0, 1_000_000, 0), 1e-9)
	assert.InDelta(t, 0.30, calc.Claude("test-model", 0, 0, 0, 1_000_000), 1e-9)

	assert.Zero(t, calc.Claude("unknown-model", 1_000_000, 1_000_000, 0, 0))
}

func TestDefaultRates_CoverTierModels(t *testing.T) {
	rates := DefaultRates()
	for _, m := range []string{
		"claude-haiku-4-5-20251001",
		"claude-sonnet-4-5-20250929",
		"claude-opus-4-6",
	} {
		_, ok := rates.Anthropic[m]
		assert.True(t, ok, m)
	}
}

func TestTracker_Accumulates(t *testing.T) {
	tracker := NewTracker(nil)

	tracker.Record("high", "claude-opus-4-6", anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 500})
	tracker.Record("high", "claude-opus-4-6", anthropic.TokenUsage{InputTokens: 2000, OutputTokens: 1000})
	tracker.Record("low", "claude-haiku-4-5-20251001", anthropic.TokenUsage{InputTokens: 10000, OutputTokens: 4000})

	byTier, total := tracker.Summary()
	require.Len(t, byTier, 2)

	high := byTier["high"]
	assert.Equal(t, int64(2), high.Calls)
	assert.Equal(t, int64(3000), high.InputTokens)
	assert.Equal(t, int64(1500), high.OutputTokens)
	// 3000 in * $15/M + 1500 out * $75/M.
	assert.InDelta(t, 0.045+0.1125, high.CostUSD, 1e-9)

	low := byTier["low"]
	assert.Equal(t, int64(1), low.Calls)
	assert.InDelta(t, high.CostUSD+low.CostUSD, total, 1e-9)
}

func TestTracker_SummaryIsACopy(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Record("mid", "claude-sonnet-4-5-20250929", anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50})

	byTier, _ := tracker.Summary()
	spend := byTier["mid"]
	spend.Calls = 999

	fresh, _ := tracker.Summary()
	assert.Equal(t, int64(1), fresh["mid"].Calls)
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	tracker := NewTracker(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Record("mid", "claude-sonnet-4-5-20250929", anthropic.TokenUsage{InputTokens: 10, OutputTokens: 5})
		}()
	}
	wg.Wait()

	byTier, _ := tracker.Summary()
	assert.Equal(t, int64(50), byTier["mid"].Calls)
	assert.Equal(t, int64(500), byTier["mid"].InputTokens)
}
