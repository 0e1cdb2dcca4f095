package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/uvp-engine/internal/model"
)

func TestCache_PutGet(t *testing.T) {
	c := New[string]()
	c.Put("fp1", "subj1", "hello", time.Minute)

	got, ok := c.Get("fp1")
	require.True(t, ok)
	assert.Equal(t, "hello", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	now := time.Now()
	c := New[string]().WithNow(func() time.Time { return now })

	c.Put("fp1", "subj1", "hello", time.Minute)

	now = now.Add(59 * time.Second)
	_, ok := c.Get("fp1")
	assert.True(t, ok, "entry within TTL should hit")

	now = now.Add(2 * time.Second)
	_, ok = c.Get("fp1")
	assert.False(t, ok, "expired entry must be a miss")
}

func TestCache_Invalidate(t *testing.T) {
	c := New[int]()
	c.Put("fp1", "subj1", 42, time.Minute)
	c.Invalidate("fp1")

	_, ok := c.Get("fp1")
	assert.False(t, ok)
}

func TestCache_InvalidateSubject(t *testing.T) {
	c := New[int]()
	c.Put("fp1", "subj1", 1, time.Minute)
	c.Put("fp2", "subj1", 2, time.Minute)
	c.Put("fp3", "subj2", 3, time.Minute)

	c.InvalidateSubject("subj1")

	_, ok := c.Get("fp1")
	assert.False(t, ok)
	_, ok = c.Get("fp2")
	assert.False(t, ok)

	got, ok := c.Get("fp3")
	require.True(t, ok, "other subjects must survive invalidation")
	assert.Equal(t, 3, got)
}

func TestCache_Sweep(t *testing.T) {
	now := time.Now()
	c := New[string]().WithNow(func() time.Time { return now })

	c.Put("short", "s1", "a", time.Second)
	c.Put("long", "s1", "b", time.Hour)

	now = now.Add(2 * time.Second)
	removed := c.Sweep()
	assert.Equal(t, 1, removed)

	_, ok := c.Get("long")
	assert.True(t, ok)
}

func entryCount[T any](c *Cache[T]) int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

func TestCache_SweepEvery(t *testing.T) {
	c := New[string]()
	c.Put("stale", "s1", "a", -time.Second)
	c.Put("fresh", "s1", "b", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.SweepEvery(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return entryCount(c) == 1
	}, time.Second, 5*time.Millisecond, "the sweeper reclaims expired entries")

	_, ok := c.Get("fresh")
	assert.True(t, ok, "unexpired entries survive the sweep")
}

func TestNormalizeContent(t *testing.T) {
	a := NormalizeContent([]string{"  Hello   World  ", ""})
	b := NormalizeContent([]string{"hello world"})
	assert.Equal(t, a, b, "whitespace and case must not change the normalization")
}

func TestExtractionFingerprint_Stable(t *testing.T) {
	content := model.SiteContent{Pages: []string{"We help clinics  schedule patients."}}
	sameContent := model.SiteContent{Pages: []string{"we help clinics schedule patients."}}

	fp1 := ExtractionFingerprint(content, []model.ExtractorID{"benefit", "customer_segment"})
	fp2 := ExtractionFingerprint(sameContent, []model.ExtractorID{"customer_segment", "benefit"})
	assert.Equal(t, fp1, fp2, "extractor order and cosmetic text differences must not matter")

	fp3 := ExtractionFingerprint(content, []model.ExtractorID{"benefit"})
	assert.NotEqual(t, fp1, fp3, "a different extractor set is a different key")
}

func TestSynthesisFingerprint_ModeSensitive(t *testing.T) {
	standard := SynthesisFingerprint("abc", model.SynthesisModeStandard)
	bold := SynthesisFingerprint("abc", model.SynthesisModeBold)
	assert.NotEqual(t, standard, bold)
	assert.Equal(t, standard, SynthesisFingerprint("abc", model.SynthesisModeStandard))
}
