// Package llm routes generation tasks across cost/capability tiers of model
// backends, with downward fallback on unavailability.
package llm

// Tier is a cost/capability class of language-model backend.
type Tier string

const (
	// TierLow is the fast/cheap tier (Haiku). Extraction work.
	TierLow Tier = "low"
	// TierMid is the balanced tier (Sonnet). Enhancement and synthesis fallback.
	TierMid Tier = "mid"
	// TierHigh is the high-capability tier (Opus). Synthesis.
	TierHigh Tier = "high"
)

// Below returns the next tier down, or "" when already at the bottom.
// The router only ever moves down — never silently upgrading.
func (t Tier) Below() Tier {
	switch t {
	case TierHigh:
		return TierMid
	case TierMid:
		return TierLow
	default:
		return ""
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierLow, TierMid, TierHigh:
		return true
	}
	return false
}
