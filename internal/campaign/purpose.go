// Package campaign expands an approved value proposition into an ordered,
// time-indexed sequence of campaign pieces.
package campaign

import (
	"strings"

	"github.com/sells-group/uvp-engine/internal/model"
)

// purposeSignals maps campaign purposes to the goal-statement vocabulary
// that indicates them. Scoring is a deterministic keyword count; ties and
// empty goals fall back to awareness.
var purposeSignals = map[model.CampaignPurpose][]string{
	model.PurposeLaunch:       {"launch", "new", "introduce", "introducing", "opening", "debut", "announce"},
	model.PurposeAwareness:    {"awareness", "visibility", "brand", "known", "reach", "discover"},
	model.PurposeEngagement:   {"engage", "engagement", "community", "conversation", "follow", "interact"},
	model.PurposeConversion:   {"sell", "sales", "convert", "conversion", "buy", "book", "signup", "sign up", "revenue"},
	model.PurposeRetention:    {"retain", "retention", "loyal", "loyalty", "repeat", "existing customers", "keep"},
	model.PurposeReactivation: {"win back", "reactivate", "lapsed", "return", "come back", "dormant"},
}

// DetectPurpose classifies campaign intent into one of the six fixed
// purposes, which picks the template family.
func DetectPurpose(goal string) model.CampaignPurpose {
	lower := strings.ToLower(goal)
	best := model.PurposeAwareness
	bestScore := 0
	for _, p := range model.AllPurposes {
		score := 0
		for _, kw := range purposeSignals[p] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	return best
}
