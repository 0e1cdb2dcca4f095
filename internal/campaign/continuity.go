package campaign

import (
	"github.com/sells-group/uvp-engine/internal/model"
)

// ValidateContinuity reports the positions (0-based index of the second
// piece) where two consecutive pieces share an emotional trigger.
func ValidateContinuity(pieces []model.CampaignPiece) []int {
	var violations []int
	for i := 1; i < len(pieces); i++ {
		if pieces[i].Trigger == pieces[i-1].Trigger {
			violations = append(violations, i)
		}
	}
	return violations
}

// EnsureContinuity repairs the trigger sequence so no two consecutive
// pieces repeat a trigger, preferring swaps with later pieces to keep
// the overall trigger mix intact. When no swap candidate exists it
// substitutes the highest-weighted trigger that breaks the repeat.
func EnsureContinuity(pieces []model.CampaignPiece, profile IndustryProfile) {
	for i := 1; i < len(pieces); i++ {
		if pieces[i].Trigger != pieces[i-1].Trigger {
			continue
		}
		if swapped := swapForward(pieces, i); swapped {
			continue
		}
		pieces[i].Trigger = bestAlternative(pieces, i, profile)
	}
}

// swapForward looks for a later piece whose trigger can be exchanged with
// pieces[i] without creating a new adjacent repeat at either position.
func swapForward(pieces []model.CampaignPiece, i int) bool {
	for j := i + 1; j < len(pieces); j++ {
		cand := pieces[j].Trigger
		if cand == pieces[i-1].Trigger {
			continue
		}
		if i+1 < len(pieces) && i+1 != j && cand == pieces[i+1].Trigger {
			continue
		}
		// Check the swap does not break continuity around j.
		moved := pieces[i].Trigger
		if j > 0 && j-1 != i && moved == pieces[j-1].Trigger {
			continue
		}
		if j+1 < len(pieces) && moved == pieces[j+1].Trigger {
			continue
		}
		pieces[i].Trigger, pieces[j].Trigger = pieces[j].Trigger, pieces[i].Trigger
		return true
	}
	return false
}

func bestAlternative(pieces []model.CampaignPiece, i int, profile IndustryProfile) model.EmotionalTrigger {
	var best model.EmotionalTrigger
	bestWeight := -1.0
	for _, t := range model.AllTriggers {
		if t == pieces[i-1].Trigger {
			continue
		}
		if i+1 < len(pieces) && t == pieces[i+1].Trigger {
			continue
		}
		if w := profile.Weight(t); w > bestWeight {
			best, bestWeight = t, w
		}
	}
	if bestWeight < 0 {
		// Fewer than three triggers exist in the enum; unreachable with
		// the current set, but fall back to anything non-adjacent.
		for _, t := range model.AllTriggers {
			if t != pieces[i-1].Trigger {
				return t
			}
		}
	}
	return best
}
