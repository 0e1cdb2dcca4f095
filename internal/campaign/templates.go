package campaign

import "github.com/sells-group/uvp-engine/internal/model"

// Template declares the shape of one campaign arc: how many pieces, over
// how many days, and the narrative beat each position plays.
type Template struct {
	Name      string
	Purpose   model.CampaignPurpose
	MinPieces int
	MaxPieces int
	// DurationDays bounds the whole arc; pieces are spread evenly.
	MinDays int
	MaxDays int
	// Beats names the narrative role of each position. When the arc has
	// more pieces than beats, the last beat repeats.
	Beats []string
}

// PieceCountValid reports whether n is inside the template's declared bounds.
func (t Template) PieceCountValid(n int) bool {
	return n >= t.MinPieces && n <= t.MaxPieces
}

// templates is the built-in template family per purpose.
var templates = map[model.CampaignPurpose]Template{
	model.PurposeLaunch: {
		Name: "launch_arc", Purpose: model.PurposeLaunch,
		MinPieces: 5, MaxPieces: 7, MinDays: 7, MaxDays: 14,
		Beats: []string{"tease", "reveal", "demonstrate", "social_proof", "call_to_action"},
	},
	model.PurposeAwareness: {
		Name: "awareness_arc", Purpose: model.PurposeAwareness,
		MinPieces: 4, MaxPieces: 6, MinDays: 7, MaxDays: 21,
		Beats: []string{"hook", "story", "value", "invitation"},
	},
	model.PurposeEngagement: {
		Name: "engagement_arc", Purpose: model.PurposeEngagement,
		MinPieces: 4, MaxPieces: 8, MinDays: 7, MaxDays: 28,
		Beats: []string{"question", "behind_the_scenes", "tip", "conversation"},
	},
	model.PurposeConversion: {
		Name: "conversion_arc", Purpose: model.PurposeConversion,
		MinPieces: 3, MaxPieces: 5, MinDays: 5, MaxDays: 10,
		Beats: []string{"problem", "solution", "offer"},
	},
	model.PurposeRetention: {
		Name: "retention_arc", Purpose: model.PurposeRetention,
		MinPieces: 3, MaxPieces: 6, MinDays: 14, MaxDays: 30,
		Beats: []string{"appreciation", "insider_value", "loyalty_reward"},
	},
	model.PurposeReactivation: {
		Name: "reactivation_arc", Purpose: model.PurposeReactivation,
		MinPieces: 3, MaxPieces: 5, MinDays: 7, MaxDays: 14,
		Beats: []string{"we_miss_you", "what_changed", "welcome_back_offer"},
	},
}

// TemplateFor returns the template family for a purpose.
func TemplateFor(purpose model.CampaignPurpose) Template {
	if t, ok := templates[purpose]; ok {
		return t
	}
	return templates[model.PurposeAwareness]
}

// beatFor returns the narrative beat for a position, repeating the final
// beat when the arc outgrows the beat list.
func (t Template) beatFor(pos int) string {
	if len(t.Beats) == 0 {
		return "value"
	}
	if pos >= len(t.Beats) {
		return t.Beats[len(t.Beats)-1]
	}
	return t.Beats[pos]
}
