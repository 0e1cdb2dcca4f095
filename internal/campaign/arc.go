package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
)

// GeneratorConfig holds the arc generator tunables.
type GeneratorConfig struct {
	PieceTimeout time.Duration
	MaxTokens    int64
	Temperature  float64
}

// Generator expands an approved value proposition into an ordered,
// time-indexed sequence of campaign pieces. Structurally this mirrors the
// synthesis service: template bounds and trigger assignment are decided
// deterministically up front, then one mid-tier model call writes each
// piece.
type Generator struct {
	caller     *llm.Caller
	industries *IndustrySet
	cfg        GeneratorConfig
}

// NewGenerator creates an arc Generator. industries may hold zero profiles,
// in which case customization is a no-op.
func NewGenerator(caller *llm.Caller, industries *IndustrySet, cfg GeneratorConfig) *Generator {
	if cfg.PieceTimeout <= 0 {
		cfg.PieceTimeout = 20 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if industries == nil {
		industries = &IndustrySet{profiles: map[string]IndustryProfile{}}
	}
	return &Generator{caller: caller, industries: industries, cfg: cfg}
}

// Request describes one campaign expansion.
type Request struct {
	SubjectID string
	UVP       *model.SynthesisResult
	// Brief is the caller's free-text description of campaign intent; the
	// purpose detector classifies it when Purpose is unset.
	Brief    string
	Purpose  model.CampaignPurpose
	Industry string
	// PieceCount and DurationDays are optional; zero means the template
	// midpoint. Out-of-bounds values are clamped to the template.
	PieceCount   int
	DurationDays int
}

const arcSystemText = `You write marketing campaign copy. Each piece you write leads with one
assigned emotional angle and stays anchored to the business's value
proposition. You respond with JSON only: {"content": "..."}.`

const arcPromptTmpl = `Write campaign piece %d of %d for this business.

Value proposition:
%s

Campaign purpose: %s
Narrative beat for this piece: %s
Emotional angle to lead with: %s
%s
Write 2-4 sentences of ready-to-publish copy for that beat. Lead with the
assigned emotional angle; do not repeat the angle of the previous piece.
Respond with JSON only: {"content": "..."}`

// Generate builds a campaign in draft state, fills every piece, and moves
// it to generated. Piece-level model failures fall back to template text so
// a partially-degraded campaign still comes back whole.
func (g *Generator) Generate(ctx context.Context, req Request) (*model.Campaign, error) {
	if req.UVP == nil || strings.TrimSpace(req.UVP.PrimaryStatement) == "" {
		return nil, eris.New("campaign: request has no value proposition")
	}

	purpose := req.Purpose
	if purpose == "" {
		purpose = DetectPurpose(req.Brief)
	}
	tmpl := TemplateFor(purpose)

	pieceCount := req.PieceCount
	if !tmpl.PieceCountValid(pieceCount) {
		pieceCount = clampBounds(pieceCount, tmpl.MinPieces, tmpl.MaxPieces)
	}
	duration := clampBounds(req.DurationDays, tmpl.MinDays, tmpl.MaxDays)

	profile, _ := g.industries.Profile(req.Industry)

	now := time.Now()
	camp := &model.Campaign{
		ID:           uuid.NewString(),
		SubjectID:    req.SubjectID,
		SourceUVP:    req.UVP.ID,
		Purpose:      purpose,
		Template:     tmpl.Name,
		Industry:     req.Industry,
		Status:       model.CampaignStatusDraft,
		DurationDays: duration,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	camp.Pieces = makePieces(pieceCount, duration, profile)
	EnsureContinuity(camp.Pieces, profile)

	for i := range camp.Pieces {
		g.fillPiece(ctx, camp, tmpl, profile, req.UVP, i)
	}

	camp.Status = model.CampaignStatusGenerated
	camp.UpdatedAt = time.Now()
	zap.L().Info("campaign: generated",
		zap.String("campaign", camp.ID),
		zap.String("purpose", string(purpose)),
		zap.String("template", tmpl.Name),
		zap.Int("pieces", len(camp.Pieces)),
	)
	return camp, nil
}

// Approve moves a generated campaign to approved. Draft campaigns cannot
// skip straight to approved.
func Approve(c *model.Campaign) error {
	if c.Status != model.CampaignStatusGenerated {
		return eris.Errorf("campaign: cannot approve campaign in state %q", c.Status)
	}
	c.Status = model.CampaignStatusApproved
	c.UpdatedAt = time.Now()
	return nil
}

// makePieces lays out positions, day offsets, and the initial trigger
// sequence. Triggers rotate through the industry's weight ordering, which
// is adjacent-repeat-free by construction for any set of three or more.
func makePieces(count, duration int, profile IndustryProfile) []model.CampaignPiece {
	order := triggersByWeight(profile)
	pieces := make([]model.CampaignPiece, count)
	for i := range pieces {
		pieces[i] = model.CampaignPiece{
			ID:        uuid.NewString(),
			Position:  i,
			Trigger:   order[i%len(order)],
			DayOffset: dayOffset(i, count, duration),
		}
	}
	return pieces
}

// triggersByWeight sorts the trigger set by industry weight, heaviest
// first, with the enum order as a stable tie-break.
func triggersByWeight(profile IndustryProfile) []model.EmotionalTrigger {
	order := make([]model.EmotionalTrigger, len(model.AllTriggers))
	copy(order, model.AllTriggers)
	rank := make(map[model.EmotionalTrigger]int, len(order))
	for i, t := range order {
		rank[t] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		wi, wj := profile.Weight(order[i]), profile.Weight(order[j])
		if wi != wj {
			return wi > wj
		}
		return rank[order[i]] < rank[order[j]]
	})
	return order
}

// dayOffset spreads pieces evenly across the campaign duration, first
// piece on day 0 and last piece on the final day.
func dayOffset(i, count, duration int) int {
	if count <= 1 {
		return 0
	}
	return i * (duration - 1) / (count - 1)
}

func (g *Generator) fillPiece(ctx context.Context, camp *model.Campaign, tmpl Template, profile IndustryProfile, uvp *model.SynthesisResult, i int) {
	piece := &camp.Pieces[i]
	beat := tmpl.beatFor(i)

	var industryNote string
	if profile.Name != "" {
		industryNote = fmt.Sprintf("Industry: %s\n", profile.Name)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.PieceTimeout)
	defer cancel()

	temp := g.cfg.Temperature
	resp, err := g.caller.CallWithResilience(callCtx, llm.Task{
		Operation: "campaign.piece",
		System:    arcSystemText,
		Prompt: fmt.Sprintf(arcPromptTmpl,
			i+1, len(camp.Pieces), uvp.Text(), camp.Purpose, beat, piece.Trigger, industryNote),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: &temp,
		CacheSystem: true,
	}, llm.TierMid)

	content := ""
	if err == nil {
		var wire struct {
			Content string `json:"content"`
		}
		if jsonErr := json.Unmarshal([]byte(extractJSON(resp.Text)), &wire); jsonErr == nil {
			content = strings.TrimSpace(wire.Content)
		}
	}
	if content == "" {
		zap.L().Warn("campaign: piece generation degraded to template text",
			zap.String("campaign", camp.ID),
			zap.Int("position", i),
			zap.Error(err),
		)
		content = fallbackPiece(uvp, beat, piece.Trigger)
	}

	content = profile.ApplyVocabulary(content)
	content, removed := profile.FilterBannedTerms(content)
	if len(removed) > 0 {
		zap.L().Info("campaign: filtered banned terms",
			zap.String("campaign", camp.ID),
			zap.Int("position", i),
			zap.Strings("terms", removed),
		)
	}
	piece.Content = content
}

// fallbackPiece produces deterministic copy when the model path fails.
func fallbackPiece(uvp *model.SynthesisResult, beat string, trigger model.EmotionalTrigger) string {
	lead := map[model.EmotionalTrigger]string{
		model.TriggerTrust:      "You can count on this:",
		model.TriggerCuriosity:  "Ever wondered what changes when",
		model.TriggerUrgency:    "Now is the moment:",
		model.TriggerAspiration: "Picture where you could be:",
		model.TriggerBelonging:  "Join the people who already know:",
		model.TriggerRelief:     "Stop worrying about the hard part:",
	}[trigger]
	return fmt.Sprintf("%s %s (%s)", lead, uvp.PrimaryStatement, beat)
}

func clampBounds(v, lo, hi int) int {
	if v == 0 {
		return (lo + hi) / 2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// extractJSON strips markdown fences and surrounding prose from a model
// response, returning the outermost JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
