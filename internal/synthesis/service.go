package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/uvp-engine/internal/cache"
	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
)

// Config holds the synthesis service tunables.
type Config struct {
	// Timeout is the end-to-end latency budget for the high-tier path.
	Timeout            time.Duration
	CacheTTL           time.Duration
	MaxTokens          int64
	Temperature        float64
	TentativeThreshold float64
}

// Service builds one consolidated prompt from all extractor outputs and
// calls the high-capability tier. At most one synthesis is in flight per
// fingerprint: near-simultaneous duplicate requests share one model call.
type Service struct {
	caller *llm.Caller
	cache  *cache.Cache[*model.SynthesisResult]
	group  singleflight.Group
	cfg    Config
}

// NewService creates a synthesis Service. The cache is owned by the caller.
func NewService(caller *llm.Caller, c *cache.Cache[*model.SynthesisResult], cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 48 * time.Hour
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.TentativeThreshold <= 0 {
		cfg.TentativeThreshold = 0.5
	}
	return &Service{caller: caller, cache: c, cfg: cfg}
}

// InvalidateSubject drops cached synthesis results for a subject. Wired to
// the extraction orchestrator so re-extraction invalidates derived output.
func (s *Service) InvalidateSubject(subjectID string) {
	s.cache.InvalidateSubject(subjectID)
}

// wireUVP is the JSON shape the model returns.
type wireUVP struct {
	PrimaryStatement    string   `json:"primary_statement"`
	SecondaryStatements []string `json:"secondary_statements"`
}

// Synthesize produces a SynthesisResult for the combined extraction. Once
// extraction has succeeded this never fails outright on model
// unavailability: it degrades to deterministic template filling instead.
func (s *Service) Synthesize(ctx context.Context, combined *model.CombinedExtractionResult, mode model.SynthesisMode) (*model.SynthesisResult, error) {
	if mode == "" {
		mode = model.SynthesisModeStandard
	}
	fp := cache.SynthesisFingerprint(combined.Fingerprint, mode)

	if cached, ok := s.cache.Get(fp); ok {
		zap.L().Debug("synthesis: cache hit", zap.String("subject", combined.SubjectID))
		return cached, nil
	}

	// singleflight keys on the synthesis fingerprint so two concurrent
	// requests for identical inputs pay for exactly one model call.
	v, err, _ := s.group.Do(fp, func() (any, error) {
		if cached, ok := s.cache.Get(fp); ok {
			return cached, nil
		}
		result, synthErr := s.synthesizeOnce(ctx, combined, mode, fp)
		if synthErr != nil {
			return nil, synthErr
		}
		// Degraded results are never cached: the next request for this
		// fingerprint gets a real model attempt once a tier recovers.
		if !result.Degraded {
			s.cache.Put(fp, combined.SubjectID, result, s.cfg.CacheTTL)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.SynthesisResult), nil
}

func (s *Service) synthesizeOnce(ctx context.Context, combined *model.CombinedExtractionResult, mode model.SynthesisMode, fp string) (*model.SynthesisResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	temp := s.cfg.Temperature
	resp, err := s.caller.CallWithResilience(callCtx, llm.Task{
		Operation:   "synthesize." + string(mode),
		System:      synthesisSystemText,
		Prompt:      BuildPrompt(combined, mode, s.cfg.TentativeThreshold),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: &temp,
		Floor:       llm.TierMid,
	}, llm.TierHigh)

	result := &model.SynthesisResult{
		ID:                uuid.NewString(),
		SubjectID:         combined.SubjectID,
		SourceFingerprint: fp,
		Mode:              mode,
		GeneratedAt:       time.Now(),
	}

	if err != nil {
		// A cancelled caller gets its context error back; degradation is
		// reserved for model unavailability, not for requests nobody is
		// waiting on anymore.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, eris.Wrap(ctxErr, "synthesis: cancelled")
		}
		if !errors.Is(err, model.ErrModelUnavailable) && callCtx.Err() == nil {
			return nil, eris.Wrap(err, "synthesis: model call")
		}
		// High and mid tiers exhausted, or the latency budget elapsed:
		// degrade to template filling rather than failing. The caller must
		// always have something displayable.
		zap.L().Warn("synthesis: degraded to template fallback",
			zap.String("subject", combined.SubjectID),
			zap.Error(err),
		)
		primary, secondary := templateFallback(combined, combined.BusinessName)
		result.PrimaryStatement = primary
		result.SecondaryStatements = secondary
		result.TierUsed = "template"
		result.Degraded = true
		return result, nil
	}

	var wire wireUVP
	if jsonErr := json.Unmarshal([]byte(extractJSON(resp.Text)), &wire); jsonErr != nil || strings.TrimSpace(wire.PrimaryStatement) == "" {
		zap.L().Warn("synthesis: unparseable completion, degrading",
			zap.String("subject", combined.SubjectID),
			zap.Error(jsonErr),
		)
		primary, secondary := templateFallback(combined, combined.BusinessName)
		result.PrimaryStatement = primary
		result.SecondaryStatements = secondary
		result.TierUsed = "template"
		result.Degraded = true
		return result, nil
	}

	result.PrimaryStatement = strings.TrimSpace(wire.PrimaryStatement)
	for _, sec := range wire.SecondaryStatements {
		if sec = strings.TrimSpace(sec); sec != "" {
			result.SecondaryStatements = append(result.SecondaryStatements, sec)
		}
	}
	result.TierUsed = string(resp.TierUsed)
	return result, nil
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
