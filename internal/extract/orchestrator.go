package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/uvp-engine/internal/cache"
	"github.com/sells-group/uvp-engine/internal/model"
)

// phase1 extractors are mutually independent; phase2 extractors may use
// phase-1 output as additional context.
var (
	phase1 = []model.ExtractorID{
		model.ExtractorCustomerSegment,
		model.ExtractorProductService,
		model.ExtractorBenefit,
	}
	phase2 = []model.ExtractorID{
		model.ExtractorTransformation,
		model.ExtractorSolution,
	}
)

// SubjectInvalidator is anything holding cached state per subject that must
// be dropped when a re-extraction occurs (the synthesis cache, notably).
type SubjectInvalidator interface {
	InvalidateSubject(subjectID string)
}

// OrchestratorConfig holds the orchestrator's tunables.
type OrchestratorConfig struct {
	// PhaseTimeout is the shared budget for one phase; each extractor in
	// the phase gets an equal slice of it.
	PhaseTimeout time.Duration
	CacheTTL     time.Duration
}

// Orchestrator runs the extractors in two ordered phases and aggregates
// their results. It always returns a CombinedExtractionResult even when
// some extractors fail — unless every phase-1 extractor fails, which is
// fatal because there is nothing to synthesize from.
type Orchestrator struct {
	extractors   map[model.ExtractorID]Extractor
	cache        *cache.Cache[*model.CombinedExtractionResult]
	invalidators []SubjectInvalidator
	cfg          OrchestratorConfig
}

// NewOrchestrator creates an Orchestrator over the given extractors. The
// cache is owned by the caller (created at startup, torn down at shutdown).
func NewOrchestrator(extractors []Extractor, c *cache.Cache[*model.CombinedExtractionResult], cfg OrchestratorConfig, invalidators ...SubjectInvalidator) *Orchestrator {
	if cfg.PhaseTimeout <= 0 {
		cfg.PhaseTimeout = 45 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	m := make(map[model.ExtractorID]Extractor, len(extractors))
	for _, e := range extractors {
		m[e.ID()] = e
	}
	return &Orchestrator{
		extractors:   m,
		cache:        c,
		invalidators: invalidators,
		cfg:          cfg,
	}
}

// Run executes the extraction request and returns the combined result.
func (o *Orchestrator) Run(ctx context.Context, req model.ExtractionRequest) (*model.CombinedExtractionResult, error) {
	if req.Content.Empty() {
		return nil, eris.Wrap(model.ErrContentUnavailable, "extract: no content to analyze")
	}

	ids := req.Extractors
	if len(ids) == 0 {
		ids = model.AllExtractors
	}

	fp := cache.ExtractionFingerprint(req.Content, ids)
	if cached, ok := o.cache.Get(fp); ok {
		zap.L().Debug("extract: cache hit", zap.String("subject", req.SubjectID), zap.String("fingerprint", fp[:12]))
		// Shallow copy so the flag never leaks into the cached object.
		hit := *cached
		hit.FromCache = true
		return &hit, nil
	}

	// Re-extraction for this subject: anything derived from the old
	// extraction is stale now.
	o.cache.InvalidateSubject(req.SubjectID)
	for _, inv := range o.invalidators {
		inv.InvalidateSubject(req.SubjectID)
	}

	combined := &model.CombinedExtractionResult{
		SubjectID:    req.SubjectID,
		BusinessName: req.Content.BusinessName,
		Fingerprint:  fp,
		Results:      make(map[model.ExtractorID]model.ExtractionResult, len(ids)),
		CreatedAt:    time.Now(),
	}

	ec := Context{
		Business: model.Business{ID: req.SubjectID, Name: req.Content.BusinessName, IndustryHint: req.Content.IndustryHint},
	}

	// Phase 1: independent extractors, in parallel.
	p1 := o.runPhase(ctx, intersect(phase1, ids), req.Content, ec)
	failed1 := 0
	for id, r := range p1 {
		combined.Results[id] = r
		if r.Failed() {
			failed1++
		}
	}
	if len(p1) > 0 && failed1 == len(p1) {
		return nil, eris.Wrap(model.ErrExtractionFailed, "extract: all phase-1 extractors failed")
	}

	// Phase 2: may read phase-1 output.
	ec.Phase1 = p1
	for id, r := range o.runPhase(ctx, intersect(phase2, ids), req.Content, ec) {
		combined.Results[id] = r
	}

	// Deterministic ordering for prompt assembly and aggregation.
	for _, id := range model.AllExtractors {
		if _, ok := combined.Results[id]; ok {
			combined.Order = append(combined.Order, id)
		}
	}

	var sum float64
	for _, id := range combined.Order {
		r := combined.Results[id]
		sum += r.Confidence
		if r.Failed() {
			combined.Degraded = true
		}
	}
	if len(combined.Order) > 0 {
		combined.Confidence = sum / float64(len(combined.Order))
	}

	o.cache.Put(fp, req.SubjectID, combined, o.cfg.CacheTTL)

	zap.L().Info("extract: combined result",
		zap.String("subject", req.SubjectID),
		zap.Int("extractors", len(combined.Order)),
		zap.Float64("confidence", combined.Confidence),
		zap.Bool("degraded", combined.Degraded),
	)
	return combined, nil
}

// runPhase runs the given extractors concurrently, each with an equal slice
// of the phase budget. A timeout or failure becomes a zero-confidence result
// with the error recorded, never a blocked phase.
func (o *Orchestrator) runPhase(ctx context.Context, ids []model.ExtractorID, content model.SiteContent, ec Context) map[model.ExtractorID]model.ExtractionResult {
	out := make(map[model.ExtractorID]model.ExtractionResult, len(ids))
	if len(ids) == 0 {
		return out
	}

	perExtractor := o.cfg.PhaseTimeout / time.Duration(len(ids))
	results := make([]model.ExtractionResult, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	for i, id := range ids {
		ext, ok := o.extractors[id]
		if !ok {
			results[i] = failedResult(id, ec.Business.ID, eris.Errorf("extract: no extractor registered for %s", id))
			continue
		}
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gCtx, perExtractor)
			defer cancel()

			r, err := ext.Extract(callCtx, content, ec)
			if err != nil {
				zap.L().Warn("extract: extractor failed",
					zap.String("extractor", string(id)),
					zap.Error(err),
				)
				results[i] = failedResult(id, ec.Business.ID, err)
				return nil // non-fatal; the phase completes regardless
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.ExtractorID != "" {
			out[r.ExtractorID] = r
		}
	}
	return out
}

func failedResult(id model.ExtractorID, subjectID string, err error) model.ExtractionResult {
	return model.ExtractionResult{
		ExtractorID: id,
		SubjectID:   subjectID,
		Confidence:  0,
		Err:         err.Error(),
		Timestamp:   time.Now(),
	}
}

func intersect(phase, requested []model.ExtractorID) []model.ExtractorID {
	want := make(map[model.ExtractorID]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}
	var out []model.ExtractorID
	for _, id := range phase {
		if want[id] {
			out = append(out, id)
		}
	}
	return out
}
