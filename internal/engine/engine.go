// Package engine wires the full generation pipeline behind one facade:
// fetch, extract, synthesize, score, enhance, and expand into campaigns.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/uvp-engine/internal/campaign"
	"github.com/sells-group/uvp-engine/internal/content"
	"github.com/sells-group/uvp-engine/internal/enhance"
	"github.com/sells-group/uvp-engine/internal/extract"
	"github.com/sells-group/uvp-engine/internal/model"
	"github.com/sells-group/uvp-engine/internal/quality"
	"github.com/sells-group/uvp-engine/internal/store"
	"github.com/sells-group/uvp-engine/internal/synthesis"
)

// Engine runs the generation pipeline end to end. Each collaborator owns
// its own caching and resilience; the engine owns sequencing, persistence,
// and run bookkeeping.
type Engine struct {
	fetcher   *content.Fetcher
	orch      *extract.Orchestrator
	synth     *synthesis.Service
	scorer    *quality.Scorer
	pool      *enhance.Pool
	arcs      *campaign.Generator
	store     store.Store
}

// New assembles an Engine. The enhancement pool must already be started by
// the caller; the engine only feeds it.
func New(fetcher *content.Fetcher, orch *extract.Orchestrator, synth *synthesis.Service,
	scorer *quality.Scorer, pool *enhance.Pool, arcs *campaign.Generator, st store.Store) *Engine {
	return &Engine{
		fetcher: fetcher,
		orch:    orch,
		synth:   synth,
		scorer:  scorer,
		pool:    pool,
		arcs:    arcs,
		store:   st,
	}
}

// GenerateUVP runs the whole pipeline for one business. The returned run
// carries the synthesis result with its quality score attached; weak
// dimensions are already queued for background enhancement.
func (e *Engine) GenerateUVP(ctx context.Context, business model.Business, mode model.SynthesisMode) (*model.Run, error) {
	if business.ID == "" {
		business.ID = uuid.NewString()
	}

	run, err := e.store.CreateRun(ctx, business)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("run", run.ID), zap.String("subject", business.ID))

	result, qscore, extraction, err := e.generate(ctx, run, business, mode)
	if err != nil {
		e.setStatus(ctx, run, model.RunStatusFailed, err.Error())
		return run, err
	}

	if err := e.store.UpdateRunResult(ctx, run.ID, result); err != nil {
		log.Warn("engine: persist run result", zap.Error(err))
	}
	run.Status = model.RunStatusComplete
	run.Result = result
	run.UpdatedAt = time.Now()

	// Enhancement never blocks the response path.
	if tasks := e.scorer.Evaluate(result, qscore); len(tasks) > 0 {
		e.setStatus(ctx, run, model.RunStatusEnhancing, "")
		run.Status = model.RunStatusEnhancing
		e.pool.Enqueue(ctx, tasks, result, extraction)
		log.Info("engine: queued enhancement", zap.Int("tasks", len(tasks)))
	}

	return run, nil
}

func (e *Engine) generate(ctx context.Context, run *model.Run, business model.Business, mode model.SynthesisMode) (*model.SynthesisResult, model.QualityScore, *model.CombinedExtractionResult, error) {
	var zero model.QualityScore

	e.setStatus(ctx, run, model.RunStatusExtracting, "")
	site, err := e.fetcher.Fetch(ctx, business.URL)
	if err != nil {
		return nil, zero, nil, err
	}
	if business.Name != "" {
		site.BusinessName = business.Name
	}
	if business.IndustryHint != "" {
		site.IndustryHint = business.IndustryHint
	}

	extraction, err := e.orch.Run(ctx, model.ExtractionRequest{
		SubjectID: business.ID,
		Content:   *site,
	})
	if err != nil {
		return nil, zero, nil, err
	}
	if err := e.store.SaveExtraction(ctx, extraction); err != nil {
		zap.L().Warn("engine: persist extraction", zap.Error(err))
	}

	e.setStatus(ctx, run, model.RunStatusSynthesizing, "")
	result, err := e.synth.Synthesize(ctx, extraction, mode)
	if err != nil {
		return nil, zero, nil, err
	}

	e.setStatus(ctx, run, model.RunStatusScoring, "")
	qscore := e.scorer.Score(result, extraction)
	result.Quality = &qscore

	if err := e.store.SaveSynthesis(ctx, result); err != nil {
		zap.L().Warn("engine: persist synthesis", zap.Error(err))
	}
	return result, qscore, extraction, nil
}

func (e *Engine) setStatus(ctx context.Context, run *model.Run, status model.RunStatus, errMsg string) {
	run.Status = status
	run.UpdatedAt = time.Now()
	if err := e.store.UpdateRunStatus(ctx, run.ID, status, errMsg); err != nil {
		zap.L().Warn("engine: update run status",
			zap.String("run", run.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

// Subscribe streams enhancement updates for a subject. The returned cancel
// function must be called when the subscriber goes away.
func (e *Engine) Subscribe(subjectID string) (<-chan model.EnhancementUpdate, func()) {
	return e.pool.Subscribe(subjectID)
}

// CancelEnhancements drops a subject's pending enhancement work, marking
// the dropped tasks failed. Already-delivered results are unaffected.
func (e *Engine) CancelEnhancements(ctx context.Context, subjectID string) int {
	return e.pool.CancelSubject(ctx, subjectID)
}

// GetRun loads a run by ID.
func (e *Engine) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	return e.store.GetRun(ctx, runID)
}

// QuerySynthesis lists a subject's synthesis results, newest first.
func (e *Engine) QuerySynthesis(ctx context.Context, subjectID string) ([]model.SynthesisResult, error) {
	return e.store.QuerySynthesis(ctx, subjectID)
}

// CampaignRequest describes a campaign expansion against a stored result.
type CampaignRequest struct {
	SubjectID    string
	ResultID     string // empty = newest result for the subject
	Brief        string
	Purpose      model.CampaignPurpose
	Industry     string
	PieceCount   int
	DurationDays int
}

// GenerateCampaign expands an existing synthesis result into a campaign
// and persists it in generated state.
func (e *Engine) GenerateCampaign(ctx context.Context, req CampaignRequest) (*model.Campaign, error) {
	uvp, err := e.resolveResult(ctx, req)
	if err != nil {
		return nil, err
	}

	camp, err := e.arcs.Generate(ctx, campaign.Request{
		SubjectID:    uvp.SubjectID,
		UVP:          uvp,
		Brief:        req.Brief,
		Purpose:      req.Purpose,
		Industry:     req.Industry,
		PieceCount:   req.PieceCount,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		return nil, err
	}

	if err := e.store.SaveCampaign(ctx, camp); err != nil {
		return nil, err
	}
	return camp, nil
}

// ApproveCampaign moves a generated campaign to approved.
func (e *Engine) ApproveCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	camp, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if camp == nil {
		return nil, eris.Errorf("engine: campaign not found: %s", campaignID)
	}
	if err := campaign.Approve(camp); err != nil {
		return nil, err
	}
	if err := e.store.SaveCampaign(ctx, camp); err != nil {
		return nil, err
	}
	return camp, nil
}

// ListCampaigns lists a subject's campaigns, newest first.
func (e *Engine) ListCampaigns(ctx context.Context, subjectID string) ([]model.Campaign, error) {
	return e.store.ListCampaigns(ctx, subjectID)
}

func (e *Engine) resolveResult(ctx context.Context, req CampaignRequest) (*model.SynthesisResult, error) {
	if req.ResultID != "" {
		uvp, err := e.store.GetSynthesis(ctx, req.ResultID)
		if err != nil {
			return nil, err
		}
		if uvp == nil {
			return nil, eris.Errorf("engine: synthesis result not found: %s", req.ResultID)
		}
		return uvp, nil
	}

	if strings.TrimSpace(req.SubjectID) == "" {
		return nil, eris.New("engine: campaign request needs a subject or result id")
	}
	results, err := e.store.QuerySynthesis(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, eris.Errorf("engine: no synthesis results for subject %s", req.SubjectID)
	}
	return &results[0], nil
}
