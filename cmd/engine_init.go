package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/uvp-engine/internal/cache"
	"github.com/sells-group/uvp-engine/internal/campaign"
	"github.com/sells-group/uvp-engine/internal/content"
	"github.com/sells-group/uvp-engine/internal/cost"
	"github.com/sells-group/uvp-engine/internal/engine"
	"github.com/sells-group/uvp-engine/internal/enhance"
	"github.com/sells-group/uvp-engine/internal/extract"
	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
	"github.com/sells-group/uvp-engine/internal/quality"
	"github.com/sells-group/uvp-engine/internal/resilience"
	"github.com/sells-group/uvp-engine/internal/store"
	"github.com/sells-group/uvp-engine/internal/synthesis"
	anthropicpkg "github.com/sells-group/uvp-engine/pkg/anthropic"
)

// engineEnv holds the initialized store, router, pool, and engine needed
// by the generate/campaign/serve commands.
type engineEnv struct {
	Store  store.Store
	Engine *engine.Engine
	Router *llm.Router
	Pool   *enhance.Pool
}

// Close stops background workers and releases resources.
func (e *engineEnv) Close() {
	if e.Pool != nil {
		e.Pool.Stop()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine sets up the store, the tiered model router, all pipeline
// services, and the background enhancement pool. Callers should defer
// env.Close().
func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key)

	breakers := resilience.NewTierBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Resilience.BreakerFailureThreshold,
		ResetTimeout:     time.Duration(cfg.Resilience.BreakerResetTimeoutSecs) * time.Second,
	})

	backends := map[llm.Tier]llm.Backend{
		llm.TierLow:  llm.NewAnthropicBackend(client, cfg.Anthropic.HaikuModel),
		llm.TierMid:  llm.NewAnthropicBackend(client, cfg.Anthropic.SonnetModel),
		llm.TierHigh: llm.NewAnthropicBackend(client, cfg.Anthropic.OpusModel),
	}
	tracker := cost.NewTracker(cost.NewCalculator(cost.DefaultRates()))
	router := llm.NewRouter(backends, breakers, cfg.Anthropic.RatePerSec, cfg.Anthropic.RateBurst).
		WithTracker(tracker)

	retryCfg := resilience.FromConfig(
		cfg.Resilience.RetryMaxAttempts,
		cfg.Resilience.RetryInitialBackoffMs,
		cfg.Resilience.RetryMaxBackoffMs,
		cfg.Resilience.RetryMultiplier,
		cfg.Resilience.RetryJitterFraction,
	)
	caller := llm.NewCaller(router, retryCfg)

	fetcher := content.NewFetcher(content.Config{
		Timeout:   time.Duration(cfg.Content.TimeoutSecs) * time.Second,
		MaxPages:  cfg.Content.MaxPages,
		UserAgent: cfg.Content.UserAgent,
	})

	maxContent := cfg.Extraction.MaxContentChars
	extractors := []extract.Extractor{
		extract.NewCustomerSegmentExtractor(caller, maxContent),
		extract.NewProductServiceExtractor(caller, maxContent),
		extract.NewBenefitExtractor(caller, maxContent),
		extract.NewTransformationExtractor(caller, maxContent),
		extract.NewSolutionExtractor(caller, maxContent),
	}

	synthCache := cache.New[*model.SynthesisResult]()
	synthCache.SweepEvery(ctx, time.Hour)
	synth := synthesis.NewService(caller, synthCache, synthesis.Config{
		Timeout:            time.Duration(cfg.Synthesis.TimeoutSecs) * time.Second,
		CacheTTL:           time.Duration(cfg.Synthesis.CacheTTLHours) * time.Hour,
		MaxTokens:          int64(cfg.Synthesis.MaxTokens),
		Temperature:        cfg.Synthesis.Temperature,
		TentativeThreshold: cfg.Synthesis.TentativeThreshold,
	})

	extractCache := cache.New[*model.CombinedExtractionResult]()
	extractCache.SweepEvery(ctx, time.Hour)
	orch := extract.NewOrchestrator(extractors, extractCache, extract.OrchestratorConfig{
		PhaseTimeout: time.Duration(cfg.Extraction.PhaseTimeoutSecs) * time.Second,
		CacheTTL:     time.Duration(cfg.Extraction.CacheTTLHours) * time.Hour,
	}, synth)

	scorer := quality.NewScorer(cfg.Quality.GreenThreshold, cfg.Quality.YellowThreshold)

	pool := enhance.NewPool(caller, scorer, st, enhance.Config{
		Workers:        cfg.Enhancement.Workers,
		MaxAttempts:    cfg.Enhancement.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Enhancement.InitialBackoffMs) * time.Millisecond,
		TaskTimeout:    time.Duration(cfg.Enhancement.TimeoutSecs) * time.Second,
		QueueDepth:     cfg.Enhancement.QueueDepth,
	})
	pool.Start(ctx)

	industries, err := campaign.LoadIndustries(cfg.Campaign.IndustryDataPath)
	if err != nil {
		pool.Stop()
		_ = st.Close()
		return nil, err
	}
	arcs := campaign.NewGenerator(caller, industries, campaign.GeneratorConfig{
		PieceTimeout: time.Duration(cfg.Campaign.PieceTimeoutSecs) * time.Second,
		MaxTokens:    int64(cfg.Campaign.MaxTokens),
	})

	eng := engine.New(fetcher, orch, synth, scorer, pool, arcs, st)

	return &engineEnv{
		Store:  st,
		Engine: eng,
		Router: router,
		Pool:   pool,
	}, nil
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		zap.L().Info("store: postgres")
		return st, nil
	case "sqlite", "":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		zap.L().Info("store: sqlite", zap.String("path", cfg.Store.DatabaseURL))
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
