// Package store persists runs, extraction and synthesis results,
// enhancement tasks, and campaigns. Records are stored as opaque JSON
// documents keyed for the pipeline's access patterns.
package store

import (
	"context"

	"github.com/sells-group/uvp-engine/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	SubjectURL string         `json:"subject_url,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the generation pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, business model.Business) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	UpdateRunResult(ctx context.Context, runID string, result *model.SynthesisResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Extraction results
	SaveExtraction(ctx context.Context, res *model.CombinedExtractionResult) error
	GetExtraction(ctx context.Context, fingerprint string) (*model.CombinedExtractionResult, error)
	LatestExtraction(ctx context.Context, subjectID string) (*model.CombinedExtractionResult, error)

	// Synthesis results
	SaveSynthesis(ctx context.Context, res *model.SynthesisResult) error
	GetSynthesis(ctx context.Context, id string) (*model.SynthesisResult, error)
	QuerySynthesis(ctx context.Context, subjectID string) ([]model.SynthesisResult, error)

	// Enhancement tasks
	SaveTask(ctx context.Context, task model.EnhancementTask) error
	UpdateTask(ctx context.Context, task model.EnhancementTask) error
	ListTasks(ctx context.Context, subjectID string) ([]model.EnhancementTask, error)

	// Campaigns
	SaveCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, subjectID string) ([]model.Campaign, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
