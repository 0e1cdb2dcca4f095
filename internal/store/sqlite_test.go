package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/uvp-engine/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testBusiness() model.Business {
	return model.Business{
		ID:   "biz-1",
		URL:  "https://harbordental.example",
		Name: "Harbor Dental",
	}
}

func TestSQLite_RunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testBusiness())
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusExtracting, ""))

	result := &model.SynthesisResult{
		ID:               "res-1",
		SubjectID:        "biz-1",
		PrimaryStatement: "Calm, pain-free dentistry for anxious patients.",
		GeneratedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.UpdateRunResult(ctx, run.ID, result))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, testBusiness(), got.Business)
	require.NotNil(t, got.Result)
	assert.Equal(t, "res-1", got.Result.ID)
	assert.Equal(t, result.PrimaryStatement, got.Result.PrimaryStatement)
}

func TestSQLite_RunFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testBusiness())
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed, "site unreachable"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "site unreachable", got.Error)
	assert.Nil(t, got.Result)
}

func TestSQLite_UpdateMissingRun(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateRunStatus(context.Background(), "nope", model.RunStatusComplete, "")
	assert.Error(t, err)
}

func TestSQLite_GetMissingRun(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSQLite_ListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, testBusiness())
	require.NoError(t, err)
	other := testBusiness()
	other.URL = "https://other.example"
	_, err = s.CreateRun(ctx, other)
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, first.ID, model.RunStatusFailed, "x"))

	failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, first.ID, failed[0].ID)

	byURL, err := s.ListRuns(ctx, RunFilter{SubjectURL: "https://other.example"})
	require.NoError(t, err)
	require.Len(t, byURL, 1)

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_ExtractionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := &model.CombinedExtractionResult{
		SubjectID:   "biz-1",
		Fingerprint: "fp-1",
		Results: map[model.ExtractorID]model.ExtractionResult{
			model.ExtractorBenefit: {
				ExtractorID: model.ExtractorBenefit,
				Confidence:  0.8,
				Fields:      []model.ExtractionField{{Key: "primary_benefit", Value: "no fear"}},
			},
		},
		Order:      []model.ExtractorID{model.ExtractorBenefit},
		Confidence: 0.8,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.SaveExtraction(ctx, res))

	got, err := s.GetExtraction(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "biz-1", got.SubjectID)
	assert.Equal(t, "no fear", got.Results[model.ExtractorBenefit].Fields[0].Value)

	missing, err := s.GetExtraction(ctx, "fp-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing, "a missing extraction is not an error")

	// Upsert on the same fingerprint replaces the document.
	res.Confidence = 0.9
	require.NoError(t, s.SaveExtraction(ctx, res))
	got, err = s.GetExtraction(ctx, "fp-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got.Confidence, 0.001)
}

func TestSQLite_LatestExtraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := &model.CombinedExtractionResult{
		SubjectID: "biz-1", Fingerprint: "fp-old",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	newer := &model.CombinedExtractionResult{
		SubjectID: "biz-1", Fingerprint: "fp-new",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveExtraction(ctx, older))
	require.NoError(t, s.SaveExtraction(ctx, newer))

	got, err := s.LatestExtraction(ctx, "biz-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fp-new", got.Fingerprint)
}

func TestSQLite_SynthesisRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := &model.SynthesisResult{
		ID:                  "res-1",
		SubjectID:           "biz-1",
		PrimaryStatement:    "Calm dentistry.",
		SecondaryStatements: []string{"Sedation options.", "Evening hours."},
		TierUsed:            "high",
		GeneratedAt:         time.Now().UTC(),
	}
	require.NoError(t, s.SaveSynthesis(ctx, res))

	got, err := s.GetSynthesis(ctx, "res-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res.PrimaryStatement, got.PrimaryStatement)
	assert.Equal(t, res.SecondaryStatements, got.SecondaryStatements)

	missing, err := s.GetSynthesis(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := s.QuerySynthesis(ctx, "biz-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "res-1", list[0].ID)
}

func TestSQLite_TaskLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := model.EnhancementTask{
		ID:             "t1",
		SubjectID:      "biz-1",
		TargetResultID: "res-1",
		Dimension:      model.DimensionClarity,
		Priority:       12.5,
		Status:         model.TaskStatusQueued,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.SaveTask(ctx, task))

	task.Status = model.TaskStatusComplete
	task.Attempts = 1
	require.NoError(t, s.UpdateTask(ctx, task))

	tasks, err := s.ListTasks(ctx, "biz-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.TaskStatusComplete, tasks[0].Status)
	assert.Equal(t, 1, tasks[0].Attempts)
	assert.InDelta(t, 12.5, tasks[0].Priority, 0.001)

	assert.Error(t, s.UpdateTask(ctx, model.EnhancementTask{ID: "nope"}))
}

func TestSQLite_CampaignRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	camp := &model.Campaign{
		ID:        "c1",
		SubjectID: "biz-1",
		SourceUVP: "res-1",
		Purpose:   model.PurposeConversion,
		Template:  "conversion_arc",
		Status:    model.CampaignStatusGenerated,
		Pieces: []model.CampaignPiece{
			{ID: "p1", Position: 0, Content: "Piece one.", Trigger: model.TriggerTrust, DayOffset: 0},
			{ID: "p2", Position: 1, Content: "Piece two.", Trigger: model.TriggerUrgency, DayOffset: 3},
		},
		DurationDays: 7,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.SaveCampaign(ctx, camp))

	got, err := s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.CampaignStatusGenerated, got.Status)
	require.Len(t, got.Pieces, 2)
	assert.Equal(t, model.TriggerUrgency, got.Pieces[1].Trigger)

	// Approval round-trips through the same upsert.
	camp.Status = model.CampaignStatusApproved
	require.NoError(t, s.SaveCampaign(ctx, camp))
	got, err = s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusApproved, got.Status)

	list, err := s.ListCampaigns(ctx, "biz-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	missing, err := s.GetCampaign(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
