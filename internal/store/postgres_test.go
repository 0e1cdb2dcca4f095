package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/uvp-engine/internal/model"
)

func init() {
	// Replace global logger with a no-op to avoid nil pointer panics in tests.
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_CreateRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), string(model.RunStatusQueued), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), testBusiness())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateRunStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs(string(model.RunStatusFailed), "boom", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateRunStatus(context.Background(), "run-1", model.RunStatusFailed, "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs(string(model.RunStatusComplete), "", pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "nope", model.RunStatusComplete, "")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock := newMockStore(t)

	business, err := json.Marshal(testBusiness())
	require.NoError(t, err)
	result, err := json.Marshal(&model.SynthesisResult{ID: "res-1", PrimaryStatement: "Calm dentistry."})
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, business, status, result, error, created_at, updated_at FROM runs").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "business", "status", "result", "error", "created_at", "updated_at"},
		).AddRow("run-1", business, model.RunStatusComplete, &result, (*string)(nil), now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Harbor Dental", run.Business.Name)
	require.NotNil(t, run.Result)
	assert.Equal(t, "res-1", run.Result.ID)
	assert.Empty(t, run.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetSynthesis_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT document FROM synthesis_results").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"document"}))

	res, err := s.GetSynthesis(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveCampaign(t *testing.T) {
	s, mock := newMockStore(t)

	camp := &model.Campaign{
		ID:        "c1",
		SubjectID: "biz-1",
		SourceUVP: "res-1",
		Purpose:   model.PurposeLaunch,
		Template:  "launch_arc",
		Status:    model.CampaignStatusGenerated,
		Pieces: []model.CampaignPiece{
			{ID: "p1", Position: 0, Content: "Tease.", Trigger: model.TriggerCuriosity},
			{ID: "p2", Position: 1, Content: "Reveal.", Trigger: model.TriggerAspiration, DayOffset: 2},
		},
		DurationDays: 7,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO campaigns").
		WithArgs("c1", "biz-1", "res-1", string(model.PurposeLaunch), "launch_arc", "",
			string(model.CampaignStatusGenerated), 7, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Piece upsert goes through the temp-table COPY path in one transaction.
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_campaign_pieces"}, campaignPieceColumns).
		WillReturnResult(2)
	mock.ExpectExec("INSERT INTO \"campaign_pieces\"").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, s.SaveCampaign(context.Background(), camp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetCampaign(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, subject_id, source_uvp_id, purpose, template, industry, status, duration_days").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "subject_id", "source_uvp_id", "purpose", "template", "industry", "status", "duration_days", "created_at", "updated_at"},
		).AddRow("c1", "biz-1", "res-1", model.PurposeLaunch, "launch_arc", "", model.CampaignStatusApproved, 7, now, now))

	mock.ExpectQuery("SELECT id, position, content, trigger, day_offset FROM campaign_pieces").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "position", "content", "trigger", "day_offset"},
		).AddRow("p1", 0, "Tease.", model.TriggerCuriosity, 0).
			AddRow("p2", 1, "Reveal.", model.TriggerAspiration, 2))

	camp, err := s.GetCampaign(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusApproved, camp.Status)
	require.Len(t, camp.Pieces, 2)
	assert.Equal(t, model.TriggerAspiration, camp.Pieces[1].Trigger)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetCampaign_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, subject_id, source_uvp_id").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"id", "subject_id", "source_uvp_id", "purpose", "template", "industry", "status", "duration_days", "created_at", "updated_at"}))

	camp, err := s.GetCampaign(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, camp)
	assert.NoError(t, mock.ExpectationsWereMet())
}
