package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/uvp-engine/internal/db"
	"github.com/sells-group/uvp-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, business, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"update_run_result": `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, business, status, result, error, created_at, updated_at FROM runs WHERE id = $1`,
	"save_synthesis": `INSERT INTO synthesis_results (id, subject_id, document, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET document = $3`,
	"get_synthesis": `SELECT document FROM synthesis_results WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	business   JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS extractions (
	fingerprint TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL,
	document    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS synthesis_results (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	document   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS enhancement_tasks (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	document   JSONB NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaigns (
	id            TEXT PRIMARY KEY,
	subject_id    TEXT NOT NULL,
	source_uvp_id TEXT NOT NULL,
	purpose       TEXT NOT NULL,
	template      TEXT NOT NULL,
	industry      TEXT,
	status        TEXT NOT NULL,
	duration_days INTEGER NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaign_pieces (
	id          TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL REFERENCES campaigns(id),
	position    INTEGER NOT NULL,
	content     TEXT NOT NULL,
	trigger     TEXT NOT NULL,
	day_offset  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_extractions_subject ON extractions(subject_id);
CREATE INDEX IF NOT EXISTS idx_synthesis_subject ON synthesis_results(subject_id);
CREATE INDEX IF NOT EXISTS idx_tasks_subject ON enhancement_tasks(subject_id);
CREATE INDEX IF NOT EXISTS idx_campaigns_subject ON campaigns(subject_id);
CREATE INDEX IF NOT EXISTS idx_pieces_campaign ON campaign_pieces(campaign_id, position);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, business model.Business) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	businessJSON, err := json.Marshal(business)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal business")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, business, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, businessJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Business:  business,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.SynthesisResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var businessJSON []byte
	var resultJSON *[]byte
	var errMsg *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, business, status, result, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &businessJSON, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(businessJSON, &r.Business); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal business")
	}
	if resultJSON != nil {
		r.Result = &model.SynthesisResult{}
		if err := json.Unmarshal(*resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, business, status, result, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.SubjectURL != "" {
		query += fmt.Sprintf(` AND business->>'url' = $%d`, argIdx)
		args = append(args, filter.SubjectURL)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var businessJSON []byte
		var resultJSON *[]byte
		var errMsg *string

		if err := rows.Scan(&r.ID, &businessJSON, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(businessJSON, &r.Business); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal business")
		}
		if resultJSON != nil {
			r.Result = &model.SynthesisResult{}
			if err := json.Unmarshal(*resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveExtraction(ctx context.Context, res *model.CombinedExtractionResult) error {
	doc, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extraction")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO extractions (fingerprint, subject_id, document, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (fingerprint) DO UPDATE SET subject_id = $2, document = $3`,
		res.Fingerprint, res.SubjectID, doc, res.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save extraction")
}

func (s *PostgresStore) GetExtraction(ctx context.Context, fingerprint string) (*model.CombinedExtractionResult, error) {
	return s.queryExtraction(ctx,
		`SELECT document FROM extractions WHERE fingerprint = $1`, fingerprint)
}

func (s *PostgresStore) LatestExtraction(ctx context.Context, subjectID string) (*model.CombinedExtractionResult, error) {
	return s.queryExtraction(ctx,
		`SELECT document FROM extractions WHERE subject_id = $1 ORDER BY created_at DESC LIMIT 1`, subjectID)
}

func (s *PostgresStore) queryExtraction(ctx context.Context, query string, arg any) (*model.CombinedExtractionResult, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, query, arg).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get extraction")
	}
	var res model.CombinedExtractionResult
	if err := json.Unmarshal(doc, &res); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal extraction")
	}
	return &res, nil
}

func (s *PostgresStore) SaveSynthesis(ctx context.Context, res *model.SynthesisResult) error {
	doc, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal synthesis")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO synthesis_results (id, subject_id, document, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET document = $3`,
		res.ID, res.SubjectID, doc, res.GeneratedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save synthesis")
}

func (s *PostgresStore) GetSynthesis(ctx context.Context, id string) (*model.SynthesisResult, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM synthesis_results WHERE id = $1`, id,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get synthesis")
	}
	var res model.SynthesisResult
	if err := json.Unmarshal(doc, &res); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal synthesis")
	}
	return &res, nil
}

func (s *PostgresStore) QuerySynthesis(ctx context.Context, subjectID string) ([]model.SynthesisResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT document FROM synthesis_results WHERE subject_id = $1 ORDER BY created_at DESC`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query synthesis")
	}
	defer rows.Close()

	var results []model.SynthesisResult
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan synthesis")
		}
		var res model.SynthesisResult
		if err := json.Unmarshal(doc, &res); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal synthesis")
		}
		results = append(results, res)
	}
	return results, eris.Wrap(rows.Err(), "postgres: query synthesis iterate")
}

func (s *PostgresStore) SaveTask(ctx context.Context, task model.EnhancementTask) error {
	doc, err := json.Marshal(task)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal task")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO enhancement_tasks (id, subject_id, document, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		task.ID, task.SubjectID, doc, string(task.Status), task.CreatedAt.UTC(), task.UpdatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save task")
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task model.EnhancementTask) error {
	doc, err := json.Marshal(task)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal task")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE enhancement_tasks SET document = $1, status = $2, updated_at = $3 WHERE id = $4`,
		doc, string(task.Status), time.Now().UTC(), task.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update task %s", task.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("task not found: %s", task.ID)
	}
	return nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, subjectID string) ([]model.EnhancementTask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT document FROM enhancement_tasks WHERE subject_id = $1 ORDER BY created_at ASC`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tasks")
	}
	defer rows.Close()

	var tasks []model.EnhancementTask
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		var t model.EnhancementTask
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal task")
		}
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: list tasks iterate")
}

// campaignPieceColumns is the column order used for bulk-upserting pieces.
var campaignPieceColumns = []string{"id", "campaign_id", "position", "content", "trigger", "day_offset"}

func (s *PostgresStore) SaveCampaign(ctx context.Context, c *model.Campaign) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, subject_id, source_uvp_id, purpose, template, industry, status, duration_days, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET status = $7, updated_at = $10`,
		c.ID, c.SubjectID, c.SourceUVP, string(c.Purpose), c.Template, c.Industry,
		string(c.Status), c.DurationDays, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: save campaign")
	}

	rows := make([][]any, 0, len(c.Pieces))
	for _, p := range c.Pieces {
		rows = append(rows, []any{p.ID, c.ID, p.Position, p.Content, string(p.Trigger), p.DayOffset})
	}
	_, err = db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "campaign_pieces",
		Columns:      campaignPieceColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	return eris.Wrap(err, "postgres: save campaign pieces")
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := s.pool.QueryRow(ctx,
		`SELECT id, subject_id, source_uvp_id, purpose, template, industry, status, duration_days, created_at, updated_at
		 FROM campaigns WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.SubjectID, &c.SourceUVP, &c.Purpose, &c.Template, &c.Industry,
		&c.Status, &c.DurationDays, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get campaign %s", id)
	}

	pieces, err := s.campaignPieces(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Pieces = pieces
	return &c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context, subjectID string) ([]model.Campaign, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, source_uvp_id, purpose, template, industry, status, duration_days, created_at, updated_at
		 FROM campaigns WHERE subject_id = $1 ORDER BY created_at DESC`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.SourceUVP, &c.Purpose, &c.Template, &c.Industry,
			&c.Status, &c.DurationDays, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns iterate")
	}

	for i := range campaigns {
		pieces, err := s.campaignPieces(ctx, campaigns[i].ID)
		if err != nil {
			return nil, err
		}
		campaigns[i].Pieces = pieces
	}
	return campaigns, nil
}

func (s *PostgresStore) campaignPieces(ctx context.Context, campaignID string) ([]model.CampaignPiece, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, position, content, trigger, day_offset FROM campaign_pieces
		 WHERE campaign_id = $1 ORDER BY position ASC`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: campaign pieces %s", campaignID)
	}
	defer rows.Close()

	var pieces []model.CampaignPiece
	for rows.Next() {
		var p model.CampaignPiece
		if err := rows.Scan(&p.ID, &p.Position, &p.Content, &p.Trigger, &p.DayOffset); err != nil {
			return nil, eris.Wrap(err, "postgres: scan piece")
		}
		pieces = append(pieces, p)
	}
	return pieces, eris.Wrap(rows.Err(), "postgres: campaign pieces iterate")
}
