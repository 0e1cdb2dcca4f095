package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/uvp-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	business   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS extractions (
	fingerprint TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL,
	document    TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS synthesis_results (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	document   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS enhancement_tasks (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	document   TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS campaigns (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	document   TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_business ON runs(business);
CREATE INDEX IF NOT EXISTS idx_extractions_subject ON extractions(subject_id);
CREATE INDEX IF NOT EXISTS idx_synthesis_subject ON synthesis_results(subject_id);
CREATE INDEX IF NOT EXISTS idx_tasks_subject ON enhancement_tasks(subject_id);
CREATE INDEX IF NOT EXISTS idx_campaigns_subject ON campaigns(subject_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, business model.Business) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	businessJSON, err := json.Marshal(business)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal business")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, business, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(businessJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Business:  business,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.SynthesisResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, business, status, result, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, business, status, result, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SubjectURL != "" {
		query += ` AND json_extract(business, '$.url') = ?`
		args = append(args, filter.SubjectURL)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveExtraction(ctx context.Context, res *model.CombinedExtractionResult) error {
	doc, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extraction")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extractions (fingerprint, subject_id, document, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (fingerprint) DO UPDATE SET subject_id = excluded.subject_id, document = excluded.document`,
		res.Fingerprint, res.SubjectID, string(doc), res.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save extraction")
}

func (s *SQLiteStore) GetExtraction(ctx context.Context, fingerprint string) (*model.CombinedExtractionResult, error) {
	return s.queryExtraction(ctx,
		`SELECT document FROM extractions WHERE fingerprint = ?`, fingerprint)
}

func (s *SQLiteStore) LatestExtraction(ctx context.Context, subjectID string) (*model.CombinedExtractionResult, error) {
	return s.queryExtraction(ctx,
		`SELECT document FROM extractions WHERE subject_id = ? ORDER BY created_at DESC LIMIT 1`, subjectID)
}

func (s *SQLiteStore) queryExtraction(ctx context.Context, query string, arg any) (*model.CombinedExtractionResult, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get extraction")
	}
	var res model.CombinedExtractionResult
	if err := json.Unmarshal([]byte(doc), &res); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal extraction")
	}
	return &res, nil
}

func (s *SQLiteStore) SaveSynthesis(ctx context.Context, res *model.SynthesisResult) error {
	doc, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal synthesis")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO synthesis_results (id, subject_id, document, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET document = excluded.document`,
		res.ID, res.SubjectID, string(doc), res.GeneratedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save synthesis")
}

func (s *SQLiteStore) GetSynthesis(ctx context.Context, id string) (*model.SynthesisResult, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM synthesis_results WHERE id = ?`, id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get synthesis")
	}
	var res model.SynthesisResult
	if err := json.Unmarshal([]byte(doc), &res); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal synthesis")
	}
	return &res, nil
}

func (s *SQLiteStore) QuerySynthesis(ctx context.Context, subjectID string) ([]model.SynthesisResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM synthesis_results WHERE subject_id = ? ORDER BY created_at DESC`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query synthesis")
	}
	defer rows.Close()

	var results []model.SynthesisResult
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan synthesis")
		}
		var res model.SynthesisResult
		if err := json.Unmarshal([]byte(doc), &res); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal synthesis")
		}
		results = append(results, res)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: query synthesis iterate")
}

func (s *SQLiteStore) SaveTask(ctx context.Context, task model.EnhancementTask) error {
	doc, err := json.Marshal(task)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal task")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enhancement_tasks (id, subject_id, document, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID, task.SubjectID, string(doc), string(task.Status), task.CreatedAt.UTC(), task.UpdatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save task")
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, task model.EnhancementTask) error {
	doc, err := json.Marshal(task)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal task")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE enhancement_tasks SET document = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(doc), string(task.Status), time.Now().UTC(), task.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update task %s", task.ID)
	}
	return checkRowsAffected(res, "task", task.ID)
}

func (s *SQLiteStore) ListTasks(ctx context.Context, subjectID string) ([]model.EnhancementTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM enhancement_tasks WHERE subject_id = ? ORDER BY created_at ASC`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tasks")
	}
	defer rows.Close()

	var tasks []model.EnhancementTask
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan task")
		}
		var t model.EnhancementTask
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal task")
		}
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: list tasks iterate")
}

func (s *SQLiteStore) SaveCampaign(ctx context.Context, c *model.Campaign) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal campaign")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, subject_id, document, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET document = excluded.document, status = excluded.status, updated_at = excluded.updated_at`,
		c.ID, c.SubjectID, string(doc), string(c.Status), c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save campaign")
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM campaigns WHERE id = ?`, id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get campaign")
	}
	var c model.Campaign
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal campaign")
	}
	return &c, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context, subjectID string) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM campaigns WHERE subject_id = ? ORDER BY created_at DESC`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan campaign")
		}
		var c model.Campaign
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal campaign")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, eris.Wrap(rows.Err(), "sqlite: list campaigns iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var businessJSON string
	var resultJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &businessJSON, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(businessJSON), &r.Business); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal business")
	}
	if resultJSON.Valid && resultJSON.String != "" {
		r.Result = &model.SynthesisResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return &r, nil
}
