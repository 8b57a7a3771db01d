package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	owner_id          TEXT NOT NULL,
	run_id            TEXT NOT NULL,
	model             TEXT NOT NULL,
	file_keys         TEXT NOT NULL,
	file_names        TEXT NOT NULL,
	output_format     TEXT NOT NULL,
	status            TEXT NOT NULL,
	started_at        TEXT NOT NULL,
	ended_at          TEXT,
	output            TEXT,
	preview           TEXT NOT NULL DEFAULT '',
	error_detail      TEXT NOT NULL DEFAULT '',
	extraction_status TEXT NOT NULL DEFAULT '',
	extraction_method TEXT NOT NULL DEFAULT '',
	extracted_chars   INTEGER NOT NULL DEFAULT 0,
	analysis_status   TEXT NOT NULL DEFAULT '',
	analysis_degraded INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (owner_id, run_id)
);
CREATE INDEX IF NOT EXISTS runs_owner_started ON runs (owner_id, started_at DESC, run_id DESC);
`

// SQLiteRepository stores run records in an embedded SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens (and migrates) the embedded store at the given DSN.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	logger.Info("repository.sqlite.open", "dsn", dsn)
	return &SQLiteRepository{db: db, log: logger}, nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) Create(ctx context.Context, run *entity.Run) error {
	fileKeys, _ := json.Marshal(run.FileKeys)
	fileNames, _ := json.Marshal(run.FileNames)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (owner_id, run_id, model, file_keys, file_names,
			output_format, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.OwnerID, run.ID, string(run.Model), string(fileKeys), string(fileNames),
		string(run.OutputFormat), string(run.Status),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		r.log.Error("repository.create.failed", "run_id", run.ID, "error", err)
		return common.WrapError(err, "create run")
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, ownerID, runID string) (*entity.Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT owner_id, run_id, model, file_keys, file_names, output_format,
			status, started_at, ended_at, output, preview, error_detail,
			extraction_status, extraction_method, extracted_chars,
			analysis_status, analysis_degraded
		FROM runs WHERE owner_id = ? AND run_id = ?`, ownerID, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundErrorf("run %s", runID)
	}
	if err != nil {
		return nil, common.WrapError(err, "get run")
	}
	return run, nil
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, limit int, cursorToken string) (*entity.Page, error) {
	limit = clampLimit(limit)

	query := `
		SELECT owner_id, run_id, model, file_keys, file_names, output_format,
			status, started_at, ended_at, output, preview, error_detail,
			extraction_status, extraction_method, extracted_chars,
			analysis_status, analysis_degraded
		FROM runs WHERE owner_id = ?`
	args := []any{ownerID}

	if cursorToken != "" {
		c, err := decodeCursor(cursorToken)
		if err != nil {
			return nil, common.ValidationErrorf("invalid cursor")
		}
		query += ` AND (started_at < ? OR (started_at = ? AND run_id < ?))`
		ts := c.StartedAt.UTC().Format(time.RFC3339Nano)
		args = append(args, ts, ts, c.RunID)
	}
	// Fetch one extra row to detect whether another page exists.
	query += ` ORDER BY started_at DESC, run_id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "list runs")
	}
	defer rows.Close()

	var runs []*entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan run")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(err, "list runs")
	}
	return buildPage(runs, limit), nil
}

func (r *SQLiteRepository) Patch(ctx context.Context, ownerID, runID string, patch entity.RunPatch) error {
	sets, args := patchClauses(patch)
	if len(sets) == 0 {
		return nil
	}
	args = append(args, ownerID, runID)
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET `+joinClauses(sets)+` WHERE owner_id = ? AND run_id = ?`, args...)
	if err != nil {
		r.log.Error("repository.patch.failed", "run_id", runID, "error", err)
		return common.WrapError(err, "patch run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundErrorf("run %s", runID)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, runID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM runs WHERE owner_id = ? AND run_id = ?`, ownerID, runID)
	if err != nil {
		return common.WrapError(err, "delete run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundErrorf("run %s", runID)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*entity.Run, error) {
	var (
		run                      entity.Run
		model, format, status    string
		fileKeys, fileNames      string
		startedAt                string
		endedAt, output          sql.NullString
		extractionSt, analysisSt string
		analysisDegraded         int
	)
	err := s.Scan(&run.OwnerID, &run.ID, &model, &fileKeys, &fileNames, &format,
		&status, &startedAt, &endedAt, &output, &run.Preview, &run.ErrorDetail,
		&extractionSt, &run.ExtractionMethod, &run.ExtractedChars,
		&analysisSt, &analysisDegraded)
	if err != nil {
		return nil, err
	}
	run.Model = constants.ModelType(model)
	run.OutputFormat = constants.OutputFormat(format)
	run.Status = constants.RunStatus(status)
	run.ExtractionStatus = constants.StageStatus(extractionSt)
	run.AnalysisStatus = constants.StageStatus(analysisSt)
	run.AnalysisDegraded = analysisDegraded != 0
	_ = json.Unmarshal([]byte(fileKeys), &run.FileKeys)
	_ = json.Unmarshal([]byte(fileNames), &run.FileNames)
	if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		run.StartedAt = ts
	}
	if endedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, endedAt.String); err == nil {
			run.EndedAt = &ts
		}
	}
	if output.Valid && output.String != "" {
		_ = json.Unmarshal([]byte(output.String), &run.Output)
	}
	return &run, nil
}

func patchClauses(p entity.RunPatch) (sets []string, args []any) {
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.EndedAt != nil {
		sets = append(sets, "ended_at = ?")
		args = append(args, p.EndedAt.UTC().Format(time.RFC3339Nano))
	}
	if p.Output != nil {
		b, _ := json.Marshal(p.Output)
		sets = append(sets, "output = ?")
		args = append(args, string(b))
	}
	if p.Preview != nil {
		sets = append(sets, "preview = ?")
		args = append(args, *p.Preview)
	}
	if p.ErrorDetail != nil {
		sets = append(sets, "error_detail = ?")
		args = append(args, *p.ErrorDetail)
	}
	if p.ExtractionStatus != nil {
		sets = append(sets, "extraction_status = ?")
		args = append(args, string(*p.ExtractionStatus))
	}
	if p.ExtractionMethod != nil {
		sets = append(sets, "extraction_method = ?")
		args = append(args, *p.ExtractionMethod)
	}
	if p.ExtractedChars != nil {
		sets = append(sets, "extracted_chars = ?")
		args = append(args, *p.ExtractedChars)
	}
	if p.AnalysisStatus != nil {
		sets = append(sets, "analysis_status = ?")
		args = append(args, string(*p.AnalysisStatus))
	}
	if p.AnalysisDegraded != nil {
		degraded := 0
		if *p.AnalysisDegraded {
			degraded = 1
		}
		sets = append(sets, "analysis_degraded = ?")
		args = append(args, degraded)
	}
	return sets, args
}

func joinClauses(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func buildPage(runs []*entity.Run, limit int) *entity.Page {
	page := &entity.Page{}
	if len(runs) > limit {
		runs = runs[:limit]
		page.HasMore = true
		last := runs[len(runs)-1]
		page.NextCursor = encodeCursor(cursor{StartedAt: last.StartedAt, RunID: last.ID})
	}
	page.Runs = runs
	return page
}
