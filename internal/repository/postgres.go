package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/entity"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	owner_id          TEXT NOT NULL,
	run_id            TEXT NOT NULL,
	model             TEXT NOT NULL,
	file_keys         JSONB NOT NULL,
	file_names        JSONB NOT NULL,
	output_format     TEXT NOT NULL,
	status            TEXT NOT NULL,
	started_at        TIMESTAMPTZ NOT NULL,
	ended_at          TIMESTAMPTZ,
	output            JSONB,
	preview           TEXT NOT NULL DEFAULT '',
	error_detail      TEXT NOT NULL DEFAULT '',
	extraction_status TEXT NOT NULL DEFAULT '',
	extraction_method TEXT NOT NULL DEFAULT '',
	extracted_chars   INTEGER NOT NULL DEFAULT 0,
	analysis_status   TEXT NOT NULL DEFAULT '',
	analysis_degraded BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (owner_id, run_id)
);
CREATE INDEX IF NOT EXISTS runs_owner_started ON runs (owner_id, started_at DESC, run_id DESC);
`

// PostgresRepository stores run records in Postgres via a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// OpenPostgres creates a pgx pool with the configured limits and migrates the
// runs table.
func OpenPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "docintake"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("repository.postgres.connect_failed", "error", err)
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres schema: %w", err)
	}
	logger.Info("repository.postgres.open")
	return &PostgresRepository{pool: pool, log: logger}, nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() { r.pool.Close() }

func (r *PostgresRepository) Create(ctx context.Context, run *entity.Run) error {
	fileKeys, _ := json.Marshal(run.FileKeys)
	fileNames, _ := json.Marshal(run.FileNames)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO runs (owner_id, run_id, model, file_keys, file_names,
			output_format, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.OwnerID, run.ID, string(run.Model), fileKeys, fileNames,
		string(run.OutputFormat), string(run.Status), run.StartedAt.UTC(),
	)
	if err != nil {
		r.log.Error("repository.create.failed", "run_id", run.ID, "error", err)
		return common.WrapError(err, "create run")
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, runID string) (*entity.Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT owner_id, run_id, model, file_keys, file_names, output_format,
			status, started_at, ended_at, output, preview, error_detail,
			extraction_status, extraction_method, extracted_chars,
			analysis_status, analysis_degraded
		FROM runs WHERE owner_id = $1 AND run_id = $2`, ownerID, runID)
	run, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundErrorf("run %s", runID)
	}
	if err != nil {
		return nil, common.WrapError(err, "get run")
	}
	return run, nil
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string, limit int, cursorToken string) (*entity.Page, error) {
	limit = clampLimit(limit)

	query := `
		SELECT owner_id, run_id, model, file_keys, file_names, output_format,
			status, started_at, ended_at, output, preview, error_detail,
			extraction_status, extraction_method, extracted_chars,
			analysis_status, analysis_degraded
		FROM runs WHERE owner_id = $1`
	args := []any{ownerID}

	if cursorToken != "" {
		c, err := decodeCursor(cursorToken)
		if err != nil {
			return nil, common.ValidationErrorf("invalid cursor")
		}
		query += ` AND (started_at, run_id) < ($2, $3)`
		args = append(args, c.StartedAt.UTC(), c.RunID)
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC, run_id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "list runs")
	}
	defer rows.Close()

	var runs []*entity.Run
	for rows.Next() {
		run, err := scanPgRun(rows)
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

func (r *PostgresRepository) Patch(ctx context.Context, ownerID, runID string, patch entity.RunPatch) error {
	sets, args := patchClauses(patch)
	if len(sets) == 0 {
		return nil
	}
	// patchClauses emits "?" placeholders; rewrite to $n for pgx.
	var b strings.Builder
	n := 0
	for i, s := range sets {
		if i > 0 {
			b.WriteString(", ")
		}
		n++
		b.WriteString(strings.Replace(s, "?", fmt.Sprintf("$%d", n), 1))
	}
	args = append(args, ownerID, runID)
	query := fmt.Sprintf(`UPDATE runs SET %s WHERE owner_id = $%d AND run_id = $%d`,
		b.String(), n+1, n+2)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("repository.patch.failed", "run_id", runID, "error", err)
		return common.WrapError(err, "patch run")
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundErrorf("run %s", runID)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, runID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM runs WHERE owner_id = $1 AND run_id = $2`, ownerID, runID)
	if err != nil {
		return common.WrapError(err, "delete run")
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundErrorf("run %s", runID)
	}
	return nil
}

func scanPgRun(row pgx.Row) (*entity.Run, error) {
	var (
		run                      entity.Run
		model, format, status    string
		fileKeys, fileNames      []byte
		output                   []byte
		endedAt                  *time.Time
		extractionSt, analysisSt string
	)
	err := row.Scan(&run.OwnerID, &run.ID, &model, &fileKeys, &fileNames, &format,
		&status, &run.StartedAt, &endedAt, &output, &run.Preview, &run.ErrorDetail,
		&extractionSt, &run.ExtractionMethod, &run.ExtractedChars,
		&analysisSt, &run.AnalysisDegraded)
	if err != nil {
		return nil, err
	}
	run.Model = constants.ModelType(model)
	run.OutputFormat = constants.OutputFormat(format)
	run.Status = constants.RunStatus(status)
	run.ExtractionStatus = constants.StageStatus(extractionSt)
	run.AnalysisStatus = constants.StageStatus(analysisSt)
	run.EndedAt = endedAt
	_ = json.Unmarshal(fileKeys, &run.FileKeys)
	_ = json.Unmarshal(fileNames, &run.FileNames)
	if len(output) > 0 {
		_ = json.Unmarshal(output, &run.Output)
	}
	return &run, nil
}
