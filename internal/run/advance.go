package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/analysis"
	"github.com/aspor-platform/docintake/internal/blob"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/entity"
	"github.com/aspor-platform/docintake/internal/extract"
	"github.com/aspor-platform/docintake/internal/report"
)

// Advance drives one run through extraction, analysis and rendering. It is
// idempotent on terminal runs and must not be invoked twice concurrently for
// the same run. PROCESSING is persisted before any external call so a crash
// mid-pipeline leaves a queryable record rather than a lost request.
func (s *Service) Advance(ctx context.Context, run *entity.Run) error {
	if run.Status.Terminal() {
		s.log.Info("run.advance.skip_terminal", "run_id", run.ID, "status", run.Status)
		return nil
	}

	start := time.Now()
	processing := constants.RunStatusProcessing
	if err := s.repo.Patch(ctx, run.OwnerID, run.ID, entity.RunPatch{Status: &processing}); err != nil {
		return s.fail(ctx, run, common.WrapError(err, "persist PROCESSING"))
	}

	// Stage 1: extraction, all files, deterministic order.
	results, err := s.extractAll(ctx, run)
	if err != nil {
		return s.fail(ctx, run, err)
	}

	texts := make([]string, 0, len(results))
	names := make([]string, 0, len(results))
	usable := 0
	chars := 0
	method := ""
	for i, res := range results {
		if res.Usable() {
			usable++
			chars += len(res.Text)
			method = res.Method
		}
		texts = append(texts, res.Text)
		names = append(names, run.FileNames[i])
	}

	if usable == 0 {
		st := constants.StageStatusFailed
		_ = s.repo.Patch(ctx, run.OwnerID, run.ID, entity.RunPatch{ExtractionStatus: &st})
		return s.fail(ctx, run, fmt.Errorf("%w: none of the %d files produced text", common.ErrExtraction, len(results)))
	}
	extractionOK := constants.StageStatusSucceeded
	if err := s.repo.Patch(ctx, run.OwnerID, run.ID, entity.RunPatch{
		ExtractionStatus: &extractionOK,
		ExtractionMethod: &method,
		ExtractedChars:   &chars,
	}); err != nil {
		return s.fail(ctx, run, common.WrapError(err, "persist extraction progress"))
	}
	stageExtractDuration.Observe(time.Since(start).Seconds())

	// Stage 2: analysis. The invoker never fails; a degraded outcome still
	// completes the run with a visibly marked fallback report.
	analysisStart := time.Now()
	started := constants.StageStatusStarted
	_ = s.repo.Patch(ctx, run.OwnerID, run.ID, entity.RunPatch{AnalysisStatus: &started})

	outcome := s.invoker.Invoke(ctx, run.Model, analysis.ConcatDocuments(texts, names), run.FileNames)
	if ctx.Err() != nil {
		return s.fail(ctx, run, fmt.Errorf("run cancelled: %w", ctx.Err()))
	}
	analysisDone := constants.StageStatusSucceeded
	_ = s.repo.Patch(ctx, run.OwnerID, run.ID, entity.RunPatch{
		AnalysisStatus:   &analysisDone,
		AnalysisDegraded: &outcome.Degraded,
	})
	stageAnalyzeDuration.Observe(time.Since(analysisStart).Seconds())

	// Stage 3: persist the analysis text (source of truth for lazy
	// re-encoding), then render the requested format.
	analysisKey := blob.AnalysisKey(run.ID)
	if err := s.store.Put(ctx, analysisKey, []byte(outcome.Text), constants.FormatTxt.MIME()); err != nil {
		return s.fail(ctx, run, err)
	}

	data, mime := report.Encode(outcome.Text, analysis.TitleFor(run.Model), run.OutputFormat)
	reportKey := blob.ReportKey(run.ID, string(run.OutputFormat))
	if err := s.store.Put(ctx, reportKey, data, mime); err != nil {
		return s.fail(ctx, run, err)
	}

	completed := constants.RunStatusCompleted
	now := time.Now().UTC()
	preview := common.Truncate(outcome.Text, PreviewChars)
	if err := s.repo.Patch(ctx, run.OwnerID, run.ID, entity.RunPatch{
		Status:  &completed,
		EndedAt: &now,
		Output:  map[string]string{string(run.OutputFormat): reportKey},
		Preview: &preview,
	}); err != nil {
		return s.fail(ctx, run, common.WrapError(err, "persist COMPLETED"))
	}

	runsTotal.WithLabelValues("completed").Inc()
	s.log.Info("run.advance.completed",
		"run_id", run.ID,
		"usable_files", usable,
		"degraded", outcome.Degraded,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// extractAll runs the extractor over every file. Extraction may proceed in
// parallel, but results land in input order so concatenation stays
// deterministic.
func (s *Service) extractAll(ctx context.Context, run *entity.Run) ([]extract.Result, error) {
	started := constants.StageStatusStarted
	_ = s.repo.Patch(ctx, run.OwnerID, run.ID, entity.RunPatch{ExtractionStatus: &started})

	results := make([]extract.Result, len(run.FileKeys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range run.FileKeys {
		g.Go(func() error {
			results[i] = s.extractor.Extract(gctx, key)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run cancelled: %w", err)
	}
	return results, nil
}

// fail finalizes the run as FAILED with a redacted error detail. The stored
// detail is truncated; full detail goes to the log only.
func (s *Service) fail(ctx context.Context, run *entity.Run, cause error) error {
	s.log.Error("run.advance.failed", "run_id", run.ID, "error", cause)
	runsTotal.WithLabelValues("failed").Inc()

	failed := constants.RunStatusFailed
	now := time.Now().UTC()
	detail := common.SafeErrorMessage(cause, s.opts.Production)
	if err := s.repo.Patch(ctx, run.OwnerID, run.ID, entity.RunPatch{
		Status:      &failed,
		EndedAt:     &now,
		ErrorDetail: &detail,
	}); err != nil && !errors.Is(err, common.ErrNotFound) {
		s.log.Error("run.advance.fail_persist_failed", "run_id", run.ID, "error", err)
	}
	return cause
}
