// Package run owns the run lifecycle: it validates and creates run records,
// drives them through extraction, analysis and rendering, and serves
// artifact downloads. Status moves PENDING -> PROCESSING -> COMPLETED or
// FAILED, never backwards.
package run

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/analysis"
	"github.com/aspor-platform/docintake/internal/blob"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/entity"
	"github.com/aspor-platform/docintake/internal/extract"
	"github.com/aspor-platform/docintake/internal/repository"
)

// PreviewChars is how much analysis text is cached on the run record.
const PreviewChars = 1000

// Options tune the service without threading the whole config through.
type Options struct {
	DownloadTTL time.Duration
	Production  bool
}

// Service wires the pipeline stages around the run record.
type Service struct {
	repo      repository.RunRepository
	store     blob.Store
	extractor extract.TextExtractor
	invoker   *analysis.Invoker
	opts      Options
	log       *slog.Logger
}

func NewService(repo repository.RunRepository, store blob.Store, extractor extract.TextExtractor, invoker *analysis.Invoker, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DownloadTTL <= 0 {
		opts.DownloadTTL = time.Hour
	}
	return &Service{
		repo:      repo,
		store:     store,
		extractor: extractor,
		invoker:   invoker,
		opts:      opts,
		log:       logger,
	}
}

// CreateInput is the validated client request for a new run.
type CreateInput struct {
	OwnerID      string
	Model        constants.ModelType
	FileKeys     []string
	FileNames    []string
	OutputFormat constants.OutputFormat
}

// Create validates the request and writes the PENDING record. Validation
// failures create no record.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Run, error) {
	if !in.Model.Valid() {
		return nil, common.ValidationErrorf("model must be A or B")
	}
	if len(in.FileKeys) < 1 || len(in.FileKeys) > constants.MaxFilesPerRun {
		return nil, common.ValidationErrorf("must provide 1-%d files", constants.MaxFilesPerRun)
	}
	if !in.OutputFormat.Valid() {
		return nil, common.ValidationErrorf("output format must be docx, pdf or txt")
	}

	ownerID := common.SanitizeUserID(in.OwnerID)
	names := make([]string, len(in.FileKeys))
	for i := range in.FileKeys {
		if i < len(in.FileNames) && in.FileNames[i] != "" {
			names[i] = common.SanitizeFilename(in.FileNames[i])
		} else {
			names[i] = "documento.pdf"
		}
	}

	run := &entity.Run{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Model:        in.Model,
		FileKeys:     in.FileKeys,
		FileNames:    names,
		OutputFormat: in.OutputFormat,
		Status:       constants.RunStatusPending,
		StartedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, err
	}
	s.log.Info("run.created",
		"run_id", run.ID,
		"owner_id", ownerID,
		"model", run.Model,
		"files", len(run.FileKeys),
		"format", run.OutputFormat,
	)
	return run, nil
}

// Execute creates the run and drives it to a terminal state in one call,
// mirroring the synchronous intake endpoint. The run (with its ID) is
// returned even when the pipeline fails, so clients can poll.
func (s *Service) Execute(ctx context.Context, in CreateInput) (*entity.Run, error) {
	run, err := s.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.Advance(ctx, run); err != nil {
		// The record already carries FAILED and the redacted detail.
		refreshed, getErr := s.repo.Get(ctx, run.OwnerID, run.ID)
		if getErr == nil {
			return refreshed, err
		}
		return run, err
	}
	return s.Get(ctx, run.OwnerID, run.ID)
}

// Get returns the run with a freshly signed download URL when an artifact
// exists.
func (s *Service) Get(ctx context.Context, ownerID, runID string) (*entity.Run, error) {
	ownerID = common.SanitizeUserID(ownerID)
	if err := common.ValidateRunID(runID); err != nil {
		return nil, err
	}
	run, err := s.repo.Get(ctx, ownerID, runID)
	if err != nil {
		return nil, err
	}
	s.attachDownloadURL(run)
	return run, nil
}

// List pages an owner's runs, most recent first.
func (s *Service) List(ctx context.Context, ownerID string, limit int, cursor string) (*entity.Page, error) {
	ownerID = common.SanitizeUserID(ownerID)
	page, err := s.repo.List(ctx, ownerID, limit, cursor)
	if err != nil {
		return nil, err
	}
	for _, run := range page.Runs {
		s.attachDownloadURL(run)
	}
	return page, nil
}

// Delete soft-deletes by default; a hard delete also removes stored
// artifacts, tolerating individual deletion failures.
func (s *Service) Delete(ctx context.Context, ownerID, runID string, hard bool) error {
	ownerID = common.SanitizeUserID(ownerID)
	if err := common.ValidateRunID(runID); err != nil {
		return err
	}
	run, err := s.repo.Get(ctx, ownerID, runID)
	if err != nil {
		return err
	}

	if !hard {
		status := constants.RunStatusDeleted
		now := time.Now().UTC()
		return s.repo.Patch(ctx, ownerID, runID, entity.RunPatch{
			Status:  &status,
			EndedAt: &now,
		})
	}

	// Best-effort artifact cleanup; log and continue on individual errors.
	keys := []string{blob.AnalysisKey(runID)}
	for _, f := range constants.OutputFormats {
		keys = append(keys, blob.ReportKey(runID, string(f)))
	}
	for _, key := range run.Output {
		keys = append(keys, key)
	}
	for _, key := range dedupe(keys) {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn("run.delete.artifact_failed", "run_id", runID, "key", key, "error", err)
		}
	}
	if err := s.repo.Delete(ctx, ownerID, runID); err != nil {
		return err
	}
	s.log.Info("run.deleted", "run_id", runID, "owner_id", ownerID, "hard", true)
	return nil
}

// Stats aggregates an owner's run counts by status.
type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Processing int `json:"processing"`
}

// GetStats walks the owner's runs and tallies statuses.
func (s *Service) GetStats(ctx context.Context, ownerID string) (*Stats, error) {
	ownerID = common.SanitizeUserID(ownerID)
	stats := &Stats{}
	cursor := ""
	for {
		page, err := s.repo.List(ctx, ownerID, repository.MaxPageSize, cursor)
		if err != nil {
			return nil, err
		}
		for _, run := range page.Runs {
			stats.Total++
			switch run.Status {
			case constants.RunStatusCompleted:
				stats.Completed++
			case constants.RunStatusFailed:
				stats.Failed++
			case constants.RunStatusPending, constants.RunStatusProcessing:
				stats.Processing++
			}
		}
		if !page.HasMore {
			return stats, nil
		}
		cursor = page.NextCursor
	}
}

func (s *Service) attachDownloadURL(run *entity.Run) {
	if run.Status != constants.RunStatusCompleted {
		return
	}
	key, ok := run.Output[string(run.OutputFormat)]
	if !ok {
		return
	}
	url, err := s.store.SignURL(key, blob.SignOptions{
		Method:      blob.MethodGet,
		TTL:         s.opts.DownloadTTL,
		ContentType: run.OutputFormat.MIME(),
		Filename:    downloadFilename(run.ID, string(run.OutputFormat)),
	})
	if err != nil {
		s.log.Warn("run.sign_url.failed", "run_id", run.ID, "error", err)
		return
	}
	run.DownloadURL = url
}

func downloadFilename(runID, format string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return "reporte_" + short + "." + format
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
