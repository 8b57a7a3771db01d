package run

import (
	"context"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/analysis"
	"github.com/aspor-platform/docintake/internal/blob"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/entity"
	"github.com/aspor-platform/docintake/internal/report"
)

// Download is a resolved artifact reference.
type Download struct {
	URL      string `json:"downloadUrl"`
	Filename string `json:"filename"`
	Format   string `json:"format"`
}

// Resolve returns a signed URL for the run's artifact in the requested
// format, lazily re-encoding it from the persisted analysis text when the
// format was never produced. Re-resolving an existing format is
// side-effect-free.
func (s *Service) Resolve(ctx context.Context, ownerID, runID string, format constants.OutputFormat) (*Download, error) {
	ownerID = common.SanitizeUserID(ownerID)
	if err := common.ValidateRunID(runID); err != nil {
		return nil, err
	}
	if !format.Valid() {
		return nil, common.ValidationErrorf("output format must be docx, pdf or txt")
	}

	run, err := s.repo.Get(ctx, ownerID, runID)
	if err != nil {
		return nil, err
	}

	key := blob.ReportKey(runID, string(format))
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := s.materialize(ctx, run, format, key); err != nil {
			return nil, err
		}
	}

	url, err := s.store.SignURL(key, blob.SignOptions{
		Method:      blob.MethodGet,
		TTL:         s.opts.DownloadTTL,
		ContentType: format.MIME(),
		Filename:    downloadFilename(runID, string(format)),
	})
	if err != nil {
		return nil, common.WrapError(err, "sign download url")
	}
	return &Download{
		URL:      url,
		Filename: downloadFilename(runID, string(format)),
		Format:   string(format),
	}, nil
}

// materialize renders the requested format from the persisted analysis text
// and records the new artifact on the run.
func (s *Service) materialize(ctx context.Context, run *entity.Run, format constants.OutputFormat, key string) error {
	text, err := s.store.Get(ctx, blob.AnalysisKey(run.ID))
	if err != nil {
		// The run never completed, so there is nothing to encode from.
		return common.NotFoundErrorf("no analysis available for run %s", run.ID)
	}

	data, mime := report.Encode(string(text), analysis.TitleFor(run.Model), format)
	if err := s.store.Put(ctx, key, data, mime); err != nil {
		return err
	}
	lazyRegenerations.WithLabelValues(string(format)).Inc()
	s.log.Info("run.resolve.materialized", "run_id", run.ID, "format", format)

	output := map[string]string{}
	for k, v := range run.Output {
		output[k] = v
	}
	output[string(format)] = key
	if err := s.repo.Patch(ctx, run.OwnerID, run.ID, entity.RunPatch{Output: output}); err != nil {
		s.log.Warn("run.resolve.record_output_failed", "run_id", run.ID, "error", err)
	}
	return nil
}
