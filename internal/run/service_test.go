package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/analysis"
	"github.com/aspor-platform/docintake/internal/blob"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/extract"
	"github.com/aspor-platform/docintake/internal/repository"
)

// fakeExtractor maps object keys to canned extraction results.
type fakeExtractor struct {
	results map[string]extract.Result
}

func (f *fakeExtractor) Extract(_ context.Context, key string) extract.Result {
	if res, ok := f.results[key]; ok {
		return res
	}
	return extract.Result{Kind: extract.KindNotFound, Text: "[documento no encontrado en el almacenamiento]"}
}

// fakeGenerator returns a fixed report or a fixed error.
type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

type fixture struct {
	repo  *repository.MemoryRepository
	store *blob.MemoryStore
	svc   *Service
}

func newFixture(t *testing.T, extractor extract.TextExtractor, gen analysis.Generator) *fixture {
	t.Helper()
	logger := slog.Default()
	repo := repository.NewMemoryRepository()
	store := blob.NewMemoryStore(nil)
	svc := NewService(repo, store, extractor, analysis.NewInvoker(gen, logger), Options{}, logger)
	return &fixture{repo: repo, store: store, svc: svc}
}

func okExtractor(keys ...string) *fakeExtractor {
	results := make(map[string]extract.Result)
	for i, key := range keys {
		results[key] = extract.Result{
			Kind:   extract.KindOK,
			Text:   fmt.Sprintf("texto del documento %d", i+1),
			Method: "direct",
		}
	}
	return &fakeExtractor{results: results}
}

func TestExecuteCompletesRun(t *testing.T) {
	f := newFixture(t, okExtractor("uploads/u/a.txt"), &fakeGenerator{text: "ANTECEDENTES\nEl informe."})
	ctx := context.Background()

	res, err := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelContragarantias,
		FileKeys:     []string{"uploads/u/a.txt"},
		FileNames:    []string{"a.txt"},
		OutputFormat: constants.FormatTxt,
	})
	require.NoError(t, err)

	assert.Equal(t, constants.RunStatusCompleted, res.Status)
	assert.NotNil(t, res.EndedAt)
	assert.False(t, res.AnalysisDegraded)
	assert.Equal(t, "ANTECEDENTES\nEl informe.", res.Preview)
	assert.NotEmpty(t, res.DownloadURL)

	reportKey, ok := res.Output["txt"]
	require.True(t, ok, "output map must record the rendered format")
	data, err := f.store.Get(ctx, reportKey)
	require.NoError(t, err)
	assert.Equal(t, "ANTECEDENTES\nEl informe.", string(data))

	// The analysis text is persisted separately as the re-encoding source.
	raw, err := f.store.Get(ctx, blob.AnalysisKey(res.ID))
	require.NoError(t, err)
	assert.Equal(t, "ANTECEDENTES\nEl informe.", string(raw))
}

func TestCreateValidationFailuresLeaveNoRecord(t *testing.T) {
	f := newFixture(t, okExtractor(), &fakeGenerator{text: "x"})
	ctx := context.Background()

	cases := []CreateInput{
		{OwnerID: "u", Model: "C", FileKeys: []string{"k"}, OutputFormat: constants.FormatTxt},
		{OwnerID: "u", Model: constants.ModelContragarantias, FileKeys: nil, OutputFormat: constants.FormatTxt},
		{OwnerID: "u", Model: constants.ModelContragarantias, FileKeys: []string{"1", "2", "3", "4"}, OutputFormat: constants.FormatTxt},
		{OwnerID: "u", Model: constants.ModelContragarantias, FileKeys: []string{"k"}, OutputFormat: "html"},
	}
	for _, in := range cases {
		_, err := f.svc.Create(ctx, in)
		assert.ErrorIs(t, err, common.ErrValidation)
	}

	page, err := f.repo.List(ctx, "u", 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Runs, "rejected requests must not create records")
}

func TestExecuteFailsWhenNothingExtractable(t *testing.T) {
	// Every file missing: total extraction failure is fatal.
	f := newFixture(t, &fakeExtractor{results: nil}, &fakeGenerator{text: "nunca llamado"})
	ctx := context.Background()

	res, err := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelInformeSocial,
		FileKeys:     []string{"uploads/u/gone1.pdf", "uploads/u/gone2.pdf"},
		OutputFormat: constants.FormatDocx,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)

	require.NotNil(t, res, "the failed run is still returned for polling")
	assert.Equal(t, constants.RunStatusFailed, res.Status)
	assert.NotEmpty(t, res.ErrorDetail)
	assert.NotNil(t, res.EndedAt)
	assert.Empty(t, res.Output)
}

func TestExecuteDegradesWhenGeneratorFails(t *testing.T) {
	// Generation failure is not fatal: the run completes with a marked
	// fallback report.
	f := newFixture(t, okExtractor("uploads/u/a.txt"), &fakeGenerator{err: errors.New("service unavailable")})
	ctx := context.Background()

	res, err := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelContragarantias,
		FileKeys:     []string{"uploads/u/a.txt"},
		FileNames:    []string{"escritura.txt"},
		OutputFormat: constants.FormatTxt,
	})
	require.NoError(t, err)

	assert.Equal(t, constants.RunStatusCompleted, res.Status)
	assert.True(t, res.AnalysisDegraded)

	data, err := f.store.Get(ctx, res.Output["txt"])
	require.NoError(t, err)
	assert.Contains(t, string(data), analysis.FallbackMarker)
	assert.Contains(t, string(data), "escritura.txt")
}

func TestPartialExtractionStillCompletes(t *testing.T) {
	extractor := okExtractor("uploads/u/ok.txt")
	f := newFixture(t, extractor, &fakeGenerator{text: "informe parcial"})
	ctx := context.Background()

	res, err := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelContragarantias,
		FileKeys:     []string{"uploads/u/ok.txt", "uploads/u/gone.pdf"},
		FileNames:    []string{"ok.txt", "gone.pdf"},
		OutputFormat: constants.FormatTxt,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusCompleted, res.Status)
}

func TestAdvanceSkipsTerminalRun(t *testing.T) {
	f := newFixture(t, okExtractor("uploads/u/a.txt"), &fakeGenerator{text: "informe"})
	ctx := context.Background()

	res, err := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelContragarantias,
		FileKeys:     []string{"uploads/u/a.txt"},
		OutputFormat: constants.FormatTxt,
	})
	require.NoError(t, err)
	endedAt := *res.EndedAt

	require.NoError(t, f.svc.Advance(ctx, res))

	after, err := f.repo.Get(ctx, "user-1", res.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusCompleted, after.Status)
	assert.Equal(t, endedAt, *after.EndedAt, "terminal runs must not be re-processed")
}

func TestResolveMaterializesMissingFormat(t *testing.T) {
	f := newFixture(t, okExtractor("uploads/u/a.txt"), &fakeGenerator{text: "cuerpo del informe"})
	ctx := context.Background()

	res, err := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelInformeSocial,
		FileKeys:     []string{"uploads/u/a.txt"},
		OutputFormat: constants.FormatTxt,
	})
	require.NoError(t, err)

	pdfKey := blob.ReportKey(res.ID, "pdf")
	exists, err := f.store.Exists(ctx, pdfKey)
	require.NoError(t, err)
	require.False(t, exists, "pdf was never requested at run time")

	dl, err := f.svc.Resolve(ctx, "user-1", res.ID, constants.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "pdf", dl.Format)
	assert.NotEmpty(t, dl.URL)

	first, err := f.store.Get(ctx, pdfKey)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	// Re-resolving is side-effect-free: same artifact, byte for byte.
	_, err = f.svc.Resolve(ctx, "user-1", res.ID, constants.FormatPDF)
	require.NoError(t, err)
	second, err := f.store.Get(ctx, pdfKey)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The materialized format is recorded alongside the original.
	after, err := f.repo.Get(ctx, "user-1", res.ID)
	require.NoError(t, err)
	assert.Contains(t, after.Output, "txt")
	assert.Contains(t, after.Output, "pdf")
}

func TestResolveWithoutAnalysisIsNotFound(t *testing.T) {
	f := newFixture(t, &fakeExtractor{}, &fakeGenerator{text: "x"})
	ctx := context.Background()

	// Run that failed before producing analysis text.
	res, err := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelContragarantias,
		FileKeys:     []string{"uploads/u/gone.pdf"},
		OutputFormat: constants.FormatTxt,
	})
	require.Error(t, err)

	_, err = f.svc.Resolve(ctx, "user-1", res.ID, constants.FormatDocx)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestResolveRejectsBadInput(t *testing.T) {
	f := newFixture(t, &fakeExtractor{}, &fakeGenerator{text: "x"})
	ctx := context.Background()

	_, err := f.svc.Resolve(ctx, "user-1", "not-a-uuid", constants.FormatTxt)
	assert.ErrorIs(t, err, common.ErrValidation)

	res, errExec := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelContragarantias,
		FileKeys:     []string{"uploads/u/gone.pdf"},
		OutputFormat: constants.FormatTxt,
	})
	require.Error(t, errExec)
	_, err = f.svc.Resolve(ctx, "user-1", res.ID, "html")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestDeleteSoftKeepsRecord(t *testing.T) {
	f := newFixture(t, okExtractor("uploads/u/a.txt"), &fakeGenerator{text: "informe"})
	ctx := context.Background()

	res, err := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelContragarantias,
		FileKeys:     []string{"uploads/u/a.txt"},
		OutputFormat: constants.FormatTxt,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "user-1", res.ID, false))

	after, err := f.repo.Get(ctx, "user-1", res.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusDeleted, after.Status)

	// Artifacts survive a soft delete.
	exists, err := f.store.Exists(ctx, blob.AnalysisKey(res.ID))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteHardRemovesRecordAndArtifacts(t *testing.T) {
	f := newFixture(t, okExtractor("uploads/u/a.txt"), &fakeGenerator{text: "informe"})
	ctx := context.Background()

	res, err := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelContragarantias,
		FileKeys:     []string{"uploads/u/a.txt"},
		OutputFormat: constants.FormatTxt,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "user-1", res.ID, true))

	_, err = f.repo.Get(ctx, "user-1", res.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	exists, err := f.store.Exists(ctx, blob.AnalysisKey(res.ID))
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = f.store.Exists(ctx, blob.ReportKey(res.ID, "txt"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetStatsTalliesByStatus(t *testing.T) {
	f := newFixture(t, okExtractor("uploads/u/a.txt"), &fakeGenerator{text: "informe"})
	ctx := context.Background()

	okIn := CreateInput{
		OwnerID:      "user-1",
		Model:        constants.ModelContragarantias,
		FileKeys:     []string{"uploads/u/a.txt"},
		OutputFormat: constants.FormatTxt,
	}
	for i := 0; i < 2; i++ {
		_, err := f.svc.Execute(ctx, okIn)
		require.NoError(t, err)
	}
	failIn := okIn
	failIn.FileKeys = []string{"uploads/u/gone.pdf"}
	_, err := f.svc.Execute(ctx, failIn)
	require.Error(t, err)

	stats, err := f.svc.GetStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Processing)
}

func TestExecuteSanitizesOwnerAndFilenames(t *testing.T) {
	f := newFixture(t, okExtractor("uploads/u/a.txt"), &fakeGenerator{text: "informe"})
	ctx := context.Background()

	res, err := f.svc.Execute(ctx, CreateInput{
		OwnerID:      "user<script>@1",
		Model:        constants.ModelContragarantias,
		FileKeys:     []string{"uploads/u/a.txt"},
		FileNames:    []string{"../../etc/passwd"},
		OutputFormat: constants.FormatTxt,
	})
	require.NoError(t, err)
	assert.NotContains(t, res.OwnerID, "<")
	assert.NotContains(t, res.FileNames[0], "..")
}
