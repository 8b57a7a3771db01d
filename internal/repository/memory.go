package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/entity"
)

// MemoryRepository is an in-memory RunRepository used in tests and for
// throwaway local runs. Safe for concurrent use.
type MemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*entity.Run // key: ownerID + "/" + runID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{runs: make(map[string]*entity.Run)}
}

func memKey(ownerID, runID string) string { return ownerID + "/" + runID }

func (r *MemoryRepository) Create(_ context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memKey(run.OwnerID, run.ID)
	if _, exists := r.runs[key]; exists {
		return common.ValidationErrorf("run %s already exists", run.ID)
	}
	cp := *run
	r.runs[key] = &cp
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, ownerID, runID string) (*entity.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[memKey(ownerID, runID)]
	if !ok {
		return nil, common.NotFoundErrorf("run %s", runID)
	}
	cp := *run
	return &cp, nil
}

func (r *MemoryRepository) List(_ context.Context, ownerID string, limit int, cursorToken string) (*entity.Page, error) {
	limit = clampLimit(limit)

	r.mu.RLock()
	var runs []*entity.Run
	for _, run := range r.runs {
		if run.OwnerID == ownerID {
			cp := *run
			runs = append(runs, &cp)
		}
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID > runs[j].ID
	})

	if cursorToken != "" {
		c, err := decodeCursor(cursorToken)
		if err != nil {
			return nil, common.ValidationErrorf("invalid cursor")
		}
		filtered := runs[:0]
		for _, run := range runs {
			if run.StartedAt.Before(c.StartedAt) ||
				(run.StartedAt.Equal(c.StartedAt) && run.ID < c.RunID) {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}
	return buildPage(runs, limit), nil
}

func (r *MemoryRepository) Patch(_ context.Context, ownerID, runID string, patch entity.RunPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[memKey(ownerID, runID)]
	if !ok {
		return common.NotFoundErrorf("run %s", runID)
	}
	if patch.Status != nil {
		run.Status = *patch.Status
	}
	if patch.EndedAt != nil {
		t := *patch.EndedAt
		run.EndedAt = &t
	}
	if patch.Output != nil {
		run.Output = patch.Output
	}
	if patch.Preview != nil {
		run.Preview = *patch.Preview
	}
	if patch.ErrorDetail != nil {
		run.ErrorDetail = *patch.ErrorDetail
	}
	if patch.ExtractionStatus != nil {
		run.ExtractionStatus = *patch.ExtractionStatus
	}
	if patch.ExtractionMethod != nil {
		run.ExtractionMethod = *patch.ExtractionMethod
	}
	if patch.ExtractedChars != nil {
		run.ExtractedChars = *patch.ExtractedChars
	}
	if patch.AnalysisStatus != nil {
		run.AnalysisStatus = *patch.AnalysisStatus
	}
	if patch.AnalysisDegraded != nil {
		run.AnalysisDegraded = *patch.AnalysisDegraded
	}
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, ownerID, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memKey(ownerID, runID)
	if _, ok := r.runs[key]; !ok {
		return common.NotFoundErrorf("run %s", runID)
	}
	delete(r.runs, key)
	return nil
}
