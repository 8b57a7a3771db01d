package entity

import (
	"time"

	"github.com/aspor-platform/docintake/constants"
)

// Run is the unit of work: one analysis over 1..3 uploaded documents.
type Run struct {
	ID      string `json:"runId"`
	OwnerID string `json:"userId"`

	Model        constants.ModelType    `json:"model"`
	FileKeys     []string               `json:"files"`
	FileNames    []string               `json:"fileNames"`
	OutputFormat constants.OutputFormat `json:"outputFormat"`

	Status    constants.RunStatus `json:"status"`
	StartedAt time.Time           `json:"startedAt"`
	EndedAt   *time.Time          `json:"endedAt,omitempty"`

	// Output maps format name -> object store key. Non-empty only once the
	// run is COMPLETED.
	Output map[string]string `json:"output,omitempty"`

	// Preview carries the first N characters of the analysis text.
	Preview string `json:"preview,omitempty"`

	// ErrorDetail is set only on FAILED, already redacted for clients.
	ErrorDetail string `json:"error,omitempty"`

	// Stage progress, observability only.
	ExtractionStatus constants.StageStatus `json:"extractionStatus,omitempty"`
	ExtractionMethod string                `json:"extractionMethod,omitempty"`
	ExtractedChars   int                   `json:"extractedChars,omitempty"`
	AnalysisStatus   constants.StageStatus `json:"analysisStatus,omitempty"`
	AnalysisDegraded bool                  `json:"analysisDegraded,omitempty"`

	// DownloadURL is re-signed on every read, never persisted.
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// RunPatch is a sparse update applied to an existing run record. Nil fields
// are left untouched, so concurrent progress writes never clobber each other.
type RunPatch struct {
	Status           *constants.RunStatus
	EndedAt          *time.Time
	Output           map[string]string
	Preview          *string
	ErrorDetail      *string
	ExtractionStatus *constants.StageStatus
	ExtractionMethod *string
	ExtractedChars   *int
	AnalysisStatus   *constants.StageStatus
	AnalysisDegraded *bool
}

// Page is an opaque-cursor page of runs, most recent first.
type Page struct {
	Runs       []*Run
	NextCursor string
	HasMore    bool
}
