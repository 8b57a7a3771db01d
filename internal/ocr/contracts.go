// Package ocr wraps the external OCR service: synchronous detection for
// single images, asynchronous job submit/poll for multi-page documents.
package ocr

import "context"

// JobStatus values reported by the OCR service.
type JobStatus string

const (
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusSucceeded  JobStatus = "SUCCEEDED"
	JobStatusFailed     JobStatus = "FAILED"
)

// JobResult is one page of an async job's line blocks.
type JobResult struct {
	Status JobStatus
	Lines  []string
	// NextToken pages through results once the job succeeded; empty when
	// this is the last page.
	NextToken string
}

// Client is the OCR service port.
type Client interface {
	// DetectLines runs synchronous OCR on a single image.
	DetectLines(ctx context.Context, document []byte) ([]string, error)

	// StartJob submits an async job over a stored document and returns the
	// job ID.
	StartJob(ctx context.Context, key string) (string, error)

	// GetJob fetches job status plus one page of results.
	GetJob(ctx context.Context, jobID, nextToken string) (*JobResult, error)
}
