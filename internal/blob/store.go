// Package blob is the object-store port: content-addressable binary storage
// with existence checks and time-limited signed URLs.
package blob

import (
	"context"
	"fmt"
	"time"
)

// Method restricts what a signed URL permits.
type Method string

const (
	MethodGet Method = "GET"
	MethodPut Method = "PUT"
)

// SignOptions shape the issued URL.
type SignOptions struct {
	Method      Method
	TTL         time.Duration
	ContentType string
	// Filename sets the content-disposition attachment name on GET.
	Filename string
}

// Store is the object-store capability consumed by the pipeline.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error

	// SignURL returns a time-limited URL granting access to key.
	SignURL(key string, opts SignOptions) (string, error)
}

// AnalysisKey is the canonical key for the raw analysis text of a run. It is
// the source of truth for lazy re-encoding into other formats.
func AnalysisKey(runID string) string {
	return fmt.Sprintf("outputs/%s/analysis.txt", runID)
}

// ReportKey is the canonical key for a rendered report artifact.
func ReportKey(runID, format string) string {
	return fmt.Sprintf("outputs/%s/report.%s", runID, format)
}

// UploadKey is where client documents land before a run references them.
func UploadKey(ownerID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s", ownerID, filename)
}
