package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Poller drives an async OCR job to completion with bounded waiting.
type Poller struct {
	Client   Client
	Interval time.Duration
	MaxWait  time.Duration
	MaxChars int
	Logger   *slog.Logger
}

// Collect submits a job for key, polls until it finishes, and concatenates
// all returned line blocks across result pages. Cancellation is checked at
// every poll iteration; total output is capped at MaxChars.
func (p *Poller) Collect(ctx context.Context, key string) (string, int, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	maxWait := p.MaxWait
	if maxWait <= 0 {
		maxWait = 60 * time.Second
	}

	jobID, err := p.Client.StartJob(ctx, key)
	if err != nil {
		return "", 0, fmt.Errorf("start ocr job: %w", err)
	}
	logger.Info("ocr.job.started", "key", key, "job_id", jobID)

	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := p.Client.GetJob(ctx, jobID, "")
		if err != nil {
			return "", 0, fmt.Errorf("poll ocr job %s: %w", jobID, err)
		}
		switch result.Status {
		case JobStatusSucceeded:
			return p.collectPages(ctx, jobID, result)
		case JobStatusFailed:
			return "", 0, fmt.Errorf("ocr job %s failed", jobID)
		}

		if time.Now().After(deadline) {
			return "", 0, fmt.Errorf("ocr job %s timed out after %s", jobID, maxWait)
		}
		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

// collectPages walks the paginated results of a finished job.
func (p *Poller) collectPages(ctx context.Context, jobID string, first *JobResult) (string, int, error) {
	var b strings.Builder
	pages := 0
	result := first
	for {
		pages++
		for _, line := range result.Lines {
			if p.MaxChars > 0 && b.Len()+len(line)+1 > p.MaxChars {
				return b.String(), pages, nil
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if result.NextToken == "" {
			return b.String(), pages, nil
		}
		if ctx.Err() != nil {
			return b.String(), pages, ctx.Err()
		}
		next, err := p.Client.GetJob(ctx, jobID, result.NextToken)
		if err != nil {
			return b.String(), pages, fmt.Errorf("fetch ocr result page: %w", err)
		}
		result = next
	}
}
