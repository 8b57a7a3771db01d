package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aspor-platform/docintake/internal/common"
)

// HTTPClient implements Client against a JSON OCR service.
type HTTPClient struct {
	cfg    common.OCRConfig
	client *http.Client
	log    *slog.Logger
}

func NewHTTPClient(cfg common.OCRConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    logger,
	}
}

func (c *HTTPClient) DetectLines(ctx context.Context, document []byte) ([]string, error) {
	var resp struct {
		Lines []string `json:"lines"`
	}
	err := c.post(ctx, "/v1/detect", map[string]any{
		"document": base64.StdEncoding.EncodeToString(document),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

func (c *HTTPClient) StartJob(ctx context.Context, key string) (string, error) {
	var resp struct {
		JobID string `json:"jobId"`
	}
	err := c.post(ctx, "/v1/jobs", map[string]any{"key": key}, &resp)
	if err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("ocr service returned empty job id")
	}
	return resp.JobID, nil
}

func (c *HTTPClient) GetJob(ctx context.Context, jobID, nextToken string) (*JobResult, error) {
	var resp struct {
		Status    string   `json:"status"`
		Lines     []string `json:"lines"`
		NextToken string   `json:"nextToken"`
	}
	path := "/v1/jobs/" + jobID
	if nextToken != "" {
		path += "?nextToken=" + nextToken
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &JobResult{
		Status:    JobStatus(resp.Status),
		Lines:     resp.Lines,
		NextToken: resp.NextToken,
	}, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.Endpoint, "/")+path, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.Endpoint, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	reqID := uuid.New().String()
	start := time.Now()
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error("ocr.http.send_error", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("ocr.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	c.log.Debug("ocr.http.response",
		"req_id", reqID,
		"url", req.URL.Path,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ocr service status %d: %s", resp.StatusCode, common.Truncate(string(raw), 300))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode ocr response: %w", err)
	}
	return nil
}
