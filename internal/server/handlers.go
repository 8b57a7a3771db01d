package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/entity"
	"github.com/aspor-platform/docintake/internal/run"
)

type createRunRequest struct {
	UserID       string   `json:"userId"`
	Model        string   `json:"model" validate:"required,oneof=A B"`
	Files        []string `json:"files" validate:"required,min=1,max=3,dive,required"`
	FileNames    []string `json:"fileNames"`
	OutputFormat string   `json:"outputFormat" validate:"omitempty,oneof=docx pdf txt"`
}

type createRunResponse struct {
	RunID        string `json:"runId"`
	Status       string `json:"status"`
	OutputFormat string `json:"outputFormat"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
	Preview      string `json:"preview,omitempty"`
	Message      string `json:"message"`
	Error        string `json:"error,omitempty"`
}

// handleCreateRun runs the whole pipeline synchronously. A pipeline failure
// after the record exists still returns the run ID so clients can inspect it.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, common.ValidationErrorf("invalid JSON body: %v", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, common.ValidationErrorf("%s", validationDetail(err)))
		return
	}
	format := constants.OutputFormat(req.OutputFormat)
	if req.OutputFormat == "" {
		format = constants.FormatDocx
	}

	res, err := s.runs.Execute(r.Context(), run.CreateInput{
		OwnerID:      req.UserID,
		Model:        constants.ModelType(req.Model),
		FileKeys:     req.Files,
		FileNames:    req.FileNames,
		OutputFormat: format,
	})
	if err != nil {
		if res == nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, common.HTTPStatus(err), createRunResponse{
			RunID:        res.ID,
			Status:       string(res.Status),
			OutputFormat: string(res.OutputFormat),
			Message:      "Run failed",
			Error:        common.SafeErrorMessage(err, s.cfg.Production),
		})
		return
	}

	writeJSON(w, http.StatusOK, createRunResponse{
		RunID:        res.ID,
		Status:       string(res.Status),
		OutputFormat: string(res.OutputFormat),
		DownloadURL:  res.DownloadURL,
		Preview:      res.Preview,
		Message:      "Run completed",
	})
}

type listRunsResponse struct {
	Runs    []*entity.Run `json:"runs"`
	Count   int           `json:"count"`
	HasMore bool          `json:"hasMore"`
	Cursor  string        `json:"cursor,omitempty"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, common.ValidationErrorf("limit must be a positive integer"))
			return
		}
		limit = n
	}

	page, err := s.runs.List(r.Context(), q.Get("userId"), limit, q.Get("cursor"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:    page.Runs,
		Count:   len(page.Runs),
		HasMore: page.HasMore,
		Cursor:  page.NextCursor,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.runs.Get(r.Context(), r.URL.Query().Get("userId"), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hard := q.Get("hard") == "true" || q.Get("hardDelete") == "true"
	runID := chi.URLParam(r, "runID")
	if err := s.runs.Delete(r.Context(), q.Get("userId"), runID, hard); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runId":   runID,
		"deleted": true,
		"hard":    hard,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	format := constants.NormalizeExt(chi.URLParam(r, "format"))
	dl, err := s.runs.Resolve(r.Context(),
		r.URL.Query().Get("userId"),
		chi.URLParam(r, "runID"),
		constants.OutputFormat(format),
	)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dl)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.runs.GetStats(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExportRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxRows := 0
	if raw := q.Get("maxRows"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, common.ValidationErrorf("maxRows must be a positive integer"))
			return
		}
		maxRows = n
	}
	data, err := s.exporter.ExportRunsXLSX(r.Context(), q.Get("userId"), maxRows)
	if err != nil {
		s.writeError(w, err)
		return
	}
	name := fmt.Sprintf("runs_%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// validationDetail flattens validator errors into one client-facing line.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	detail := ""
	for i, fe := range verrs {
		if i > 0 {
			detail += "; "
		}
		detail += fmt.Sprintf("field %s failed %s", fe.Field(), fe.Tag())
	}
	return detail
}
