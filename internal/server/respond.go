package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aspor-platform/docintake/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := errorResponse{Error: common.SafeErrorMessage(err, s.cfg.Production)}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
	}
	writeJSON(w, common.HTTPStatus(err), body)
}
