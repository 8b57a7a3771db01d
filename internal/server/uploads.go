package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/blob"
	"github.com/aspor-platform/docintake/internal/common"
)

type presignUploadRequest struct {
	UserID   string `json:"userId"`
	Filename string `json:"filename" validate:"required,max=255"`
}

type presignUploadResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	ExpiresIn int    `json:"expiresIn"`
}

// handlePresignUpload issues a time-limited PUT URL for a client document.
// The object key embeds a fresh UUID so concurrent uploads of the same
// filename never collide.
func (s *Server) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	var req presignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, common.ValidationErrorf("invalid JSON body: %v", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, common.ValidationErrorf("%s", validationDetail(err)))
		return
	}

	name := common.SanitizeFilename(req.Filename)
	ext := constants.NormalizeExt(filepath.Ext(name))
	if _, ok := constants.AllowedUploadExtensions[ext]; !ok {
		s.writeError(w, common.ValidationErrorf("file type .%s not allowed", ext))
		return
	}

	owner := common.SanitizeUserID(req.UserID)
	key := blob.UploadKey(owner, uuid.New().String()+"_"+name)
	contentType := mime.TypeByExtension("." + ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadURL, err := s.signer.Sign(key, blob.SignOptions{
		Method:      blob.MethodPut,
		TTL:         s.cfg.Blob.UploadTTL,
		ContentType: contentType,
		Filename:    name,
	})
	if err != nil {
		s.writeError(w, common.WrapError(err, "presign upload"))
		return
	}
	s.log.Info("upload.presigned", "owner_id", owner, "key", key)
	writeJSON(w, http.StatusOK, presignUploadResponse{
		Key:       key,
		UploadURL: uploadURL,
		ExpiresIn: int(s.cfg.Blob.UploadTTL.Seconds()),
	})
}

// handleFilePut accepts an upload against a signed PUT token.
func (s *Server) handleFilePut(w http.ResponseWriter, r *http.Request) {
	grant, err := s.signer.Verify(chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if grant.Method != blob.MethodPut {
		s.writeError(w, common.NotFoundErrorf("link expired or invalid"))
		return
	}

	maxBytes := s.cfg.Blob.MaxFileSizeMB * 1024 * 1024
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		s.writeError(w, common.ValidationErrorf("body exceeds %dMB limit", s.cfg.Blob.MaxFileSizeMB))
		return
	}
	if err := s.store.Put(r.Context(), grant.Key, body, grant.ContentType); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("upload.stored", "key", grant.Key, "bytes", len(body))
	writeJSON(w, http.StatusOK, map[string]string{"key": grant.Key})
}

// handleFileGet serves a stored object against a signed GET token.
func (s *Server) handleFileGet(w http.ResponseWriter, r *http.Request) {
	grant, err := s.signer.Verify(chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if grant.Method != blob.MethodGet {
		s.writeError(w, common.NotFoundErrorf("link expired or invalid"))
		return
	}

	data, err := s.store.Get(r.Context(), grant.Key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	contentType := grant.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if grant.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", grant.Filename))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
