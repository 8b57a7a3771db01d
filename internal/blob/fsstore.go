package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aspor-platform/docintake/internal/common"
)

// FSStore keeps blobs under a root directory, one file per key, with a
// sidecar ".ct" file carrying the content type. Signed URLs are JWT tokens
// resolved by the /files endpoint.
type FSStore struct {
	root   string
	signer *URLSigner
	log    *slog.Logger
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root string, signer *URLSigner, logger *slog.Logger) (*FSStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root, signer: signer, log: logger}, nil
}

func (s *FSStore) path(key string) (string, error) {
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", common.ValidationErrorf("invalid object key")
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.NotFoundErrorf("object %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrStorage, key, err)
	}
	return data, nil
}

func (s *FSStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %v", common.ErrStorage, key, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", common.ErrStorage, key, err)
	}
	if contentType != "" {
		if err := os.WriteFile(p+".ct", []byte(contentType), 0o644); err != nil {
			s.log.Warn("blob.put.content_type_sidecar_failed", "key", key, "error", err)
		}
	}
	return nil
}

func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", common.ErrStorage, key, err)
	}
	return true, nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %v", common.ErrStorage, key, err)
	}
	_ = os.Remove(p + ".ct")
	return nil
}

// ContentType returns the stored content type for key, if any.
func (s *FSStore) ContentType(key string) string {
	p, err := s.path(key)
	if err != nil {
		return ""
	}
	ct, err := os.ReadFile(p + ".ct")
	if err != nil {
		return ""
	}
	return string(ct)
}

func (s *FSStore) SignURL(key string, opts SignOptions) (string, error) {
	return s.signer.Sign(key, opts)
}
