// Package repository persists run records. The store is deliberately narrow:
// primary-key lookup, reverse-chronological range scan per owner, and sparse
// partial updates. Implementations exist for SQLite (default, embedded) and
// Postgres.
package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/aspor-platform/docintake/internal/entity"
)

// MaxPageSize caps list-runs page sizes.
const MaxPageSize = 100

// RunRepository is the record-store port for run lifecycle state.
type RunRepository interface {
	// Create writes a new run record. (ownerID, runID) must be unique.
	Create(ctx context.Context, run *entity.Run) error

	// Get returns the run for (ownerID, runID) or common.ErrNotFound.
	Get(ctx context.Context, ownerID, runID string) (*entity.Run, error)

	// List pages an owner's runs, most recent first. cursor is an opaque
	// token from a previous page; empty means start from the top.
	List(ctx context.Context, ownerID string, limit int, cursor string) (*entity.Page, error)

	// Patch applies a sparse update to the run. Nil patch fields are left
	// untouched.
	Patch(ctx context.Context, ownerID, runID string, patch entity.RunPatch) error

	// Delete removes the record entirely (hard delete).
	Delete(ctx context.Context, ownerID, runID string) error
}

// cursor encodes the sort position of the last item on a page.
type cursor struct {
	StartedAt time.Time
	RunID     string
}

func encodeCursor(c cursor) string {
	raw := c.StartedAt.UTC().Format(time.RFC3339Nano) + "|" + c.RunID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return cursor{}, fmt.Errorf("malformed cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return cursor{}, fmt.Errorf("malformed cursor timestamp: %w", err)
	}
	return cursor{StartedAt: ts, RunID: parts[1]}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
