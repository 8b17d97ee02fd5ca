// Package store persists resolved extraction results.
package store

import (
	"context"
	"errors"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"
)

var (
	// ErrNotFound is returned when a run has no stored result.
	ErrNotFound = errors.New("extraction run not found")
	// ErrRunBusy is returned when another worker holds the run's lease.
	ErrRunBusy = errors.New("run is leased by another worker")
)

// Run status values.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ResultStorage saves and loads one resolved result per extraction run.
// Saving the same run twice replaces its rows; entity and relationship
// ids are deterministic, so a retried run converges to the same state.
type ResultStorage interface {
	SaveResult(ctx context.Context, runID string, result *extraction.Result) error
	LoadResult(ctx context.Context, runID string) (*extraction.Result, error)
	MarkFailed(ctx context.Context, runID string, reason string) error
}

// RunLocker serializes work on one run across workers.
type RunLocker interface {
	WithRunLease(ctx context.Context, runID string, fn func(ctx context.Context) error) error
}

// ChunkRange calls fn for consecutive [start, end) windows of at most
// chunkSize items.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}
