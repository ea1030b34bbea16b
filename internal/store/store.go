// Package store persists run bookkeeping and cached distance matrices.
package store

import (
	"context"
	"time"

	"github.com/sells-group/mosaic/pkg/regional"
)

// RunStatus tracks the lifecycle of a command invocation.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one invocation of a modeling command.
type Run struct {
	ID         string         `json:"id"`
	Command    string         `json:"command"`
	Params     map[string]any `json:"params,omitempty"`
	Status     RunStatus      `json:"status"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface shared by the CLI and server.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, command string, params map[string]any) (*Run, error)
	FinishRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Distance cache
	GetCachedMatrix(ctx context.Context, fingerprint string) (*regional.DistanceMatrix, error)
	SetCachedMatrix(ctx context.Context, fingerprint string, m *regional.DistanceMatrix, ttl time.Duration) error
	DeleteExpiredMatrices(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
