// Package store keeps run history and cached external similarity scores in
// an optional SQLite state file.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Run is one completed dedupe run. Report holds the full run report as JSON.
type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	State      string          `json:"state"`
	Inputs     int             `json:"inputs"`
	Records    int             `json:"records"`
	Merges     int             `json:"merges"`
	DryRun     bool            `json:"dry_run"`
	Report     json.RawMessage `json:"report,omitempty"`
}

// PairDecision is the outcome recorded for one reviewed pair.
type PairDecision struct {
	RunID          string  `json:"run_id"`
	UIDA           string  `json:"uid_a"`
	UIDB           string  `json:"uid_b"`
	Score          float64 `json:"score"`
	Classification string  `json:"classification"`
	Outcome        string  `json:"outcome"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Since time.Time
	Limit int
}

// Store persists run history and the external score cache.
type Store interface {
	// SaveRun writes a run and its pair decisions in one transaction.
	SaveRun(ctx context.Context, run Run, decisions []PairDecision) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	ListDecisions(ctx context.Context, runID string) ([]PairDecision, error)

	// Score cache. A miss is (0, false, nil).
	GetCachedScore(ctx context.Context, backend, key string) (float64, bool, error)
	SetCachedScore(ctx context.Context, backend, key string, score float64, ttl time.Duration) error
	DeleteExpiredScores(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}
