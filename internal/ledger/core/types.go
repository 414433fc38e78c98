// Package core defines run records and the ledger store contract.
// Backends live under internal/infra/persistence.
package core

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
)

// RunRecord describes one invocation of a command-line tool.
type RunRecord struct {
	ID         string             `json:"id"`
	Command    string             `json:"command"`
	Mode       string             `json:"mode,omitempty"`
	Inputs     []string           `json:"inputs"`
	Output     string             `json:"output"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at,omitzero"`
	Status     Status             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Counters   map[string]float64 `json:"counters,omitempty"`
}

// Clone returns a deep copy.
func (r RunRecord) Clone() RunRecord {
	r.Inputs = append([]string(nil), r.Inputs...)
	if r.Counters != nil {
		c := make(map[string]float64, len(r.Counters))
		for k, v := range r.Counters {
			c[k] = v
		}
		r.Counters = c
	}
	return r
}

// Store persists run records. Save upserts by ID; List is newest first.
type Store interface {
	Save(ctx context.Context, rec RunRecord) error
	Get(ctx context.Context, id string) (RunRecord, error)
	List(ctx context.Context) ([]RunRecord, error)
	Close() error
}

var (
	// ErrNotFound is wrapped by Get for unknown ids.
	ErrNotFound = errors.New("ledger: run not found")
	// ErrInvalid is returned for records without an id.
	ErrInvalid = errors.New("ledger: invalid run record")
)

// Validate checks the fields every backend relies on.
func (r RunRecord) Validate() error {
	if r.ID == "" {
		return ErrInvalid
	}
	return nil
}

// SortNewestFirst orders records by start time, newest first, then by id.
func SortNewestFirst(recs []RunRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].StartedAt.Equal(recs[j].StartedAt) {
			return recs[i].StartedAt.After(recs[j].StartedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
