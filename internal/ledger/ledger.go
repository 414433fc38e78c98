// Package ledger records command runs. Open picks a backend from the
// environment; Start and Finish bracket one run.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"eventmix/internal/config"
	"eventmix/internal/infra/persistence/memory"
	"eventmix/internal/infra/persistence/postgres"
	"eventmix/internal/infra/persistence/sqlite"
	"eventmix/internal/ledger/core"
)

type (
	RunRecord = core.RunRecord
	Store     = core.Store
	Status    = core.Status
)

const (
	StatusRunning   = core.StatusRunning
	StatusCompleted = core.StatusCompleted
	StatusAborted   = core.StatusAborted
	StatusFailed    = core.StatusFailed
)

var ErrNotFound = core.ErrNotFound

// Driver identifies a ledger backend.
type Driver string

const (
	DriverNone     Driver = "none"
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// EnvPrefix namespaces the ledger settings.
const EnvPrefix = config.Prefix + "LEDGER_"

// Settings selects a backend.
//
//	EVENTMIX_LEDGER_DRIVER        none|memory|sqlite|postgres (default none)
//	EVENTMIX_LEDGER_SQLITE_PATH   database file (default ./eventmix.db)
//	EVENTMIX_LEDGER_POSTGRES_DSN  connection string
type Settings struct {
	Driver      string `env:"DRIVER" envDefault:"none"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"eventmix.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`
}

// Open returns the configured store, or nil when the ledger is disabled.
func Open(ctx context.Context) (Store, error) {
	var s Settings
	if err := config.ParseEnvPrefixed(&s, EnvPrefix); err != nil {
		return nil, err
	}
	return OpenWith(ctx, s)
}

// OpenWith returns the store described by s, or nil for DriverNone.
func OpenWith(ctx context.Context, s Settings) (Store, error) {
	switch Driver(s.Driver) {
	case DriverNone, "":
		return nil, nil
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		st, err := sqlite.NewStore(ctx, s.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case DriverPostgres:
		st, err := postgres.NewStore(ctx, s.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", s.Driver)
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// Run tracks one in-flight record. A Run over a nil store only carries the
// id, so callers need not branch on whether the ledger is enabled.
type Run struct {
	store Store
	rec   RunRecord
	now   func() time.Time
}

// Start saves a running record and returns its tracker.
func Start(ctx context.Context, store Store, command, mode string, inputs []string, output string) (*Run, error) {
	r := &Run{store: store, now: time.Now}
	r.rec = RunRecord{
		ID:        NewRunID(),
		Command:   command,
		Mode:      mode,
		Inputs:    append([]string(nil), inputs...),
		Output:    output,
		StartedAt: r.now().UTC(),
		Status:    StatusRunning,
	}
	if store == nil {
		return r, nil
	}
	if err := store.Save(ctx, r.rec); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}
	return r, nil
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.rec.ID }

// Record returns a copy of the current record.
func (r *Run) Record() RunRecord { return r.rec.Clone() }

// Finish stores the terminal status, counters and error text.
func (r *Run) Finish(ctx context.Context, status Status, counters map[string]float64, runErr error) error {
	r.rec.Status = status
	r.rec.FinishedAt = r.now().UTC()
	r.rec.Counters = counters
	if runErr != nil {
		r.rec.Error = runErr.Error()
	}
	if r.store == nil {
		return nil
	}
	if err := r.store.Save(ctx, r.rec); err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}
