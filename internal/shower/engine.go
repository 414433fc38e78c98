package shower

import (
	"context"

	"eventmix/pkg/genevent"
)

// Engine is the simulation engine contract. A single instance is owned by
// the caller and passed explicitly to the Retrier and Runner.
//
// Generate returns io.EOF at end of stream; any other error is a transient
// generation failure. Finalize may fail for one attempt without affecting
// later attempts.
type Engine interface {
	Generate(ctx context.Context) (State, error)
	Snapshot(s State) Snapshot
	Restore(snap Snapshot) State
	Finalize(ctx context.Context, s State) (*genevent.Event, error)
}
