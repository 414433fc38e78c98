package shower

import (
	"context"
	"errors"
	"fmt"

	"eventmix/internal/selection"
	"eventmix/pkg/genevent"
)

// DefaultMaxRetry is the per-event finalization budget.
const DefaultMaxRetry = 1000

// Phase is a step of the per-event retry state machine.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseGenerated
	PhaseSnapshot
	PhaseFinalizeAttempt
	PhaseEvaluate
	PhaseAccepted
	PhaseExhausted
)

var phaseNames = [...]string{
	PhaseInit:            "init",
	PhaseGenerated:       "generated",
	PhaseSnapshot:        "snapshot",
	PhaseFinalizeAttempt: "finalize_attempt",
	PhaseEvaluate:        "evaluate",
	PhaseAccepted:        "accepted",
	PhaseExhausted:       "exhausted",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Terminal reports whether p ends the per-event loop.
func (p Phase) Terminal() bool { return p == PhaseAccepted || p == PhaseExhausted }

// Outcome is the result of processing one generated state.
type Outcome struct {
	Phase            Phase
	Attempts         int
	FinalizeFailures int
	// Event is the accepted finalized event; nil when exhausted.
	Event *genevent.Event
	// Err is set when the context ended the loop; Phase is then not terminal.
	Err error
}

// Retrier finalizes one state at a time against an acceptance predicate.
type Retrier struct {
	engine   Engine
	accept   selection.Predicate
	maxRetry int

	// OnTransition, when set, is called on every phase change.
	OnTransition func(from, to Phase)
}

// NewRetrier validates its arguments and returns a Retrier.
func NewRetrier(engine Engine, accept selection.Predicate, maxRetry int) (*Retrier, error) {
	if engine == nil {
		return nil, errors.New("shower: nil engine")
	}
	if accept == nil {
		return nil, errors.New("shower: nil acceptance predicate")
	}
	if maxRetry <= 0 {
		return nil, fmt.Errorf("shower: max retry must be positive, got %d", maxRetry)
	}
	return &Retrier{engine: engine, accept: accept, maxRetry: maxRetry}, nil
}

// MaxRetry returns the per-event attempt budget.
func (r *Retrier) MaxRetry() int { return r.maxRetry }

// Process captures st and runs up to MaxRetry finalization attempts, each on
// a fresh restore of the snapshot. The first accepted event ends the loop.
// A cancelled context stops it before the next attempt with Outcome.Err set.
func (r *Retrier) Process(ctx context.Context, st State) Outcome {
	out := Outcome{Phase: PhaseInit}
	r.move(&out, PhaseGenerated)
	snap := r.engine.Snapshot(st)
	r.move(&out, PhaseSnapshot)
	for out.Attempts < r.maxRetry {
		if err := ctx.Err(); err != nil {
			out.Err = err
			return out
		}
		attempt := r.engine.Restore(snap)
		r.move(&out, PhaseFinalizeAttempt)
		out.Attempts++
		ev, err := r.engine.Finalize(ctx, attempt)
		if err != nil || ev == nil {
			out.FinalizeFailures++
			r.move(&out, PhaseSnapshot)
			continue
		}
		r.move(&out, PhaseEvaluate)
		if r.accept.Accept(ev) {
			out.Event = ev
			r.move(&out, PhaseAccepted)
			return out
		}
		r.move(&out, PhaseSnapshot)
	}
	r.move(&out, PhaseExhausted)
	return out
}

func (r *Retrier) move(out *Outcome, to Phase) {
	from := out.Phase
	out.Phase = to
	if r.OnTransition != nil {
		r.OnTransition(from, to)
	}
}
