package shower

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"eventmix/internal/selection"
	"eventmix/pkg/genevent"
)

const (
	// DefaultMaxAbort is the number of generation failures tolerated per run.
	DefaultMaxAbort = 10
	// ProgressInterval is the number of pulled events between progress lines.
	ProgressInterval = 100
)

// ErrGenerationAborted is returned when generation failures reach the
// configured abort limit.
var ErrGenerationAborted = errors.New("event generation aborted prematurely")

// Sink consumes accepted events.
type Sink interface {
	Write(*genevent.Event) error
}

// Recorder observes the run. Result is one of "accepted", "rejected" or
// "failed"; phase is the terminal phase name.
type Recorder interface {
	Pulled()
	Attempts(result string, n int)
	Outcome(phase string)
	GenerationFailure()
	Efficiency(percent float64)
}

// Stats accumulates per-run counters.
type Stats struct {
	Pulled             int              `json:"pulled"`
	Accepted           int              `json:"accepted"`
	Exhausted          int              `json:"exhausted"`
	Attempts           int              `json:"attempts"`
	FinalizeFailures   int              `json:"finalize_failures"`
	GenerationFailures int              `json:"generation_failures"`
	Counts             selection.Counts `json:"counts"`
}

// Efficiency is the accepted share of pulled events in percent.
func (s Stats) Efficiency() float64 {
	if s.Pulled == 0 {
		return 0
	}
	return 100 * float64(s.Accepted) / float64(s.Pulled)
}

// MeanAttempts is the average number of finalization attempts per pulled event.
func (s Stats) MeanAttempts() float64 {
	if s.Pulled == 0 {
		return 0
	}
	return float64(s.Attempts) / float64(s.Pulled)
}

// Runner pulls states from the engine and feeds them through the Retrier.
type Runner struct {
	Engine   Engine
	Retrier  *Retrier
	Sink     Sink
	Limit    int
	MaxAbort int
	Logger   *slog.Logger
	Recorder Recorder
	Progress io.Writer
}

// Run processes states until end of stream or Limit pulled events. It
// returns ErrGenerationAborted once MaxAbort generation failures have
// accumulated, and a wrapped error on sink failure or context cancellation.
// Stats are valid in every case.
func (r Runner) Run(ctx context.Context) (Stats, error) {
	var st Stats
	if r.Engine == nil || r.Retrier == nil || r.Sink == nil {
		return st, errors.New("shower: runner needs an engine, a retrier and a sink")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxAbort := r.MaxAbort
	if maxAbort <= 0 {
		maxAbort = DefaultMaxAbort
	}
	for r.Limit <= 0 || st.Pulled < r.Limit {
		if err := ctx.Err(); err != nil {
			return st, fmt.Errorf("shower run interrupted: %w", err)
		}
		state, err := r.Engine.Generate(ctx)
		if errors.Is(err, io.EOF) {
			logger.Info("reached end of input", "pulled", st.Pulled)
			break
		}
		if err != nil {
			st.GenerationFailures++
			if r.Recorder != nil {
				r.Recorder.GenerationFailure()
			}
			logger.Warn("generation failed", "failures", st.GenerationFailures, "max_abort", maxAbort, "error", err)
			if st.GenerationFailures >= maxAbort {
				return st, fmt.Errorf("%w after %d failures: %v", ErrGenerationAborted, st.GenerationFailures, err)
			}
			continue
		}

		out := r.Retrier.Process(ctx, state)
		if out.Err != nil {
			return st, fmt.Errorf("shower run interrupted: %w", out.Err)
		}
		st.Pulled++
		st.Attempts += out.Attempts
		st.FinalizeFailures += out.FinalizeFailures
		r.observe(out)
		switch out.Phase {
		case PhaseAccepted:
			st.Accepted++
			st.Counts.Add(selection.CountSpecies(out.Event, true))
			if err := r.Sink.Write(out.Event); err != nil {
				return st, fmt.Errorf("write event %d: %w", st.Pulled, err)
			}
		default:
			st.Exhausted++
			logger.Debug("event exhausted retry budget", "event", st.Pulled, "attempts", out.Attempts)
		}
		if r.Progress != nil && st.Pulled%ProgressInterval == 0 {
			fmt.Fprintf(r.Progress, "Processed %d events, efficiency: %.2f%%, avg retries: %.2f\n",
				st.Pulled, st.Efficiency(), st.MeanAttempts())
		}
	}
	if r.Recorder != nil {
		r.Recorder.Efficiency(st.Efficiency())
	}
	return st, nil
}

func (r Runner) observe(out Outcome) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.Pulled()
	rejected := out.Attempts - out.FinalizeFailures
	if out.Phase == PhaseAccepted {
		rejected--
		r.Recorder.Attempts("accepted", 1)
	}
	r.Recorder.Attempts("rejected", rejected)
	r.Recorder.Attempts("failed", out.FinalizeFailures)
	r.Recorder.Outcome(out.Phase.String())
}
