package mixer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"eventmix/internal/selection"
	"eventmix/pkg/genevent"
)

// ProgressInterval is the number of merged events between progress lines.
const ProgressInterval = 100

// Source yields events in stream order. Read returns io.EOF at end of stream.
type Source interface {
	Read() (*genevent.Event, error)
}

// Sink consumes merged events.
type Sink interface {
	Write(*genevent.Event) error
}

// Recorder observes the merge loop. Implementations must tolerate being
// called once per source read and once per merged event.
type Recorder interface {
	SourceRead(source int)
	Merged(particles, vertices int)
}

// StopReason explains why a mixing run ended.
type StopReason string

const (
	StopLimit      StopReason = "limit"
	StopEndOfInput StopReason = "end_of_input"
	StopReadError  StopReason = "read_error"
)

// MixSummary is the result of a mixing run.
type MixSummary struct {
	Merged     int
	Sources    int
	Counts     selection.Counts
	StopReason StopReason
	// StopSource is the index of the source that ended the run, or -1.
	StopSource int
}

// Runner drives position-synchronized merging: the i-th event of every
// source is combined into output event i.
type Runner struct {
	Merger   Merger
	Limit    int
	Logger   *slog.Logger
	Recorder Recorder
	Progress io.Writer
}

// Run reads one event from every source per iteration until the limit is
// reached or any source stops yielding. A partially read row is discarded.
// Only write failures are returned as errors.
func (r Runner) Run(sources []Source, sink Sink) (MixSummary, error) {
	sum := MixSummary{Sources: len(sources), StopSource: -1}
	if len(sources) == 0 {
		return sum, errors.New("mixer: no sources")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	warned := false
	row := make([]*genevent.Event, len(sources))
	for r.Limit <= 0 || sum.Merged < r.Limit {
		stopped := false
		for i, src := range sources {
			ev, err := src.Read()
			if err != nil {
				sum.StopSource = i
				if errors.Is(err, io.EOF) {
					sum.StopReason = StopEndOfInput
				} else {
					sum.StopReason = StopReadError
					logger.Warn("source read failed", "source", i, "error", err)
				}
				stopped = true
				break
			}
			if r.Recorder != nil {
				r.Recorder.SourceRead(i)
			}
			if !warned && ev != nil && !r.Merger.Fits(ev) {
				logger.Warn("event id span exceeds barcode step", "source", i, "span", ev.IDSpan(), "step", r.Merger.Step())
				warned = true
			}
			row[i] = ev
		}
		if stopped {
			break
		}
		merged := r.Merger.Merge(row, sum.Merged)
		if err := sink.Write(merged); err != nil {
			return sum, fmt.Errorf("write merged event %d: %w", sum.Merged, err)
		}
		sum.Counts.Add(selection.CountSpecies(merged, false))
		if r.Recorder != nil {
			r.Recorder.Merged(merged.NumParticles(), merged.NumVertices())
		}
		sum.Merged++
		if r.Progress != nil && sum.Merged%ProgressInterval == 0 {
			fmt.Fprintf(r.Progress, "Merged %d events...\n", sum.Merged)
		}
	}
	if sum.StopReason == "" {
		sum.StopReason = StopLimit
	}
	logger.Info("mixing finished", "merged", sum.Merged, "stop_reason", string(sum.StopReason))
	return sum, nil
}
