package shower

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"eventmix/pkg/genevent"
)

type memSink struct {
	events []*genevent.Event
	err    error
}

func (s *memSink) Write(ev *genevent.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

type tally struct {
	pulled, genFail int
	attempts        map[string]int
	outcomes        map[string]int
	efficiency      float64
}

func (c *tally) Pulled() { c.pulled++ }
func (c *tally) Attempts(result string, n int) {
	if c.attempts == nil {
		c.attempts = map[string]int{}
	}
	c.attempts[result] += n
}
func (c *tally) Outcome(phase string) {
	if c.outcomes == nil {
		c.outcomes = map[string]int{}
	}
	c.outcomes[phase]++
}
func (c *tally) GenerationFailure()   { c.genFail++ }
func (c *tally) Efficiency(p float64) { c.efficiency = p }

func TestRunnerStatsAndProgress(t *testing.T) {
	const budget = 4
	m := &mockEngine{states: 200}
	// even events are accepted on their last attempt
	m.finalize = func(attempt int, s State) (*genevent.Event, error) {
		local := (attempt-1)%budget + 1
		if s.Event.Number%2 == 0 && local == budget {
			return finalizeAs(-91)(attempt, s)
		}
		return finalizeAs(2)(attempt, s)
	}
	r, _ := NewRetrier(m, acceptDecayed, budget)
	sink := &memSink{}
	rec := &tally{}
	var progress bytes.Buffer
	st, err := Runner{Engine: m, Retrier: r, Sink: sink, Recorder: rec, Progress: &progress}.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Pulled != 200 || st.Accepted != 100 || st.Exhausted != 100 || st.Attempts != 800 {
		t.Fatalf("stats %+v", st)
	}
	if st.Efficiency() != 50 || st.MeanAttempts() != 4 {
		t.Fatalf("efficiency %v mean %v", st.Efficiency(), st.MeanAttempts())
	}
	if len(sink.events) != 100 || st.Counts.Jpsi != 100 {
		t.Fatalf("written %d counts %+v", len(sink.events), st.Counts)
	}
	lines := strings.Split(strings.TrimSpace(progress.String()), "\n")
	if len(lines) != 2 || lines[0] != "Processed 100 events, efficiency: 50.00%, avg retries: 4.00" {
		t.Fatalf("progress %q", progress.String())
	}
	if rec.pulled != 200 || rec.attempts["accepted"] != 100 || rec.attempts["rejected"] != 700 || rec.outcomes["exhausted"] != 100 || rec.efficiency != 50 {
		t.Fatalf("recorder %+v", rec)
	}
}

func TestRunnerLimit(t *testing.T) {
	m := &mockEngine{states: 50, finalize: finalizeAs(-91)}
	r, _ := NewRetrier(m, acceptDecayed, 3)
	st, err := Runner{Engine: m, Retrier: r, Sink: &memSink{}, Limit: 7}.Run(context.Background())
	if err != nil || st.Pulled != 7 || st.Accepted != 7 {
		t.Fatalf("stats %+v err %v", st, err)
	}
}

func TestRunnerToleratesGenerationFailuresBelowLimit(t *testing.T) {
	m := &mockEngine{states: 3, genFailures: []bool{true, false, true, false}, finalize: finalizeAs(-91)}
	r, _ := NewRetrier(m, acceptDecayed, 3)
	st, err := Runner{Engine: m, Retrier: r, Sink: &memSink{}, MaxAbort: 3}.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.GenerationFailures != 2 || st.Pulled != 3 {
		t.Fatalf("stats %+v", st)
	}
}

func TestRunnerAbortsAfterMaxGenerationFailures(t *testing.T) {
	fails := make([]bool, DefaultMaxAbort)
	for i := range fails {
		fails[i] = true
	}
	rec := &tally{}
	m := &mockEngine{states: 5, genFailures: fails, finalize: finalizeAs(-91)}
	r, _ := NewRetrier(m, acceptDecayed, 3)
	st, err := Runner{Engine: m, Retrier: r, Sink: &memSink{}, Recorder: rec}.Run(context.Background())
	if !errors.Is(err, ErrGenerationAborted) {
		t.Fatalf("expected abort, got %v", err)
	}
	if st.GenerationFailures != DefaultMaxAbort || st.Pulled != 0 || rec.genFail != DefaultMaxAbort {
		t.Fatalf("stats %+v", st)
	}
}

func TestRunnerPropagatesSinkFailure(t *testing.T) {
	m := &mockEngine{states: 2, finalize: finalizeAs(-91)}
	r, _ := NewRetrier(m, acceptDecayed, 1)
	_, err := Runner{Engine: m, Retrier: r, Sink: &memSink{err: errors.New("closed pipe")}}.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "closed pipe") {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	m := &mockEngine{states: 2, finalize: finalizeAs(-91)}
	r, _ := NewRetrier(m, acceptDecayed, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := Runner{Engine: m, Retrier: r, Sink: &memSink{}}.Run(ctx)
	if !errors.Is(err, context.Canceled) || st.Pulled != 0 {
		t.Fatalf("stats %+v err %v", st, err)
	}
}

func TestRunnerDoesNotCountEventInterruptedMidRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := &mockEngine{states: 3}
	m.finalize = func(attempt int, s State) (*genevent.Event, error) {
		cancel()
		return finalizeAs(2)(attempt, s)
	}
	r, _ := NewRetrier(m, acceptDecayed, 100)
	rec := &tally{}
	st, err := Runner{Engine: m, Retrier: r, Sink: &memSink{}, Recorder: rec}.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if st.Pulled != 0 || st.Exhausted != 0 || st.Attempts != 0 || rec.pulled != 0 {
		t.Fatalf("interrupted event counted: %+v", st)
	}
}

func TestStatsGuardZeroDivision(t *testing.T) {
	var st Stats
	if st.Efficiency() != 0 || st.MeanAttempts() != 0 {
		t.Fatalf("empty stats should report zeros")
	}
}

func TestRunnerRequiresCollaborators(t *testing.T) {
	if _, err := (Runner{}).Run(context.Background()); err == nil {
		t.Fatalf("expected error for empty runner")
	}
}
