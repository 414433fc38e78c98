package shower

import (
	"context"
	"errors"
	"io"
	"testing"

	"eventmix/internal/selection"
	"eventmix/pkg/genevent"
)

// mockEngine replays a fixed number of states. Finalize marks its input so
// tests can detect leaked mutations between attempts.
type mockEngine struct {
	states      int
	genFailures []bool // per Generate call; true = transient failure
	calls       int
	generated   int

	finalize func(attempt int, s State) (*genevent.Event, error)
	attempts int
	restores int
}

func (m *mockEngine) Generate(context.Context) (State, error) {
	call := m.calls
	m.calls++
	if call < len(m.genFailures) && m.genFailures[call] {
		return State{}, errors.New("lhe record malformed")
	}
	if m.generated >= m.states {
		return State{}, io.EOF
	}
	m.generated++
	ev := genevent.New(m.generated)
	_ = ev.AddParticle(genevent.Particle{ID: 1, PID: genevent.PIDJpsi, Status: 2})
	return State{Event: ev, Systems: []PartonSystem{{InA: 1, Out: []int{1}}}}, nil
}

func (m *mockEngine) Snapshot(s State) Snapshot { return Capture(s) }

func (m *mockEngine) Restore(snap Snapshot) State {
	m.restores++
	return snap.Restore()
}

func (m *mockEngine) Finalize(_ context.Context, s State) (*genevent.Event, error) {
	m.attempts++
	return m.finalize(m.attempts, s)
}

func finalizeAs(status int) func(int, State) (*genevent.Event, error) {
	return func(_ int, s State) (*genevent.Event, error) {
		p, _ := s.Event.Particle(1)
		p.Status = status
		s.Event.SetParticle(p)
		return s.Event, nil
	}
}

var acceptDecayed = selection.Func{Label: "decayed", Fn: func(ev *genevent.Event) bool {
	p, ok := ev.Particle(1)
	return ok && p.Status < 0
}}

func state(t *testing.T, m *mockEngine) State {
	t.Helper()
	st, err := m.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return st
}

func TestRetrierAlwaysRejectingExhaustsBudget(t *testing.T) {
	m := &mockEngine{states: 1, finalize: finalizeAs(2)}
	r, err := NewRetrier(m, acceptDecayed, 37)
	if err != nil {
		t.Fatalf("new retrier: %v", err)
	}
	out := r.Process(context.Background(), state(t, m))
	if out.Phase != PhaseExhausted || out.Attempts != 37 || m.attempts != 37 {
		t.Fatalf("outcome %+v engine attempts %d", out, m.attempts)
	}
	if out.Event != nil {
		t.Fatalf("exhausted outcome must not carry an event")
	}
}

func TestRetrierAcceptsOnFirstAttempt(t *testing.T) {
	m := &mockEngine{states: 1, finalize: finalizeAs(-91)}
	r, _ := NewRetrier(m, acceptDecayed, DefaultMaxRetry)
	out := r.Process(context.Background(), state(t, m))
	if out.Phase != PhaseAccepted || out.Attempts != 1 || out.Event == nil {
		t.Fatalf("outcome %+v", out)
	}
}

func TestRetrierCountsFinalizeFailures(t *testing.T) {
	m := &mockEngine{states: 1}
	m.finalize = func(attempt int, s State) (*genevent.Event, error) {
		if attempt <= 3 {
			return nil, errors.New("string fragmentation failed")
		}
		return finalizeAs(-91)(attempt, s)
	}
	r, _ := NewRetrier(m, acceptDecayed, 10)
	out := r.Process(context.Background(), state(t, m))
	if out.Phase != PhaseAccepted || out.Attempts != 4 || out.FinalizeFailures != 3 {
		t.Fatalf("outcome %+v", out)
	}
}

func TestRetrierStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := &mockEngine{states: 1}
	m.finalize = func(attempt int, s State) (*genevent.Event, error) {
		if attempt == 2 {
			cancel()
			return nil, context.Canceled
		}
		return finalizeAs(2)(attempt, s)
	}
	r, _ := NewRetrier(m, acceptDecayed, 50)
	out := r.Process(ctx, state(t, m))
	if !errors.Is(out.Err, context.Canceled) || out.Phase.Terminal() {
		t.Fatalf("outcome %+v", out)
	}
	if out.Attempts != 2 || m.attempts != 2 {
		t.Fatalf("attempts continued after cancel: outcome %+v engine %d", out, m.attempts)
	}
}

func TestRetrierAttemptsAreIndependent(t *testing.T) {
	m := &mockEngine{states: 1}
	m.finalize = func(attempt int, s State) (*genevent.Event, error) {
		if s.Event.NumParticles() != 1 || len(s.Systems[0].Out) != 1 {
			t.Fatalf("attempt %d saw mutations from an earlier attempt", attempt)
		}
		_ = s.Event.AddParticle(genevent.Particle{ID: 100 + attempt})
		s.Systems[0].Out = append(s.Systems[0].Out, 100+attempt)
		return s.Event, nil
	}
	r, _ := NewRetrier(m, acceptDecayed, 5)
	st := state(t, m)
	out := r.Process(context.Background(), st)
	if out.Attempts != 5 || m.restores != 5 {
		t.Fatalf("attempts %d restores %d", out.Attempts, m.restores)
	}
	if st.Event.NumParticles() != 1 {
		t.Fatalf("generated state mutated by finalization")
	}
}

func TestRetrierTransitions(t *testing.T) {
	m := &mockEngine{states: 1}
	m.finalize = func(attempt int, s State) (*genevent.Event, error) {
		if attempt == 1 {
			return nil, errors.New("fail")
		}
		return finalizeAs(-91)(attempt, s)
	}
	r, _ := NewRetrier(m, acceptDecayed, 3)
	var seen []Phase
	r.OnTransition = func(from, to Phase) {
		if len(seen) > 0 && seen[len(seen)-1] != from {
			t.Fatalf("transition from %s does not follow %s", from, seen[len(seen)-1])
		}
		seen = append(seen, to)
	}
	r.Process(context.Background(), state(t, m))
	want := []Phase{PhaseGenerated, PhaseSnapshot, PhaseFinalizeAttempt, PhaseSnapshot, PhaseFinalizeAttempt, PhaseEvaluate, PhaseAccepted}
	if len(seen) != len(want) {
		t.Fatalf("transitions %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d: %s want %s", i, seen[i], want[i])
		}
	}
}

func TestNewRetrierValidation(t *testing.T) {
	m := &mockEngine{}
	if _, err := NewRetrier(nil, acceptDecayed, 1); err == nil {
		t.Fatalf("nil engine accepted")
	}
	if _, err := NewRetrier(m, nil, 1); err == nil {
		t.Fatalf("nil predicate accepted")
	}
	if _, err := NewRetrier(m, acceptDecayed, 0); err == nil {
		t.Fatalf("zero budget accepted")
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseFinalizeAttempt.String() != "finalize_attempt" || Phase(42).String() != "phase(42)" {
		t.Fatalf("phase names")
	}
	if !PhaseAccepted.Terminal() || !PhaseExhausted.Terminal() || PhaseEvaluate.Terminal() {
		t.Fatalf("terminal phases")
	}
}

func TestSnapshotRestoreIsDeep(t *testing.T) {
	ev := genevent.New(1)
	_ = ev.AddParticle(genevent.Particle{ID: 1})
	st := State{Event: ev, Systems: []PartonSystem{{Out: []int{1}}}}
	snap := Capture(st)
	_ = ev.AddParticle(genevent.Particle{ID: 2})
	st.Systems[0].Out[0] = 9
	a := snap.Restore()
	if a.Event.NumParticles() != 1 || a.Systems[0].Out[0] != 1 {
		t.Fatalf("capture aliased the source state")
	}
	a.Systems[0].Out[0] = 5
	if b := snap.Restore(); b.Systems[0].Out[0] != 1 {
		t.Fatalf("restores share storage")
	}
	if (State{}).Clone().Event != nil {
		t.Fatalf("empty state clone")
	}
}
