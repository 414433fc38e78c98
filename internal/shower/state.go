// Package shower runs the stochastic finalization loop: a pre-finalization
// state is captured once, then restored and finalized repeatedly until the
// result passes the acceptance predicate or the retry budget is spent.
package shower

import "eventmix/pkg/genevent"

// PartonSystem groups the partons of one hard or secondary scattering.
// InA and InB are the incoming particle ids; Out lists the outgoing ids.
type PartonSystem struct {
	InA   int     `json:"in_a"`
	InB   int     `json:"in_b"`
	Out   []int   `json:"out,omitempty"`
	SHat  float64 `json:"s_hat"`
	PTHat float64 `json:"pt_hat"`
}

// State is the pre-finalization record handed over by the engine.
type State struct {
	Event   *genevent.Event
	Systems []PartonSystem
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{Event: s.Event.Clone()}
	if s.Systems != nil {
		out.Systems = make([]PartonSystem, len(s.Systems))
		for i, sys := range s.Systems {
			sys.Out = append([]int(nil), sys.Out...)
			out.Systems[i] = sys
		}
	}
	return out
}

// Snapshot is an immutable copy of a State. Every Restore yields a fresh,
// independent copy, so attempts never observe each other's mutations.
type Snapshot struct {
	state State
}

// Capture deep-copies s into a Snapshot.
func Capture(s State) Snapshot {
	return Snapshot{state: s.Clone()}
}

// Restore returns a new deep copy of the captured state.
func (s Snapshot) Restore() State {
	return s.state.Clone()
}
