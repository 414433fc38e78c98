// Package selection holds the acceptance predicates evaluated against
// finalized events.
package selection

import (
	"math"
	"strings"

	"eventmix/pkg/genevent"
)

// Predicate decides whether a finalized event is kept.
type Predicate interface {
	Name() string
	Accept(ev *genevent.Event) bool
}

// Func adapts a function to Predicate.
type Func struct {
	Label string
	Fn    func(*genevent.Event) bool
}

// Name implements Predicate.
func (f Func) Name() string { return f.Label }

// Accept implements Predicate. A nil function rejects everything.
func (f Func) Accept(ev *genevent.Event) bool {
	if f.Fn == nil || ev == nil {
		return false
	}
	return f.Fn(ev)
}

type dimuon struct {
	name    string
	species map[int]struct{}
	minPt   float64
	maxEta  float64
}

// DimuonResonance accepts an event when a decayed or final resonance of one
// of the given species has, within its daughter range, at least one mu+
// and one mu- passing pT > minPt and |eta| < maxEta.
func DimuonResonance(name string, species []int, minPt, maxEta float64) Predicate {
	set := make(map[int]struct{}, len(species))
	for _, pid := range species {
		set[abs(pid)] = struct{}{}
	}
	return dimuon{name: name, species: set, minPt: minPt, maxEta: maxEta}
}

func (d dimuon) Name() string { return d.name }

func (d dimuon) Accept(ev *genevent.Event) bool {
	if ev == nil {
		return false
	}
	for _, p := range ev.Particles() {
		if _, ok := d.species[abs(p.PID)]; !ok || !p.DecayedOrFinal() {
			continue
		}
		if p.Daughter1 <= 0 || p.Daughter2 <= 0 {
			continue
		}
		var plus, minus bool
		for id := p.Daughter1; id <= p.Daughter2; id++ {
			mu, ok := ev.Particle(id)
			if !ok || !d.validMuon(mu) {
				continue
			}
			switch mu.PID {
			case genevent.PIDMuon:
				minus = true
			case -genevent.PIDMuon:
				plus = true
			}
		}
		if plus && minus {
			return true
		}
	}
	return false
}

func (d dimuon) validMuon(p genevent.Particle) bool {
	return p.Momentum.Pt() > d.minPt && math.Abs(p.Momentum.Eta()) < d.maxEta
}

type speciesAbove struct {
	name    string
	species int
	minPt   float64
}

// SpeciesAbove accepts an event containing a decayed or final particle of
// the given species (either charge) with pT > minPt.
func SpeciesAbove(name string, species int, minPt float64) Predicate {
	return speciesAbove{name: name, species: abs(species), minPt: minPt}
}

func (s speciesAbove) Name() string { return s.name }

func (s speciesAbove) Accept(ev *genevent.Event) bool {
	if ev == nil {
		return false
	}
	for _, p := range ev.Particles() {
		if abs(p.PID) == s.species && p.DecayedOrFinal() && p.Momentum.Pt() > s.minPt {
			return true
		}
	}
	return false
}

type all []Predicate

// All accepts when every predicate accepts. All() accepts everything.
func All(preds ...Predicate) Predicate { return all(preds) }

func (a all) Name() string { return join(a, " AND ") }

func (a all) Accept(ev *genevent.Event) bool {
	for _, p := range a {
		if !p.Accept(ev) {
			return false
		}
	}
	return true
}

type anyOf []Predicate

// Any accepts when at least one predicate accepts. Any() rejects everything.
func Any(preds ...Predicate) Predicate { return anyOf(preds) }

func (a anyOf) Name() string { return join(a, " OR ") }

func (a anyOf) Accept(ev *genevent.Event) bool {
	for _, p := range a {
		if p.Accept(ev) {
			return true
		}
	}
	return false
}

func join(preds []Predicate, sep string) string {
	names := make([]string, 0, len(preds))
	for _, p := range preds {
		names = append(names, p.Name())
	}
	return "(" + strings.Join(names, sep) + ")"
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
