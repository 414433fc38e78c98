// Package toyengine is a stand-in finalization engine. It replays
// pre-finalization records and "finalizes" them with seeded two-body decays
// of quarkonia and phi mesons, failing at a configurable rate.
package toyengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"eventmix/internal/shower"
	"eventmix/pkg/genevent"
)

var (
	// ErrEmptyRecord is returned by Generate for a record without particles.
	ErrEmptyRecord = errors.New("toyengine: empty record")
	// ErrFinalizeFailed marks a simulated finalization failure.
	ErrFinalizeFailed = errors.New("toyengine: finalization failed")
)

const (
	statusDecayProduct = 91
	statusHadron       = 83
)

// Source yields pre-finalization records.
type Source interface {
	Read() (*genevent.Event, error)
}

// Config tunes the engine.
type Config struct {
	// Seed initializes the generator; 0 picks a time-based seed.
	Seed uint64
	// FailureRate is the probability that one Finalize call fails.
	FailureRate float64
	// PhiRate is the probability that a finalization produces an extra phi.
	PhiRate float64
	// PhiMeanPt is the mean of the exponential phi pT spectrum in GeV.
	PhiMeanPt float64
}

// Engine implements shower.Engine.
type Engine struct {
	src  Source
	cfg  Config
	rng  *rand.Rand
	seed uint64
}

var _ shower.Engine = (*Engine)(nil)

// New validates cfg and returns an engine reading from src.
func New(src Source, cfg Config) (*Engine, error) {
	if src == nil {
		return nil, errors.New("toyengine: nil source")
	}
	if cfg.FailureRate < 0 || cfg.FailureRate >= 1 {
		return nil, fmt.Errorf("toyengine: failure rate %v outside [0,1)", cfg.FailureRate)
	}
	if cfg.PhiRate < 0 || cfg.PhiRate > 1 {
		return nil, fmt.Errorf("toyengine: phi rate %v outside [0,1]", cfg.PhiRate)
	}
	if cfg.PhiRate > 0 && cfg.PhiMeanPt <= 0 {
		return nil, fmt.Errorf("toyengine: phi mean pT must be positive, got %v", cfg.PhiMeanPt)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Engine{
		src:  src,
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed: seed,
	}, nil
}

// Seed returns the effective seed so runs can be reproduced.
func (e *Engine) Seed() uint64 { return e.seed }

// Generate reads the next record and derives its parton systems.
func (e *Engine) Generate(ctx context.Context) (shower.State, error) {
	if err := ctx.Err(); err != nil {
		return shower.State{}, err
	}
	ev, err := e.src.Read()
	if errors.Is(err, io.EOF) {
		return shower.State{}, io.EOF
	}
	if err != nil {
		return shower.State{}, fmt.Errorf("toyengine: read record: %w", err)
	}
	if ev == nil || ev.NumParticles() == 0 {
		return shower.State{}, ErrEmptyRecord
	}
	return shower.State{Event: ev, Systems: partonSystems(ev)}, nil
}

// Snapshot implements shower.Engine.
func (e *Engine) Snapshot(s shower.State) shower.Snapshot { return shower.Capture(s) }

// Restore implements shower.Engine.
func (e *Engine) Restore(snap shower.Snapshot) shower.State { return snap.Restore() }

// Finalize decays every undecayed resonance in s and flags stable particles
// as final. s is modified and its event returned.
func (e *Engine) Finalize(ctx context.Context, s shower.State) (*genevent.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Event == nil {
		return nil, ErrEmptyRecord
	}
	if e.rng.Float64() < e.cfg.FailureRate {
		return nil, ErrFinalizeFailed
	}
	ev := s.Event
	if e.cfg.PhiRate > 0 && e.rng.Float64() < e.cfg.PhiRate {
		e.addPhi(ev, s.Systems)
	}
	for _, p := range ev.Particles() {
		if p.HasEndVertex {
			continue
		}
		if products, ok := decayChannel(p.PID); ok {
			e.decay(ev, p, products)
		}
	}
	for _, p := range ev.Particles() {
		if !p.HasEndVertex && p.Status > 0 && !isParton(p.PID) && !p.Final {
			p.Final = true
			ev.SetParticle(p)
		}
	}
	return ev, nil
}

// decayChannel returns the two-body products of the species the engine
// decays: quarkonia to mu- mu+ and phi to K+ K-.
func decayChannel(pid int) ([2]int, bool) {
	switch abs := max(pid, -pid); {
	case abs == genevent.PIDJpsi || genevent.IsUpsilon(abs):
		return [2]int{genevent.PIDMuon, -genevent.PIDMuon}, true
	case abs == genevent.PIDPhi:
		return [2]int{genevent.PIDKaon, -genevent.PIDKaon}, true
	}
	return [2]int{}, false
}

func (e *Engine) decay(ev *genevent.Event, parent genevent.Particle, products [2]int) {
	m1, _ := genevent.NominalMass(products[0])
	m2, _ := genevent.NominalMass(products[1])
	mass := parent.Mass
	if mass <= 0 {
		mass = parent.Momentum.M()
	}
	if mass <= 0 {
		mass, _ = genevent.NominalMass(parent.PID)
	}
	if mass <= m1+m2 {
		return
	}
	q := math.Sqrt((mass*mass-(m1+m2)*(m1+m2))*(mass*mass-(m1-m2)*(m1-m2))) / (2 * mass)
	cosTheta := 2*e.rng.Float64() - 1
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	phi := 2 * math.Pi * e.rng.Float64()
	dir := genevent.FourVector{Px: q * sinTheta * math.Cos(phi), Py: q * sinTheta * math.Sin(phi), Pz: q * cosTheta}

	mom := parent.Momentum
	if mom.E <= 0 {
		mom = genevent.FourVector{E: mass}
	}
	bx, by, bz := mom.BoostVector()
	first := genevent.FourVector{Px: dir.Px, Py: dir.Py, Pz: dir.Pz, E: math.Hypot(q, m1)}.Boost(bx, by, bz)
	second := genevent.FourVector{Px: -dir.Px, Py: -dir.Py, Pz: -dir.Pz, E: math.Hypot(q, m2)}.Boost(bx, by, bz)

	d1 := ev.MaxParticleID() + 1
	d2 := d1 + 1
	_ = ev.AddParticle(genevent.Particle{ID: d1, PID: products[0], Status: statusDecayProduct, Final: true, Momentum: first, Mass: m1})
	_ = ev.AddParticle(genevent.Particle{ID: d2, PID: products[1], Status: statusDecayProduct, Final: true, Momentum: second, Mass: m2})

	pos := genevent.Position{}
	if pv, ok := parent.ProducedAt(); ok {
		if v, ok := ev.Vertex(pv); ok {
			pos = v.Position
		}
	}
	_ = ev.AddVertex(genevent.Vertex{ID: min(ev.MinVertexID(), 0) - 1, Position: pos, In: []int{parent.ID}, Out: []int{d1, d2}})

	parent, _ = ev.Particle(parent.ID)
	parent.Status = -max(parent.Status, -parent.Status)
	if parent.Status == 0 {
		parent.Status = -statusDecayProduct
	}
	parent.Final = false
	parent.Daughter1, parent.Daughter2 = d1, d2
	ev.SetParticle(parent)
}

// addPhi appends a phi meson with an exponential pT spectrum, produced at
// the vertex of the first parton system.
func (e *Engine) addPhi(ev *genevent.Event, systems []shower.PartonSystem) {
	mass, _ := genevent.NominalMass(genevent.PIDPhi)
	pt := e.rng.ExpFloat64() * e.cfg.PhiMeanPt
	eta := 5*e.rng.Float64() - 2.5
	phi := 2 * math.Pi * e.rng.Float64()
	id := ev.MaxParticleID() + 1
	_ = ev.AddParticle(genevent.Particle{
		ID:       id,
		PID:      genevent.PIDPhi,
		Status:   statusHadron,
		Momentum: genevent.FromPtEtaPhiM(pt, eta, phi, mass),
		Mass:     mass,
	})
	for _, sys := range systems {
		for _, out := range sys.Out {
			if p, ok := ev.Particle(out); ok && p.HasProductionVertex {
				ev.AttachOut(p.ProductionVertex, id)
				return
			}
		}
	}
}

// partonSystems groups the record into one system: the incoming particles
// (no production vertex) and every undecayed outgoing particle.
func partonSystems(ev *genevent.Event) []shower.PartonSystem {
	var sys shower.PartonSystem
	var incoming []int
	var total genevent.FourVector
	for _, p := range ev.Particles() {
		switch {
		case !p.HasProductionVertex && p.HasEndVertex:
			incoming = append(incoming, p.ID)
		case !p.HasEndVertex:
			sys.Out = append(sys.Out, p.ID)
			total = total.Add(p.Momentum)
			sys.PTHat = max(sys.PTHat, p.Momentum.Pt())
		}
	}
	if len(incoming) > 0 {
		sys.InA = incoming[0]
	}
	if len(incoming) > 1 {
		sys.InB = incoming[1]
	}
	m := total.M()
	sys.SHat = m * m
	return []shower.PartonSystem{sys}
}

func isParton(pid int) bool {
	abs := max(pid, -pid)
	return (abs >= 1 && abs <= 6) || abs == genevent.PIDGluon
}
