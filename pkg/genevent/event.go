// Package genevent defines the generator-level event graph shared by the
// merger, the retry engine and the record codecs.
//
// An Event owns its particles and vertices through id-indexed maps. Links
// between them are ids, never pointers, so remapping and merging are pure
// id rewrites.
package genevent

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateID is returned when an id is added twice to the same event.
var ErrDuplicateID = errors.New("genevent: duplicate id")

// Position is a vertex four-position.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	T float64 `json:"t"`
}

// Particle is one edge of the event graph.
type Particle struct {
	ID       int        `json:"id"`
	Momentum FourVector `json:"momentum"`
	// Mass is the generated mass; zero when the producer did not set one.
	Mass   float64 `json:"mass,omitempty"`
	PID    int     `json:"pid"`
	Status int     `json:"status"`
	// Final marks a stable final-state particle as flagged by the producer.
	Final bool `json:"final,omitempty"`

	// Vertex links. Zero is a valid vertex id, so the Has flags say whether
	// the link is set.
	ProductionVertex    int  `json:"production_vertex,omitempty"`
	EndVertex           int  `json:"end_vertex,omitempty"`
	HasProductionVertex bool `json:"has_production_vertex,omitempty"`
	HasEndVertex        bool `json:"has_end_vertex,omitempty"`

	// Daughter1..Daughter2 is the contiguous daughter id range assigned by
	// the finalization engine. Zero means unknown.
	Daughter1 int `json:"daughter1,omitempty"`
	Daughter2 int `json:"daughter2,omitempty"`
}

// DecayedOrFinal reports whether the particle has either decayed (negative
// status) or is flagged as a final-state particle.
func (p Particle) DecayedOrFinal() bool {
	return p.Status < 0 || p.Final
}

// ProducedAt returns the production vertex id, if any.
func (p Particle) ProducedAt() (int, bool) {
	return p.ProductionVertex, p.HasProductionVertex
}

// EndsAt returns the end vertex id, if any.
func (p Particle) EndsAt() (int, bool) {
	return p.EndVertex, p.HasEndVertex
}

// Vertex is one node of the event graph. In and Out hold particle ids in
// insertion order.
type Vertex struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
	In       []int    `json:"in,omitempty"`
	Out      []int    `json:"out,omitempty"`
}

func (v Vertex) clone() Vertex {
	v.In = append([]int(nil), v.In...)
	v.Out = append([]int(nil), v.Out...)
	return v
}

// Event is a bipartite particle/vertex graph plus weights and a sequence number.
type Event struct {
	Number  int
	Weights []float64

	particles map[int]Particle
	vertices  map[int]Vertex
}

// New returns an empty event with the given sequence number.
func New(number int) *Event {
	return &Event{
		Number:    number,
		particles: make(map[int]Particle),
		vertices:  make(map[int]Vertex),
	}
}

func (e *Event) init() {
	if e.particles == nil {
		e.particles = make(map[int]Particle)
	}
	if e.vertices == nil {
		e.vertices = make(map[int]Vertex)
	}
}

// AddParticle stores p. Vertex links on p are kept as given; AddVertex
// overwrites them when the particle is attached to a vertex.
func (e *Event) AddParticle(p Particle) error {
	e.init()
	if _, exists := e.particles[p.ID]; exists {
		return fmt.Errorf("%w: particle %d", ErrDuplicateID, p.ID)
	}
	e.particles[p.ID] = p
	return nil
}

// AddVertex stores v and links its incoming and outgoing particles. Ids that
// do not name a particle of this event are dropped from v.
func (e *Event) AddVertex(v Vertex) error {
	e.init()
	if _, exists := e.vertices[v.ID]; exists {
		return fmt.Errorf("%w: vertex %d", ErrDuplicateID, v.ID)
	}
	in := make([]int, 0, len(v.In))
	for _, id := range v.In {
		p, ok := e.particles[id]
		if !ok {
			continue
		}
		p.EndVertex, p.HasEndVertex = v.ID, true
		e.particles[id] = p
		in = append(in, id)
	}
	out := make([]int, 0, len(v.Out))
	for _, id := range v.Out {
		p, ok := e.particles[id]
		if !ok {
			continue
		}
		p.ProductionVertex, p.HasProductionVertex = v.ID, true
		e.particles[id] = p
		out = append(out, id)
	}
	v.In, v.Out = in, out
	e.vertices[v.ID] = v
	return nil
}

// AttachIn appends an existing particle to the incoming list of an existing
// vertex. It reports false when either id is unknown.
func (e *Event) AttachIn(vertexID, particleID int) bool {
	v, ok := e.vertices[vertexID]
	if !ok {
		return false
	}
	p, ok := e.particles[particleID]
	if !ok {
		return false
	}
	p.EndVertex, p.HasEndVertex = vertexID, true
	e.particles[particleID] = p
	v.In = append(v.In, particleID)
	e.vertices[vertexID] = v
	return true
}

// AttachOut appends an existing particle to the outgoing list of an existing
// vertex. It reports false when either id is unknown.
func (e *Event) AttachOut(vertexID, particleID int) bool {
	v, ok := e.vertices[vertexID]
	if !ok {
		return false
	}
	p, ok := e.particles[particleID]
	if !ok {
		return false
	}
	p.ProductionVertex, p.HasProductionVertex = vertexID, true
	e.particles[particleID] = p
	v.Out = append(v.Out, particleID)
	e.vertices[vertexID] = v
	return true
}

// SetParticle replaces an existing particle, keeping its vertex links.
func (e *Event) SetParticle(p Particle) bool {
	old, ok := e.particles[p.ID]
	if !ok {
		return false
	}
	p.ProductionVertex, p.HasProductionVertex = old.ProductionVertex, old.HasProductionVertex
	p.EndVertex, p.HasEndVertex = old.EndVertex, old.HasEndVertex
	e.particles[p.ID] = p
	return true
}

// Particle looks up a particle by id.
func (e *Event) Particle(id int) (Particle, bool) {
	p, ok := e.particles[id]
	return p, ok
}

// Vertex looks up a vertex by id. The returned id slices are copies.
func (e *Event) Vertex(id int) (Vertex, bool) {
	v, ok := e.vertices[id]
	if !ok {
		return Vertex{}, false
	}
	return v.clone(), true
}

// NumParticles returns the particle count.
func (e *Event) NumParticles() int { return len(e.particles) }

// NumVertices returns the vertex count.
func (e *Event) NumVertices() int { return len(e.vertices) }

// ParticleIDs returns particle ids in ascending order.
func (e *Event) ParticleIDs() []int {
	ids := make([]int, 0, len(e.particles))
	for id := range e.particles {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// VertexIDs returns vertex ids in descending order (-1, -2, ... first).
func (e *Event) VertexIDs() []int {
	ids := make([]int, 0, len(e.vertices))
	for id := range e.vertices {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	return ids
}

// Particles returns all particles ordered by id.
func (e *Event) Particles() []Particle {
	out := make([]Particle, 0, len(e.particles))
	for _, id := range e.ParticleIDs() {
		out = append(out, e.particles[id])
	}
	return out
}

// Vertices returns copies of all vertices in VertexIDs order.
func (e *Event) Vertices() []Vertex {
	out := make([]Vertex, 0, len(e.vertices))
	for _, id := range e.VertexIDs() {
		out = append(out, e.vertices[id].clone())
	}
	return out
}

// Weight returns the first weight, or 1 when the event carries none.
func (e *Event) Weight() float64 {
	if e == nil || len(e.Weights) == 0 {
		return 1.0
	}
	return e.Weights[0]
}

// MaxParticleID returns the largest particle id, or 0 for an empty event.
func (e *Event) MaxParticleID() int {
	maxID := 0
	for id := range e.particles {
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

// MinVertexID returns the most negative vertex id, or 0 when there is none.
func (e *Event) MinVertexID() int {
	minID := 0
	for id := range e.vertices {
		if id < minID {
			minID = id
		}
	}
	return minID
}

// IDSpan returns the largest absolute id used by any particle or vertex.
func (e *Event) IDSpan() int {
	span := 0
	for id := range e.particles {
		span = max(span, abs(id))
	}
	for id := range e.vertices {
		span = max(span, abs(id))
	}
	return span
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := &Event{
		Number:    e.Number,
		Weights:   append([]float64(nil), e.Weights...),
		particles: make(map[int]Particle, len(e.particles)),
		vertices:  make(map[int]Vertex, len(e.vertices)),
	}
	for id, p := range e.particles {
		out.particles[id] = p
	}
	for id, v := range e.vertices {
		out.vertices[id] = v.clone()
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
