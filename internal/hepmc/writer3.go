package hepmc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"eventmix/pkg/genevent"
)

// RecordStatus maps an engine status to the record convention: stable final
// particles are 1, decayed hadron-level particles 2, beams 4, and anything
// else keeps its absolute value.
func RecordStatus(p genevent.Particle) int {
	if p.Final {
		return 1
	}
	abs := p.Status
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs == 11 || abs == 12:
		return 4
	case p.Status < 0 && abs >= 81:
		return 2
	}
	return abs
}

// Writer3 encodes events as Asciiv3. Particle and vertex ids are renumbered
// 1..N and -1..-M in write order, which is what Asciiv3 readers expect.
type Writer3 struct {
	w       *bufio.Writer
	started bool
	closed  bool
}

// NewWriter3 returns a Writer3 over w. Close must be called to terminate the
// listing; it does not close w.
func NewWriter3(w io.Writer) *Writer3 {
	return &Writer3{w: bufio.NewWriter(w)}
}

func (w *Writer3) header() {
	if w.started {
		return
	}
	w.started = true
	fmt.Fprintf(w.w, "HepMC::Version %s\n%s\n", version3, startListing)
}

// Write appends one event.
func (w *Writer3) Write(ev *genevent.Event) error {
	if w.closed {
		return fmt.Errorf("hepmc: write after close")
	}
	w.header()
	plan := planTopology(ev)
	fmt.Fprintf(w.w, "E %d %d %d\nU GEV MM\n", ev.Number, len(plan.vertices), len(plan.particles))
	weights := ev.Weights
	if len(weights) == 0 {
		weights = []float64{1}
	}
	fmt.Fprintf(w.w, "W %s\n", joinFloats(weights))
	pnum := make(map[int]int, len(plan.particles))
	vnum := make(map[int]int, len(plan.vertices))
	for _, step := range plan.steps {
		if step.vertex == nil {
			p, _ := ev.Particle(step.particle)
			pnum[p.ID] = len(pnum) + 1
			parent := 0
			if pv, ok := p.ProducedAt(); ok {
				parent = vnum[pv]
			}
			w.particle(pnum[p.ID], parent, p)
			continue
		}
		v := step.vertex
		vnum[v.ID] = -(len(vnum) + 1)
		in := make([]string, 0, len(v.In))
		for _, id := range v.In {
			if n, ok := pnum[id]; ok {
				in = append(in, strconv.Itoa(n))
			}
		}
		fmt.Fprintf(w.w, "V %d 0 [%s]", vnum[v.ID], strings.Join(in, ","))
		if v.Position != (genevent.Position{}) {
			fmt.Fprintf(w.w, " @ %s", joinFloats([]float64{v.Position.X, v.Position.Y, v.Position.Z, v.Position.T}))
		}
		w.w.WriteByte('\n')
	}
	return w.w.Flush()
}

func (w *Writer3) particle(id, parent int, p genevent.Particle) {
	m := p.Mass
	if m == 0 {
		m = p.Momentum.M()
	}
	fmt.Fprintf(w.w, "P %d %d %d %s %d\n", id, parent, p.PID,
		joinFloats([]float64{p.Momentum.Px, p.Momentum.Py, p.Momentum.Pz, p.Momentum.E, m}), RecordStatus(p))
}

// Close writes the end-of-listing marker and flushes.
func (w *Writer3) Close() error {
	if w.closed {
		return nil
	}
	w.header()
	w.closed = true
	fmt.Fprintf(w.w, "%s\n\n", endListing)
	return w.w.Flush()
}

type step struct {
	vertex   *genevent.Vertex
	particle int
}

type topology struct {
	steps     []step
	particles []int
	vertices  []int
}

// planTopology orders the graph so every vertex follows all of its incoming
// particles and every particle follows its production vertex. Particles
// without a production vertex come first.
func planTopology(ev *genevent.Event) topology {
	var t topology
	written := make(map[int]bool, ev.NumParticles())
	emit := func(id int) {
		if written[id] {
			return
		}
		written[id] = true
		t.steps = append(t.steps, step{particle: id})
		t.particles = append(t.particles, id)
	}
	for _, p := range ev.Particles() {
		if !p.HasProductionVertex {
			emit(p.ID)
		}
	}
	pending := ev.Vertices()
	for len(pending) > 0 {
		var rest []genevent.Vertex
		for _, v := range pending {
			if !allWritten(v.In, written) {
				rest = append(rest, v)
				continue
			}
			t.addVertex(v, emit)
		}
		if len(rest) == len(pending) {
			// cyclic or inconsistent input; emit the remainder in id order
			for _, v := range rest {
				t.addVertex(v, emit)
			}
			break
		}
		pending = rest
	}
	return t
}

func (t *topology) addVertex(v genevent.Vertex, emit func(int)) {
	t.steps = append(t.steps, step{vertex: &v})
	t.vertices = append(t.vertices, v.ID)
	for _, id := range v.Out {
		emit(id)
	}
}

func allWritten(ids []int, written map[int]bool) bool {
	for _, id := range ids {
		if !written[id] {
			return false
		}
	}
	return true
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
