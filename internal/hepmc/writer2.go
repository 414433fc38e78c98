package hepmc

import (
	"bufio"
	"fmt"
	"io"

	"eventmix/pkg/genevent"
)

const (
	version2      = "2.06.09"
	startListing2 = "HepMC::IO_GenEvent-START_EVENT_LISTING"
	endListing2   = "HepMC::IO_GenEvent-END_EVENT_LISTING"
)

// Writer2 encodes events in the fixed-schema IO_GenEvent format. Ids are
// written unchanged as barcodes, so vertex ids must be negative.
type Writer2 struct {
	w       *bufio.Writer
	started bool
	closed  bool
}

// NewWriter2 returns a Writer2 over w. Close terminates the listing without
// closing w.
func NewWriter2(w io.Writer) *Writer2 {
	return &Writer2{w: bufio.NewWriter(w)}
}

func (w *Writer2) header() {
	if w.started {
		return
	}
	w.started = true
	fmt.Fprintf(w.w, "HepMC::Version %s\n%s\n", version2, startListing2)
}

// Write appends one event. Only particles attached to a vertex are written.
func (w *Writer2) Write(ev *genevent.Event) error {
	if w.closed {
		return fmt.Errorf("hepmc: write after close")
	}
	w.header()
	weights := ev.Weights
	if len(weights) == 0 {
		weights = []float64{1}
	}
	// number, mpi, scale, alphaQCD, alphaQED, signal process id and vertex,
	// vertex count, beam barcodes, random states, weights
	fmt.Fprintf(w.w, "E %d -1 -1 -1 -1 0 0 %d 0 0 0 %d %s\n", ev.Number, ev.NumVertices(), len(weights), joinFloats(weights))
	fmt.Fprintf(w.w, "U GEV MM\n")
	for _, v := range ev.Vertices() {
		var orphans []genevent.Particle
		for _, id := range v.In {
			if p, ok := ev.Particle(id); ok && !p.HasProductionVertex {
				orphans = append(orphans, p)
			}
		}
		fmt.Fprintf(w.w, "V %d 0 %s %d %d 0\n", v.ID,
			joinFloats([]float64{v.Position.X, v.Position.Y, v.Position.Z, v.Position.T}), len(orphans), len(v.Out))
		for _, p := range orphans {
			w.particle(p)
		}
		for _, id := range v.Out {
			if p, ok := ev.Particle(id); ok {
				w.particle(p)
			}
		}
	}
	return w.w.Flush()
}

func (w *Writer2) particle(p genevent.Particle) {
	m := p.Mass
	if m == 0 {
		m = p.Momentum.M()
	}
	fmt.Fprintf(w.w, "P %d %d %s %d 0 0 %d 0\n", p.ID, p.PID,
		joinFloats([]float64{p.Momentum.Px, p.Momentum.Py, p.Momentum.Pz, p.Momentum.E, m}), p.Status, p.EndVertex)
}

// Close writes the end-of-listing marker and flushes.
func (w *Writer2) Close() error {
	if w.closed {
		return nil
	}
	w.header()
	w.closed = true
	fmt.Fprintf(w.w, "%s\n", endListing2)
	return w.w.Flush()
}
