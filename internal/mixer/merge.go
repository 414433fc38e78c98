package mixer

import (
	"fmt"

	"eventmix/pkg/genevent"
)

// DefaultStep is the id offset between consecutive sources. It is an order
// of magnitude above the multiplicity of a single generated event.
const DefaultStep = 100000

// Merger assigns each source position an id offset of position*Step.
type Merger struct {
	step int
}

// NewMerger validates step and returns a Merger.
func NewMerger(step int) (Merger, error) {
	if step <= 0 {
		return Merger{}, fmt.Errorf("barcode step must be positive, got %d", step)
	}
	return Merger{step: step}, nil
}

// Step returns the configured offset step.
func (m Merger) Step() int { return m.step }

// Fits reports whether every id of ev stays below the step, which is the
// condition for collision-free merging.
func (m Merger) Fits(ev *genevent.Event) bool {
	if ev == nil {
		return true
	}
	return ev.IDSpan() < m.step
}

// Merge combines sources into one event numbered seq. A single source is a
// plain conversion; two or more go through MergeAll.
func (m Merger) Merge(sources []*genevent.Event, seq int) *genevent.Event {
	if len(sources) == 1 {
		return Convert(sources[0], seq)
	}
	return m.MergeAll(sources, seq)
}

// Convert is the single-source passthrough: the graph is remapped with offset
// 0 and the first weight (or 1) is kept.
func Convert(src *genevent.Event, seq int) *genevent.Event {
	out := Remap(src, 0)
	out.Number = seq
	out.Weights = []float64{src.Weight()}
	return out
}

// MergeAll unions the remapped graphs of every non-nil source. Source i is
// shifted by i*step. The combined weight is the product of the first weight
// of each non-nil source; sources without weights contribute 1.
func (m Merger) MergeAll(sources []*genevent.Event, seq int) *genevent.Event {
	out := genevent.New(seq)
	weight := 1.0
	for _, src := range sources {
		if src != nil && len(src.Weights) > 0 {
			weight *= src.Weights[0]
		}
	}
	out.Weights = []float64{weight}
	for i, src := range sources {
		if src == nil {
			continue
		}
		remapInto(out, src, i*m.step)
	}
	return out
}
