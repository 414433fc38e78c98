// Package mixer combines event graphs coming from independent sources into a
// single identifier-consistent graph.
package mixer

import "eventmix/pkg/genevent"

// Remap copies src into a new event with every particle id shifted by
// +offset and every vertex id shifted by -offset. Vertex ids are negative in
// the record formats, so both kinds move away from zero and never meet.
//
// Edges are rebuilt from the vertex in/out lists through the id mapping; ids
// that do not resolve to a particle of src are skipped. The source event is
// not modified. The result carries no weights and sequence number 0.
func Remap(src *genevent.Event, offset int) *genevent.Event {
	dst := genevent.New(0)
	if src == nil {
		return dst
	}
	remapInto(dst, src, offset)
	return dst
}

// remapInto appends the remapped graph of src to dst.
func remapInto(dst, src *genevent.Event, offset int) {
	ids := make(map[int]int, src.NumParticles())
	for _, p := range src.Particles() {
		newID := p.ID + offset
		// Links are re-derived from the vertices below; engine-local daughter
		// ranges are not meaningful in the destination id space.
		cp := genevent.Particle{
			ID:       newID,
			Momentum: p.Momentum,
			Mass:     p.Mass,
			PID:      p.PID,
			Status:   p.Status,
			Final:    p.Final,
		}
		if err := dst.AddParticle(cp); err != nil {
			// id collision with an earlier source; the step is too small
			continue
		}
		ids[p.ID] = newID
	}
	for _, v := range src.Vertices() {
		nv := genevent.Vertex{ID: v.ID - offset, Position: v.Position}
		for _, id := range v.In {
			if mapped, ok := ids[id]; ok {
				nv.In = append(nv.In, mapped)
			}
		}
		for _, id := range v.Out {
			if mapped, ok := ids[id]; ok {
				nv.Out = append(nv.Out, mapped)
			}
		}
		_ = dst.AddVertex(nv)
	}
}
