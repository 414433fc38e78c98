package selection

import "eventmix/pkg/genevent"

// Counts tallies the species reported in run summaries.
type Counts struct {
	Jpsi    int `json:"jpsi"`
	Upsilon int `json:"upsilon"`
	Phi     int `json:"phi"`
	Muon    int `json:"muon"`
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	c.Jpsi += o.Jpsi
	c.Upsilon += o.Upsilon
	c.Phi += o.Phi
	c.Muon += o.Muon
}

// CountSpecies tallies J/psi, Upsilon, phi and muons in ev. With
// decayedOrFinalOnly set, only decayed or final particles are counted.
func CountSpecies(ev *genevent.Event, decayedOrFinalOnly bool) Counts {
	var c Counts
	if ev == nil {
		return c
	}
	for _, p := range ev.Particles() {
		if decayedOrFinalOnly && !p.DecayedOrFinal() {
			continue
		}
		switch pid := abs(p.PID); {
		case pid == genevent.PIDJpsi:
			c.Jpsi++
		case genevent.IsUpsilon(pid):
			c.Upsilon++
		case pid == genevent.PIDPhi:
			c.Phi++
		case pid == genevent.PIDMuon:
			c.Muon++
		}
	}
	return c
}
