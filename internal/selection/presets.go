package selection

import (
	"fmt"

	"eventmix/pkg/genevent"
)

// Mode names a preset acceptance rule.
type Mode string

const (
	// ModeNormal keeps events with a J/psi or Upsilon dimuon.
	ModeNormal Mode = "normal"
	// ModePhi additionally requires a phi meson above MinPhiPt.
	ModePhi Mode = "phi"
)

// Cuts are the thresholds shared by the presets.
type Cuts struct {
	MinMuonPt  float64
	MaxMuonEta float64
	MinPhiPt   float64
}

// DefaultCuts returns the standard muon acceptance.
func DefaultCuts() Cuts {
	return Cuts{MinMuonPt: 2.5, MaxMuonEta: 2.4, MinPhiPt: 0}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNormal, ModePhi:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown selection mode %q (want normal or phi)", s)
}

// JpsiDimuon is the J/psi to mu+ mu- predicate.
func JpsiDimuon(c Cuts) Predicate {
	return DimuonResonance("jpsi_dimuon", []int{genevent.PIDJpsi}, c.MinMuonPt, c.MaxMuonEta)
}

// UpsilonDimuon covers the three Upsilon states.
func UpsilonDimuon(c Cuts) Predicate {
	return DimuonResonance("upsilon_dimuon", genevent.Upsilons, c.MinMuonPt, c.MaxMuonEta)
}

// PhiAbove requires a phi meson with pT above MinPhiPt.
func PhiAbove(c Cuts) Predicate {
	return SpeciesAbove("phi", genevent.PIDPhi, c.MinPhiPt)
}

// ForMode builds the preset predicate for mode.
func ForMode(mode Mode, c Cuts) (Predicate, error) {
	onium := Any(JpsiDimuon(c), UpsilonDimuon(c))
	switch mode {
	case ModeNormal:
		return onium, nil
	case ModePhi:
		return All(PhiAbove(c), onium), nil
	}
	return nil, fmt.Errorf("unknown selection mode %q", string(mode))
}
