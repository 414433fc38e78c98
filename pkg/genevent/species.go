package genevent

// PDG species codes used by the selection and statistics code.
const (
	PIDMuon      = 13
	PIDKaon      = 321
	PIDPhi       = 333
	PIDJpsi      = 443
	PIDUpsilon1S = 553
	PIDUpsilon2S = 100553
	PIDUpsilon3S = 200553
	PIDProton    = 2212
	PIDGluon     = 21
)

// Upsilons lists the bottomonium vector states treated as one family.
var Upsilons = []int{PIDUpsilon1S, PIDUpsilon2S, PIDUpsilon3S}

// IsUpsilon reports whether |pid| is one of the Upsilon states.
func IsUpsilon(pid int) bool {
	pid = abs(pid)
	return pid == PIDUpsilon1S || pid == PIDUpsilon2S || pid == PIDUpsilon3S
}

// Nominal masses in GeV.
var nominalMass = map[int]float64{
	PIDMuon:      0.1056584,
	PIDKaon:      0.493677,
	PIDPhi:       1.019461,
	PIDJpsi:      3.096900,
	PIDUpsilon1S: 9.46030,
	PIDUpsilon2S: 10.02326,
	PIDUpsilon3S: 10.3552,
	PIDProton:    0.938272,
}

// NominalMass returns the tabulated mass for |pid| and whether it is known.
func NominalMass(pid int) (float64, bool) {
	m, ok := nominalMass[abs(pid)]
	return m, ok
}
