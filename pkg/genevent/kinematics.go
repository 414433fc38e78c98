package genevent

import "math"

// tiny keeps pseudorapidity finite for particles along the beam axis.
const tiny = 1e-20

// FourVector is a momentum four-vector (px, py, pz, E) in GeV.
type FourVector struct {
	Px float64 `json:"px"`
	Py float64 `json:"py"`
	Pz float64 `json:"pz"`
	E  float64 `json:"e"`
}

// Pt returns the transverse momentum.
func (v FourVector) Pt() float64 { return math.Hypot(v.Px, v.Py) }

// P returns the magnitude of the three-momentum.
func (v FourVector) P() float64 { return math.Sqrt(v.Px*v.Px + v.Py*v.Py + v.Pz*v.Pz) }

// Eta returns the pseudorapidity.
func (v FourVector) Eta() float64 {
	eta := math.Log((v.P() + math.Abs(v.Pz)) / math.Max(tiny, v.Pt()))
	if v.Pz > 0 {
		return eta
	}
	return -eta
}

// Phi returns the azimuthal angle in (-pi, pi].
func (v FourVector) Phi() float64 { return math.Atan2(v.Py, v.Px) }

// M returns the invariant mass, clamped at zero for space-like vectors.
func (v FourVector) M() float64 {
	m2 := v.E*v.E - v.Px*v.Px - v.Py*v.Py - v.Pz*v.Pz
	if m2 <= 0 {
		return 0
	}
	return math.Sqrt(m2)
}

// Add returns the component-wise sum.
func (v FourVector) Add(o FourVector) FourVector {
	return FourVector{Px: v.Px + o.Px, Py: v.Py + o.Py, Pz: v.Pz + o.Pz, E: v.E + o.E}
}

// Boost applies a Lorentz boost with velocity (bx, by, bz).
func (v FourVector) Boost(bx, by, bz float64) FourVector {
	b2 := bx*bx + by*by + bz*bz
	if b2 <= 0 || b2 >= 1 {
		return v
	}
	gamma := 1 / math.Sqrt(1-b2)
	bp := bx*v.Px + by*v.Py + bz*v.Pz
	gamma2 := (gamma - 1) / b2
	return FourVector{
		Px: v.Px + gamma2*bp*bx + gamma*bx*v.E,
		Py: v.Py + gamma2*bp*by + gamma*by*v.E,
		Pz: v.Pz + gamma2*bp*bz + gamma*bz*v.E,
		E:  gamma * (v.E + bp),
	}
}

// BoostVector returns the velocity of a frame moving with v.
func (v FourVector) BoostVector() (bx, by, bz float64) {
	if v.E <= 0 {
		return 0, 0, 0
	}
	return v.Px / v.E, v.Py / v.E, v.Pz / v.E
}

// FromPtEtaPhiM builds a four-vector from collider coordinates.
func FromPtEtaPhiM(pt, eta, phi, m float64) FourVector {
	px := pt * math.Cos(phi)
	py := pt * math.Sin(phi)
	pz := pt * math.Sinh(eta)
	e := math.Sqrt(px*px + py*py + pz*pz + m*m)
	return FourVector{Px: px, Py: py, Pz: pz, E: e}
}
