// Package cosmology supplies the comoving-distance function the pair counter
// needs. The estimator only sees a func(z) float64, so any cosmology can be
// swapped in; FlatLambdaCDM is the default provider.
package cosmology

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// SpeedOfLight in km/s.
const SpeedOfLight = 299792.458

// Planck 2015 (TT,TE,EE+lowP+lensing+ext) parameters.
const (
	Planck15H0    = 67.74
	Planck15Om0   = 0.3075
	Planck15Tcmb0 = 2.7255
	Planck15Neff  = 3.046
)

// Planck15MNu is the neutrino mass spectrum in eV: one massive species.
var Planck15MNu = []float64{0, 0, 0.06}

// quadNodes is the Gauss-Legendre order used per comoving-distance integral.
const quadNodes = 64

const (
	// photon density parameter times h^2 per K^4 (4 sigma_SB / c^3 over the
	// critical density for H0 = 100 km/s/Mpc)
	photonDensityCoeff = 4.48150052e-7
	// (7/8) (4/11)^(4/3): one neutrino species relative to photons
	nuPerPhoton = 0.22710731766
	// neutrino to photon temperature ratio, (4/11)^(1/3)
	tnuPerTcmb = 0.7137658555036082
	// Boltzmann constant in eV/K
	boltzmannEV = 8.617333262e-5

	// Komatsu et al. (2011) fit for the massive-neutrino energy density.
	nuFitP    = 1.83
	nuFitInvP = 0.54644808743 // 1 / nuFitP
	nuFitK    = 0.3173

	// NeutrinoSpecies is the number of species a mass spectrum must list.
	NeutrinoSpecies = 3
)

// FlatLambdaCDM is a spatially flat cosmology with matter, photons,
// neutrinos (massless or massive) and a cosmological constant.
type FlatLambdaCDM struct {
	H0    float64 // km/s/Mpc
	Om0   float64 // non-relativistic matter, excluding massive neutrinos
	Tcmb0 float64 // K; zero disables photons and neutrinos
	Neff  float64
	MNu   []float64 // eV per species; nil means all massless

	og0       float64
	nuY       []float64 // m_nu / (k_B T_nu0) of each massive species
	nMassless int
	ol0       float64
}

// Planck15 returns the Planck 2015 cosmology, including the 0.06 eV
// neutrino.
func Planck15() *FlatLambdaCDM {
	c, _ := NewFlatLambdaCDMWithNeutrinos(Planck15H0, Planck15Om0, Planck15Tcmb0, Planck15MNu)
	return c
}

// NewFlatLambdaCDM validates the parameters for a cosmology whose neutrinos
// are all massless.
func NewFlatLambdaCDM(h0, om0, tcmb0 float64) (*FlatLambdaCDM, error) {
	return NewFlatLambdaCDMWithNeutrinos(h0, om0, tcmb0, nil)
}

// NewFlatLambdaCDMWithNeutrinos validates the parameters and derives the
// photon, neutrino and dark-energy densities. mnu is either empty or lists
// NeutrinoSpecies non-negative masses in eV.
func NewFlatLambdaCDMWithNeutrinos(h0, om0, tcmb0 float64, mnu []float64) (*FlatLambdaCDM, error) {
	if !(h0 > 0) || math.IsInf(h0, 0) {
		return nil, fmt.Errorf("H0 must be positive, got %g", h0)
	}
	if !(om0 >= 0 && om0 <= 1) {
		return nil, fmt.Errorf("Om0 must be in [0, 1], got %g", om0)
	}
	if !(tcmb0 >= 0) || math.IsInf(tcmb0, 0) {
		return nil, errors.New("Tcmb0 must be a non-negative number")
	}
	if len(mnu) != 0 && len(mnu) != NeutrinoSpecies {
		return nil, fmt.Errorf("m_nu must list %d masses, got %d", NeutrinoSpecies, len(mnu))
	}
	for _, m := range mnu {
		if !(m >= 0) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("neutrino masses must be non-negative, got %g", m)
		}
	}

	c := &FlatLambdaCDM{H0: h0, Om0: om0, Tcmb0: tcmb0, Neff: Planck15Neff, nMassless: NeutrinoSpecies}
	if len(mnu) > 0 {
		c.MNu = append([]float64(nil), mnu...)
		c.nMassless = 0
		for _, m := range mnu {
			if m == 0 {
				c.nMassless++
			}
		}
	}
	if tcmb0 > 0 {
		h := h0 / 100
		c.og0 = photonDensityCoeff * math.Pow(tcmb0, 4) / (h * h)
		tnu := tnuPerTcmb * tcmb0
		for _, m := range mnu {
			if m > 0 {
				c.nuY = append(c.nuY, m/(boltzmannEV*tnu))
			}
		}
	}
	c.ol0 = 1 - om0 - c.og0*(1+c.nuRelativeDensity(0))
	return c, nil
}

// nuRelativeDensity is the neutrino energy density over the photon density
// at redshift z.
func (c *FlatLambdaCDM) nuRelativeDensity(z float64) float64 {
	if c.og0 == 0 {
		return 0
	}
	perSpecies := nuPerPhoton * c.Neff / NeutrinoSpecies
	rel := float64(c.nMassless)
	for _, y := range c.nuY {
		rel += math.Pow(1+math.Pow(nuFitK*y/(1+z), nuFitP), nuFitInvP)
	}
	return perSpecies * rel
}

// Onu0 returns the present-day neutrino density parameter.
func (c *FlatLambdaCDM) Onu0() float64 { return c.og0 * c.nuRelativeDensity(0) }

// HubbleDistance returns c/H0 in Mpc.
func (c *FlatLambdaCDM) HubbleDistance() float64 { return SpeedOfLight / c.H0 }

// E returns H(z)/H0.
func (c *FlatLambdaCDM) E(z float64) float64 {
	a := 1 + z
	return math.Sqrt(c.Om0*a*a*a + c.og0*(1+c.nuRelativeDensity(z))*a*a*a*a + c.ol0)
}

// ComovingDistance returns the line-of-sight comoving distance to redshift z
// in Mpc. Invalid redshifts yield NaN, which the estimator reports as a
// domain error.
func (c *FlatLambdaCDM) ComovingDistance(z float64) float64 {
	if math.IsNaN(z) || math.IsInf(z, 0) || z < 0 {
		return math.NaN()
	}
	if z == 0 {
		return 0
	}
	integral := quad.Fixed(func(x float64) float64 { return 1 / c.E(x) }, 0, z, quadNodes, nil, 0)
	return c.HubbleDistance() * integral
}
