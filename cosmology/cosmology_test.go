package cosmology

import (
	"math"
	"sync/atomic"
	"testing"
)

func TestEinsteinDeSitterClosedForm(t *testing.T) {
	c, err := NewFlatLambdaCDM(70, 1, 0)
	if err != nil {
		t.Fatalf("NewFlatLambdaCDM failed: %v", err)
	}
	for _, z := range []float64{0.1, 0.5, 1, 2} {
		want := 2 * c.HubbleDistance() * (1 - 1/math.Sqrt(1+z))
		got := c.ComovingDistance(z)
		if math.Abs(got-want)/want > 1e-9 {
			t.Errorf("z=%g: got %.6f want %.6f", z, got, want)
		}
	}
}

func TestPlanck15Distances(t *testing.T) {
	c := Planck15()
	if d := c.ComovingDistance(0); d != 0 {
		t.Fatalf("D_c(0) = %g, want 0", d)
	}

	// Low-redshift Hubble law.
	z := 1e-4
	if d, want := c.ComovingDistance(z), SpeedOfLight*z/Planck15H0; math.Abs(d-want)/want > 1e-3 {
		t.Fatalf("D_c(%g) = %g, want about %g", z, d, want)
	}

	// Roughly 1.9-2.0 Gpc at z=0.5 for Planck-like parameters.
	if d := c.ComovingDistance(0.5); d < 1850 || d > 2000 {
		t.Fatalf("D_c(0.5) = %g Mpc outside the expected range", d)
	}

	prev := 0.0
	for i := 1; i <= 30; i++ {
		d := c.ComovingDistance(float64(i) * 0.1)
		if d <= prev {
			t.Fatalf("comoving distance not increasing at z=%g", float64(i)*0.1)
		}
		prev = d
	}
}

func TestInvalidRedshiftAndParams(t *testing.T) {
	c := Planck15()
	for _, z := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		if d := c.ComovingDistance(z); !math.IsNaN(d) {
			t.Errorf("ComovingDistance(%g) = %g, want NaN", z, d)
		}
	}
	if _, err := NewFlatLambdaCDM(-1, 0.3, 0); err == nil {
		t.Error("expected error for negative H0")
	}
	if _, err := NewFlatLambdaCDM(70, 1.5, 0); err == nil {
		t.Error("expected error for Om0 > 1")
	}
}

func TestCachedMemoises(t *testing.T) {
	var calls int64
	fn := func(z float64) float64 {
		atomic.AddInt64(&calls, 1)
		return 1000 * z
	}
	c, err := NewCached(fn, 2)
	if err != nil {
		t.Fatalf("NewCached failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if d := c.ComovingDistance(0.5); d != 500 {
			t.Fatalf("got %g want 500", d)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 underlying call, got %d", calls)
	}

	c.ComovingDistance(0.6)
	c.ComovingDistance(0.7) // evicts 0.5
	c.ComovingDistance(0.5)
	if calls != 4 {
		t.Fatalf("expected 4 underlying calls after eviction, got %d", calls)
	}
	if c.Len() != 2 {
		t.Fatalf("cache len = %d, want 2", c.Len())
	}
}

func TestPlanck15MassiveNeutrino(t *testing.T) {
	massive := Planck15()
	massless, err := NewFlatLambdaCDM(Planck15H0, Planck15Om0, Planck15Tcmb0)
	if err != nil {
		t.Fatalf("NewFlatLambdaCDM failed: %v", err)
	}

	// A non-relativistic neutrino contributes Omega_nu h^2 = m / 93.14 eV.
	h := Planck15H0 / 100
	want := 0.06 / 93.14 / (h * h)
	if got := massive.Onu0() - massless.Onu0(); math.Abs(got-want)/want > 0.02 {
		t.Fatalf("massive neutrino density %g, want about %g", got, want)
	}

	// The extra matter shortens distances by a few parts in 1e4.
	dm, d0 := massive.ComovingDistance(0.5), massless.ComovingDistance(0.5)
	if rel := (d0 - dm) / d0; rel < 1e-4 || rel > 2e-3 {
		t.Fatalf("relative distance shift %g out of range (massive %g, massless %g)", rel, dm, d0)
	}
	// astropy's Planck15 gives about 1945.5 Mpc.
	if dm < 1944.5 || dm > 1946.3 {
		t.Fatalf("D_c(0.5) = %g Mpc, want about 1945.5", dm)
	}

	// Flatness holds with the neutrino term included.
	if sum := massive.Om0 + massive.og0 + massive.Onu0() + massive.ol0; math.Abs(sum-1) > 1e-12 {
		t.Fatalf("density parameters sum to %g", sum)
	}
}

func TestNeutrinoMassValidation(t *testing.T) {
	if _, err := NewFlatLambdaCDMWithNeutrinos(70, 0.3, 2.7, []float64{0.06}); err == nil {
		t.Error("expected error for a single-species mass list")
	}
	if _, err := NewFlatLambdaCDMWithNeutrinos(70, 0.3, 2.7, []float64{0, 0, -0.1}); err == nil {
		t.Error("expected error for a negative mass")
	}
	c, err := NewFlatLambdaCDMWithNeutrinos(70, 0.3, 2.7, []float64{0, 0, 0})
	if err != nil {
		t.Fatalf("all-massless spectrum rejected: %v", err)
	}
	m, _ := NewFlatLambdaCDM(70, 0.3, 2.7)
	if c.Onu0() != m.Onu0() {
		t.Errorf("zero masses should match the massless case: %g vs %g", c.Onu0(), m.Onu0())
	}
}
