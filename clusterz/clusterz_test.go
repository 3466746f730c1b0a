package clusterz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/Noofbiz/clusterz/catalogs"
	"github.com/Noofbiz/clusterz/geometry"
	"github.com/Noofbiz/clusterz/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDistance = 1900.0

func constDistance(d float64) DistanceFunc {
	return func(float64) float64 { return d }
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// atSeparation returns the point on the equator whose transverse separation
// from (1,0,0) at distance d is sepMpc.
func atSeparation(sepMpc, d float64) geometry.Point {
	a := sepMpc / d
	return geometry.Point{math.Cos(a), math.Sin(a), 0}
}

var origin = geometry.Point{1, 0, 0}

func newTestEstimator(t *testing.T, cfg Config, ref catalogs.Reference, unknown, random catalogs.Weighted, dist DistanceFunc) *Estimator {
	t.Helper()
	if cfg.Window == (SeparationWindow{}) {
		cfg.Window = DefaultWindow()
	}
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	e, err := NewEstimator(cfg, ref, unknown, random, dist)
	require.NoError(t, err)
	return e
}

func TestRunSingleGalaxyScenario(t *testing.T) {
	ref := catalogs.Reference{Points: []geometry.Point{origin}, Redshifts: []float64{0.5}}
	unknown := catalogs.Weighted{
		Points:  []geometry.Point{atSeparation(0.5, testDistance), atSeparation(1.5, testDistance)},
		Weights: []float64{2, 1},
	}
	random := catalogs.Weighted{Points: []geometry.Point{{0, 0, 1}}, Weights: []float64{1}}

	e := newTestEstimator(t, Config{Workers: 1}, ref, unknown, random, constDistance(testDistance))
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	pc := res.Pairs[0]
	assert.Equal(t, 0.5, pc.Redshift)
	assert.InDelta(t, 4.0, pc.Unknown, 1e-9)
	assert.Equal(t, 0.0, pc.Random)

	d := res.Diagnostics[0]
	assert.Equal(t, testDistance, d.ComovingMpc)
	assert.Equal(t, 1, d.Unknown.Candidates)
	assert.Equal(t, 1, d.Unknown.Retained)
	assert.Equal(t, 0, d.Random.Retained)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, EmptyResultWarning{Index: 0, Redshift: 0.5, Catalog: CatalogRandom}, res.Warnings[0])
	assert.NotEmpty(t, res.RunID)
}

func TestRunNoPairsGivesZeroes(t *testing.T) {
	ref := catalogs.Reference{
		Points:    []geometry.Point{origin, {0, 1, 0}},
		Redshifts: []float64{0.3, 0.7},
	}
	far := catalogs.Weighted{Points: []geometry.Point{{0, 0, 1}}, Weights: []float64{5}}

	e := newTestEstimator(t, Config{Workers: 2}, ref, far, far, constDistance(testDistance))
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	for i, pc := range res.Pairs {
		assert.Equal(t, 0.0, pc.Unknown, "unknown %d", i)
		assert.Equal(t, 0.0, pc.Random, "random %d", i)
	}
	assert.Len(t, res.Warnings, 4)
}

func TestRunEmptyCandidateCatalogs(t *testing.T) {
	ref := catalogs.Reference{Points: []geometry.Point{origin}, Redshifts: []float64{1}}
	e := newTestEstimator(t, Config{}, ref, catalogs.Weighted{}, catalogs.Weighted{}, constDistance(testDistance))
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []PairCount{{Redshift: 1}}, res.Pairs)
}

func TestRunEmptyReference(t *testing.T) {
	unknown := catalogs.Weighted{Points: []geometry.Point{origin}, Weights: []float64{1}}
	e := newTestEstimator(t, Config{ProgressInterval: 1}, catalogs.Reference{}, unknown, unknown, constDistance(testDistance))
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
	assert.Empty(t, res.Warnings)
}

func TestMinimumSeparationExcludesSelfAndClosePairs(t *testing.T) {
	ref := catalogs.Reference{Points: []geometry.Point{origin}, Redshifts: []float64{0.5}}
	unknown := catalogs.Weighted{
		Points: []geometry.Point{
			origin,                            // duplicate of the reference
			atSeparation(0.05, testDistance), // inside the minimum separation
			atSeparation(0.2, testDistance),  // inside the window
		},
		Weights: []float64{100, 100, 1},
	}
	e := newTestEstimator(t, Config{Workers: 1}, ref, unknown, unknown, constDistance(testDistance))
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 1/0.2, res.Pairs[0].Unknown, 1e-9)
	assert.Equal(t, 3, res.Diagnostics[0].Unknown.Candidates)
	assert.Equal(t, 1, res.Diagnostics[0].Unknown.Retained)
	assert.Equal(t, 0, res.Diagnostics[0].Unknown.Singular)
}

func TestAccumulateCountsSingularPairs(t *testing.T) {
	idx := spatial.New([]geometry.Point{origin, atSeparation(0.5, testDistance)})
	weights := []float64{7, 2}
	maxChord := geometry.ChordDistance(1 / testDistance)

	// With no lower cut the duplicate reaches the separation step.
	sum, err := Accumulate(origin, idx, weights, testDistance, math.Inf(1), maxChord)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Candidates)
	assert.Equal(t, 1, sum.Singular)
	assert.Equal(t, 1, sum.Retained)
	assert.InDelta(t, 4.0, sum.Sum, 1e-9)
}

func TestAccumulateLengthMismatch(t *testing.T) {
	idx := spatial.New([]geometry.Point{origin})
	_, err := Accumulate(origin, idx, nil, testDistance, 1, 0.1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, geometry.ErrValidation))
}

func TestPhysicalSeparationSingularity(t *testing.T) {
	_, err := physicalSeparation(origin, origin, testDistance, 3)
	var se *SingularityError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Candidate)
	assert.ErrorIs(t, err, ErrSingularPair)
}

func TestWeightScalingIsLinear(t *testing.T) {
	ref := catalogs.Reference{
		Points:    []geometry.Point{origin, geometry.FromRADec(0.005, 0.003)},
		Redshifts: []float64{0.4, 0.6},
	}
	unknown := catalogs.Weighted{
		Points: []geometry.Point{
			atSeparation(0.3, testDistance),
			atSeparation(0.6, testDistance),
			geometry.FromRADec(0.004, 0.01),
			geometry.FromRADec(-0.01, 0.002),
		},
		Weights: []float64{0.5, 1.25, 3, 0.75},
	}

	base := newTestEstimator(t, Config{Workers: 1}, ref, unknown, unknown, constDistance(testDistance))
	scaled := newTestEstimator(t, Config{Workers: 1}, ref, unknown.Scaled(2), unknown, constDistance(testDistance))

	r1, err := base.Run(context.Background())
	require.NoError(t, err)
	r2, err := scaled.Run(context.Background())
	require.NoError(t, err)

	for i := range r1.Pairs {
		assert.Equal(t, 2*r1.Pairs[i].Unknown, r2.Pairs[i].Unknown, "reference %d", i)
		assert.Equal(t, r1.Pairs[i].Random, r2.Pairs[i].Random, "reference %d", i)
	}
	assert.Greater(t, r1.Pairs[0].Unknown, 0.0)
}

func TestRandomTermUsesRandomCatalog(t *testing.T) {
	ref := catalogs.Reference{Points: []geometry.Point{origin}, Redshifts: []float64{0.5}}
	unknown := catalogs.Weighted{Points: []geometry.Point{atSeparation(0.5, testDistance)}, Weights: []float64{1}}
	random := catalogs.Weighted{
		Points:  []geometry.Point{atSeparation(0.25, testDistance), atSeparation(0.8, testDistance)},
		Weights: []float64{1, 4},
	}

	e := newTestEstimator(t, Config{Workers: 1}, ref, unknown, random, constDistance(testDistance))
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Pairs[0].Unknown, 1e-9)
	assert.InDelta(t, 1/0.25+4/0.8, res.Pairs[0].Random, 1e-9)
	assert.Equal(t, 2, res.Diagnostics[0].Random.Retained)
}

func TestRunPreservesReferenceOrder(t *testing.T) {
	const n = 200
	ref := catalogs.Reference{Points: make([]geometry.Point, n), Redshifts: make([]float64, n)}
	for i := 0; i < n; i++ {
		ref.Points[i] = geometry.FromRADec(float64(i)*0.01, 0)
		ref.Redshifts[i] = 0.1 + float64(i)*0.001
	}
	unknown := catalogs.Weighted{Points: ref.Points, Weights: make([]float64, n)}
	for i := range unknown.Weights {
		unknown.Weights[i] = float64(i%7) + 1
	}

	serial := newTestEstimator(t, Config{Workers: 1}, ref, unknown, unknown, constDistance(testDistance))
	parallel := newTestEstimator(t, Config{Workers: 8}, ref, unknown, unknown, constDistance(testDistance))

	r1, err := serial.Run(context.Background())
	require.NoError(t, err)
	r2, err := parallel.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, n, r2.Len())
	assert.Equal(t, ref.Redshifts, r2.Redshifts())
	assert.Equal(t, r1.Pairs, r2.Pairs)
	assert.Equal(t, r1.Warnings, r2.Warnings)
}

func TestRunDomainErrors(t *testing.T) {
	ref := catalogs.Reference{Points: []geometry.Point{origin, origin}, Redshifts: []float64{0.5, 0}}
	unknown := catalogs.Weighted{Points: []geometry.Point{origin}, Weights: []float64{1}}

	t.Run("zero distance", func(t *testing.T) {
		dist := func(z float64) float64 { return 1000 * z }
		e := newTestEstimator(t, Config{Workers: 2}, ref, unknown, unknown, dist)
		res, err := e.Run(context.Background())
		require.Error(t, err)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, geometry.ErrDomain)
		assert.Contains(t, err.Error(), "reference 1")
	})

	t.Run("angle beyond converter range", func(t *testing.T) {
		e := newTestEstimator(t, Config{Workers: 1}, ref, unknown, unknown, constDistance(0.5))
		_, err := e.Run(context.Background())
		var de *geometry.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, 2.0, de.Value)
	})

	t.Run("nan distance", func(t *testing.T) {
		e := newTestEstimator(t, Config{}, ref, unknown, unknown, constDistance(math.NaN()))
		_, err := e.Run(context.Background())
		assert.ErrorIs(t, err, geometry.ErrDomain)
	})
}

func TestRunHonoursCancellation(t *testing.T) {
	ref := catalogs.Reference{Points: []geometry.Point{origin, origin, origin}, Redshifts: []float64{0.1, 0.2, 0.3}}
	unknown := catalogs.Weighted{Points: []geometry.Point{origin}, Weights: []float64{1}}
	e := newTestEstimator(t, Config{Workers: 2}, ref, unknown, unknown, constDistance(testDistance))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEstimatorValidation(t *testing.T) {
	ref := catalogs.Reference{Points: []geometry.Point{origin}, Redshifts: []float64{0.5}}
	good := catalogs.Weighted{Points: []geometry.Point{origin}, Weights: []float64{1}}
	dist := constDistance(testDistance)

	cases := []struct {
		name    string
		cfg     Config
		ref     catalogs.Reference
		unknown catalogs.Weighted
		dist    DistanceFunc
	}{
		{"inverted window", Config{Window: SeparationWindow{MinMpc: 1, MaxMpc: 0.1}}, ref, good, dist},
		{"zero min", Config{Window: SeparationWindow{MinMpc: 0, MaxMpc: 1}}, ref, good, dist},
		{"negative workers", Config{Window: DefaultWindow(), Workers: -1}, ref, good, dist},
		{"redshift length", Config{Window: DefaultWindow()}, catalogs.Reference{Points: ref.Points}, good, dist},
		{"negative weight", Config{Window: DefaultWindow()}, ref, catalogs.Weighted{Points: good.Points, Weights: []float64{-1}}, dist},
		{"not unit", Config{Window: DefaultWindow()}, catalogs.Reference{Points: []geometry.Point{{2, 0, 0}}, Redshifts: []float64{1}}, good, dist},
		{"nil distance", Config{Window: DefaultWindow()}, ref, good, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEstimator(tc.cfg, tc.ref, tc.unknown, good, tc.dist)
			assert.Error(t, err)
		})
	}

	_, err := NewEstimator(Config{Window: DefaultWindow()}, ref, good, catalogs.Weighted{Points: good.Points}, dist)
	assert.ErrorIs(t, err, geometry.ErrValidation)
}

func TestResultTensor(t *testing.T) {
	res := &Result{Pairs: []PairCount{{0.1, 1, 2}, {0.2, 3, 4}}}
	tensor := res.ToGomlxTensor()
	assert.Equal(t, []int{2, 3}, tensor.Shape().Dimensions)
	assert.Equal(t, []float64{1, 3}, res.UnknownPairs())
	assert.Equal(t, []float64{2, 4}, res.RandomPairs())
}
