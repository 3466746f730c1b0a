// Package clusterz computes raw clustering-redshift pair counts: for every
// reference galaxy of known redshift it sums inverse-separation weighted
// pairs with an unknown sample and with a random catalog inside a fixed
// comoving separation window.
package clusterz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Noofbiz/clusterz/catalogs"
	"github.com/Noofbiz/clusterz/geometry"
	"github.com/Noofbiz/clusterz/spatial"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Default separation window in comoving Mpc.
const (
	DefaultMinSepMpc = 0.1
	DefaultMaxSepMpc = 1.0
)

// DistanceFunc returns the comoving distance in Mpc to redshift z.
type DistanceFunc func(z float64) float64

// SeparationWindow is the comoving transverse separation range in Mpc over
// which pairs are counted. It is fixed for a run; the angular window it
// implies changes with each reference redshift.
type SeparationWindow struct {
	MinMpc float64
	MaxMpc float64
}

// DefaultWindow returns the 0.1-1.0 Mpc window.
func DefaultWindow() SeparationWindow {
	return SeparationWindow{MinMpc: DefaultMinSepMpc, MaxMpc: DefaultMaxSepMpc}
}

// Validate checks that both bounds are positive and finite and Min < Max.
func (w SeparationWindow) Validate() error {
	if !(w.MinMpc > 0) || math.IsInf(w.MinMpc, 0) {
		return &geometry.ValidationError{Field: "min_sep_mpc", Reason: fmt.Sprintf("%g must be positive and finite", w.MinMpc)}
	}
	if !(w.MaxMpc > 0) || math.IsInf(w.MaxMpc, 0) {
		return &geometry.ValidationError{Field: "max_sep_mpc", Reason: fmt.Sprintf("%g must be positive and finite", w.MaxMpc)}
	}
	if w.MinMpc >= w.MaxMpc {
		return &geometry.ValidationError{Field: "separation window", Reason: fmt.Sprintf("min %g must be below max %g", w.MinMpc, w.MaxMpc)}
	}
	return nil
}

// Config holds the run options.
type Config struct {
	Window SeparationWindow

	// Workers is the size of the per-galaxy worker pool. 0 uses NumCPU; 1
	// processes galaxies strictly in order.
	Workers int

	// ProgressInterval controls how often progress is logged. 0 disables it.
	ProgressInterval time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *Metrics
}

// Estimator owns the converter and the spatial indices for one run over a
// fixed set of catalogs. All of its state is read-only once built.
type Estimator struct {
	cfg Config
	log *slog.Logger

	ref     catalogs.Reference
	unknown catalogs.Weighted
	random  catalogs.Weighted
	dist    DistanceFunc

	conv       *geometry.Converter
	unknownIdx *spatial.Index
	randomIdx  *spatial.Index
}

// NewEstimator validates the inputs and builds the converter and both
// spatial indices. Catalogs are not copied and must not be mutated while
// the Estimator is in use.
func NewEstimator(cfg Config, ref catalogs.Reference, unknown, random catalogs.Weighted, dist DistanceFunc) (*Estimator, error) {
	if dist == nil {
		return nil, errors.New("distance function cannot be nil")
	}
	if err := cfg.Window.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if unknown.Name == "" {
		unknown.Name = CatalogUnknown
	}
	if random.Name == "" {
		random.Name = CatalogRandom
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if err := unknown.Validate(); err != nil {
		return nil, err
	}
	if err := random.Validate(); err != nil {
		return nil, err
	}

	conv, err := geometry.NewConverter()
	if err != nil {
		return nil, fmt.Errorf("build angle/chord converter: %w", err)
	}

	return &Estimator{
		cfg:        cfg,
		log:        cfg.Logger,
		ref:        ref,
		unknown:    unknown,
		random:     random,
		dist:       dist,
		conv:       conv,
		unknownIdx: spatial.New(unknown.Points),
		randomIdx:  spatial.New(random.Points),
	}, nil
}

// Window returns the separation window in use.
func (e *Estimator) Window() SeparationWindow { return e.cfg.Window }

// Run counts pairs for every reference galaxy. The result is index-aligned
// with the reference catalog. Any validation or domain error aborts the
// whole run and no partial result is returned.
func (e *Estimator) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	n := e.ref.Len()
	res := &Result{
		RunID:       uuid.NewString(),
		Window:      e.cfg.Window,
		Pairs:       make([]PairCount, n),
		Diagnostics: make([]Diagnostics, n),
	}

	workers := e.cfg.Workers
	if workers > n {
		workers = n
	}
	e.log.Info("[RawClusteringZ] starting",
		"run_id", res.RunID,
		"reference", n,
		"unknown", e.unknown.Len(),
		"random", e.random.Len(),
		"min_sep_mpc", e.cfg.Window.MinMpc,
		"max_sep_mpc", e.cfg.Window.MaxMpc,
		"workers", workers)

	var done int64
	stopProgress := e.startProgress(&done, n)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				pc, diag, err := e.countReference(i)
				if err != nil {
					return err
				}
				// Each job owns slot i, so no locking is needed.
				res.Pairs[i] = pc
				res.Diagnostics[i] = diag
				atomic.AddInt64(&done, 1)
			}
			return nil
		})
	}
	err := g.Wait()
	stopProgress()

	elapsed := time.Since(start)
	if err != nil {
		e.cfg.Metrics.observeRun(StatusFailure, elapsed.Seconds())
		e.log.Error("[RawClusteringZ] run failed", "run_id", res.RunID, "error", err)
		return nil, err
	}
	e.cfg.Metrics.observeRun(StatusSuccess, elapsed.Seconds())

	res.Warnings = collectWarnings(res)
	if len(res.Warnings) > 0 {
		e.log.Warn("[RawClusteringZ] reference galaxies without pairs", "count", len(res.Warnings))
		for _, w := range res.Warnings {
			e.log.Debug("[RawClusteringZ] empty result", "warning", w.String())
		}
	}
	e.log.Info("[RawClusteringZ] completed", "run_id", res.RunID, "reference", n, "elapsed", elapsed)
	return res, nil
}

// countReference computes both pair sums for reference galaxy i.
func (e *Estimator) countReference(i int) (PairCount, Diagnostics, error) {
	z := e.ref.Redshifts[i]
	point := e.ref.Points[i]

	d := e.dist(z)
	if !(d > 0) || math.IsInf(d, 0) {
		return PairCount{}, Diagnostics{}, fmt.Errorf("reference %d: %w", i, &geometry.DomainError{
			Op:    fmt.Sprintf("comoving distance at z=%g", z),
			Value: d,
			Lo:    math.SmallestNonzeroFloat64,
			Hi:    math.MaxFloat64,
		})
	}

	minCos := math.Cos(e.cfg.Window.MinMpc / d)
	maxChord, err := e.conv.AngleToChord(e.cfg.Window.MaxMpc / d)
	if err != nil {
		return PairCount{}, Diagnostics{}, fmt.Errorf("reference %d (z=%g, D_c=%g Mpc): %w", i, z, d, err)
	}

	unk, err := Accumulate(point, e.unknownIdx, e.unknown.Weights, d, minCos, maxChord)
	if err != nil {
		return PairCount{}, Diagnostics{}, fmt.Errorf("reference %d: %s pairs: %w", i, CatalogUnknown, err)
	}
	rnd, err := Accumulate(point, e.randomIdx, e.random.Weights, d, minCos, maxChord)
	if err != nil {
		return PairCount{}, Diagnostics{}, fmt.Errorf("reference %d: %s pairs: %w", i, CatalogRandom, err)
	}

	e.cfg.Metrics.incReferences()
	e.cfg.Metrics.observePair(CatalogUnknown, unk)
	e.cfg.Metrics.observePair(CatalogRandom, rnd)

	return PairCount{Redshift: z, Unknown: unk.Sum, Random: rnd.Sum},
		Diagnostics{ComovingMpc: d, Unknown: unk, Random: rnd},
		nil
}

// startProgress logs processed/total every ProgressInterval until the
// returned stop function is called.
func (e *Estimator) startProgress(done *int64, n int) (stop func()) {
	if e.cfg.ProgressInterval <= 0 || n == 0 {
		return func() {}
	}
	ticker := time.NewTicker(e.cfg.ProgressInterval)
	quit := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d := atomic.LoadInt64(done)
				e.log.Info(fmt.Sprintf("[RawClusteringZ] progress: %d/%d (%.1f%%)", d, n, float64(d)/float64(n)*100))
			case <-quit:
				return
			}
		}
	}()
	return func() {
		close(quit)
		<-finished
	}
}

// collectWarnings lists galaxies with no retained pairs, in catalog order.
func collectWarnings(res *Result) []EmptyResultWarning {
	var out []EmptyResultWarning
	for i, d := range res.Diagnostics {
		z := res.Pairs[i].Redshift
		if d.Unknown.Retained == 0 {
			out = append(out, EmptyResultWarning{Index: i, Redshift: z, Catalog: CatalogUnknown})
		}
		if d.Random.Retained == 0 {
			out = append(out, EmptyResultWarning{Index: i, Redshift: z, Catalog: CatalogRandom})
		}
	}
	return out
}
