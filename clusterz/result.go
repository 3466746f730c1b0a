package clusterz

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// PairCount is the output row for one reference galaxy.
type PairCount struct {
	Redshift float64
	Unknown  float64
	Random   float64
}

// Diagnostics keeps the per-catalog counters behind a PairCount.
type Diagnostics struct {
	ComovingMpc float64
	Unknown     PairSum
	Random      PairSum
}

// EmptyResultWarning flags a reference galaxy with no pairs in one catalog.
// Such galaxies are valid and keep a zero sum.
type EmptyResultWarning struct {
	Index    int
	Redshift float64
	Catalog  string
}

func (w EmptyResultWarning) String() string {
	return fmt.Sprintf("reference %d (z=%g): no %s pairs", w.Index, w.Redshift, w.Catalog)
}

// Result is the pair-count output of one run. Pairs and Diagnostics are
// index-aligned with the reference catalog.
type Result struct {
	RunID       string
	Window      SeparationWindow
	Pairs       []PairCount
	Diagnostics []Diagnostics
	Warnings    []EmptyResultWarning
}

// Len returns the number of reference galaxies covered.
func (r *Result) Len() int { return len(r.Pairs) }

// Redshifts returns the reference redshift column.
func (r *Result) Redshifts() []float64 {
	out := make([]float64, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = p.Redshift
	}
	return out
}

// UnknownPairs returns the unknown-sample pair-sum column.
func (r *Result) UnknownPairs() []float64 {
	out := make([]float64, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = p.Unknown
	}
	return out
}

// RandomPairs returns the random-catalog pair-sum column.
func (r *Result) RandomPairs() []float64 {
	out := make([]float64, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = p.Random
	}
	return out
}

// ToGomlxTensor returns the result as a [N, 3] tensor with columns
// redshift, unknown pairs, random pairs, ready to feed a gomlx calibration
// model.
func (r *Result) ToGomlxTensor() *tensors.Tensor {
	flat := make([]float64, 0, 3*len(r.Pairs))
	for _, p := range r.Pairs {
		flat = append(flat, p.Redshift, p.Unknown, p.Random)
	}
	return tensors.FromFlatDataAndDimensions(flat, len(r.Pairs), 3)
}
