// Package catalogs holds the in-memory reference and weighted galaxy
// catalogs consumed by the pair counter, plus CSV loaders for them.
//
// Layout and intended usage:
//
// Reference
//   - One entry per reference galaxy: unit-sphere position and spectroscopic
//     redshift. Order is significant and is preserved in pair-count output.
//
// Weighted
//   - One entry per unknown-sample (or random) object: position and a
//     non-negative statistical weight.
//   - Random catalogs usually arrive without weights; ResampleWeights draws
//     them from the unknown catalog's weights.
package catalogs

import (
	"fmt"
	"math"

	"github.com/Noofbiz/clusterz/geometry"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ValidationError reports a malformed catalog entry.
type ValidationError struct {
	Catalog string
	Index   int // -1 when the problem is not tied to a single row
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s catalog: invalid %s: %s", e.Catalog, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s catalog: row %d: invalid %s: %s", e.Catalog, e.Index, e.Field, e.Reason)
}

// Unwrap lets errors.Is match geometry.ErrValidation.
func (e *ValidationError) Unwrap() error { return geometry.ErrValidation }

// Reference is the spectroscopic catalog: positions with known redshifts.
type Reference struct {
	Points    []geometry.Point
	Redshifts []float64
}

// Len returns the number of reference galaxies.
func (r Reference) Len() int { return len(r.Points) }

// Validate checks lengths, point norms and redshifts.
func (r Reference) Validate() error {
	if len(r.Points) != len(r.Redshifts) {
		return &ValidationError{
			Catalog: "reference",
			Index:   -1,
			Field:   "length",
			Reason:  fmt.Sprintf("%d points but %d redshifts", len(r.Points), len(r.Redshifts)),
		}
	}
	if err := validatePoints("reference", r.Points); err != nil {
		return err
	}
	return validateNonNegative("reference", "redshift", r.Redshifts)
}

// Weighted is an unknown-sample or random catalog: positions with weights.
type Weighted struct {
	Name    string
	Points  []geometry.Point
	Weights []float64
}

// Len returns the number of objects.
func (w Weighted) Len() int { return len(w.Points) }

// Validate checks lengths, point norms and weights.
func (w Weighted) Validate() error {
	name := w.Name
	if name == "" {
		name = "weighted"
	}
	if len(w.Points) != len(w.Weights) {
		return &ValidationError{
			Catalog: name,
			Index:   -1,
			Field:   "length",
			Reason:  fmt.Sprintf("%d points but %d weights", len(w.Points), len(w.Weights)),
		}
	}
	if err := validatePoints(name, w.Points); err != nil {
		return err
	}
	return validateNonNegative(name, "weight", w.Weights)
}

// Scaled returns a copy of w with every weight multiplied by k.
func (w Weighted) Scaled(k float64) Weighted {
	weights := make([]float64, len(w.Weights))
	copy(weights, w.Weights)
	floats.Scale(k, weights)
	return Weighted{Name: w.Name, Points: w.Points, Weights: weights}
}

// WeightSummary describes a catalog's weight distribution.
type WeightSummary struct {
	Count  int
	Total  float64
	Mean   float64
	StdDev float64
}

// Summary returns count, total, mean and standard deviation of the weights.
func (w Weighted) Summary() WeightSummary {
	s := WeightSummary{Count: len(w.Weights)}
	if s.Count == 0 {
		return s
	}
	s.Total = floats.Sum(w.Weights)
	if s.Count == 1 {
		s.Mean = s.Total
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(w.Weights, nil)
	return s
}

func validatePoints(catalog string, pts []geometry.Point) error {
	for i, p := range pts {
		if err := p.Validate(); err != nil {
			return &ValidationError{Catalog: catalog, Index: i, Field: "point", Reason: err.Error()}
		}
	}
	return nil
}

func validateNonNegative(catalog, field string, vals []float64) error {
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &ValidationError{
				Catalog: catalog,
				Index:   i,
				Field:   field,
				Reason:  fmt.Sprintf("%g is not a non-negative finite number", v),
			}
		}
	}
	return nil
}
