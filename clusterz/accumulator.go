package clusterz

import (
	"errors"
	"fmt"
	"math"

	"github.com/Noofbiz/clusterz/catalogs"
	"github.com/Noofbiz/clusterz/geometry"
	"github.com/Noofbiz/clusterz/spatial"
)

// ErrSingularPair marks a pair with zero physical separation. It never
// escapes Accumulate: such pairs are dropped and counted.
var ErrSingularPair = errors.New("zero physical separation")

// SingularityError describes one excluded pair.
type SingularityError struct {
	Candidate  int
	Separation float64
}

func (e *SingularityError) Error() string {
	return fmt.Sprintf("candidate %d: separation %g Mpc", e.Candidate, e.Separation)
}

func (e *SingularityError) Unwrap() error { return ErrSingularPair }

// PairSum is the reduced pair count for one reference galaxy against one
// catalog.
type PairSum struct {
	Sum        float64 // sum of weight / separation over retained pairs
	Candidates int     // returned by the chord-radius query
	Retained   int     // survived the minimum-separation cut and contributed
	Singular   int     // dropped for zero separation
}

// Accumulate sums weight/separation over every indexed point that lies
// inside the separation window around ref.
//
// maxChord bounds the index query (the maximum separation). minCos is the
// cosine of the minimum angle: a candidate is kept only if its cosine with
// ref is strictly below it, so pairs closer than the minimum separation,
// including exact duplicates of ref, never contribute. comovingMpc turns
// angles into transverse comoving separations.
func Accumulate(ref geometry.Point, idx *spatial.Index, weights []float64, comovingMpc, minCos, maxChord float64) (PairSum, error) {
	var out PairSum
	if len(weights) != idx.Len() {
		return out, &catalogs.ValidationError{
			Catalog: "candidate",
			Index:   -1,
			Field:   "length",
			Reason:  fmt.Sprintf("%d weights for %d indexed points", len(weights), idx.Len()),
		}
	}

	near, err := idx.WithinPoint(ref, maxChord)
	if err != nil {
		return out, err
	}
	out.Candidates = len(near)

	for _, j := range near {
		cand := idx.Point(j)
		if ref.Dot(cand) >= minCos {
			continue
		}
		sep, err := physicalSeparation(ref, cand, comovingMpc, j)
		if errors.Is(err, ErrSingularPair) {
			out.Singular++
			continue
		}
		out.Sum += weights[j] / sep
		out.Retained++
	}
	return out, nil
}

// physicalSeparation returns the small-angle transverse separation in Mpc.
func physicalSeparation(a, b geometry.Point, comovingMpc float64, candidate int) (float64, error) {
	sep := a.Angle(b) * comovingMpc
	if !(sep > 0) || math.IsInf(sep, 0) {
		return 0, &SingularityError{Candidate: candidate, Separation: sep}
	}
	return sep, nil
}
