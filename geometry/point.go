// Package geometry holds the unit-sphere primitives shared by the pair
// counter: points, angle/chord conversions and the precomputed Converter.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// UnitTolerance is how far a point's norm may deviate from 1.
const UnitTolerance = 1e-6

// Point is a 3-D unit vector: the Cartesian projection of a sky position
// onto the unit sphere.
type Point [3]float64

// NewPoint returns the point (x, y, z) after checking that it lies on the
// unit sphere.
func NewPoint(x, y, z float64) (Point, error) {
	p := Point{x, y, z}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// FromRADec converts right ascension and declination, both in degrees, to a
// unit vector.
func FromRADec(raDeg, decDeg float64) Point {
	ra := raDeg * math.Pi / 180
	dec := decDeg * math.Pi / 180
	return Point{
		math.Cos(dec) * math.Cos(ra),
		math.Cos(dec) * math.Sin(ra),
		math.Sin(dec),
	}
}

// Validate reports whether p is finite and of unit norm.
func (p Point) Validate() error {
	for _, c := range p {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return &ValidationError{Field: "point", Reason: fmt.Sprintf("non-finite component in %v", p)}
		}
	}
	if n := p.Norm(); math.Abs(n-1) > UnitTolerance {
		return &ValidationError{Field: "point", Reason: fmt.Sprintf("norm %.9f is not 1", n)}
	}
	return nil
}

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 { return floats.Norm(p[:], 2) }

// Dot returns the dot product, which for two unit vectors is the cosine of
// the angle between them.
func (p Point) Dot(q Point) float64 { return floats.Dot(p[:], q[:]) }

// Chord returns the straight-line distance between p and q.
func (p Point) Chord(q Point) float64 { return floats.Distance(p[:], q[:], 2) }

// Angle returns the angle between p and q in radians. It equals
// arccos(p·q) but stays accurate when the points are nearly coincident.
func (p Point) Angle(q Point) float64 {
	cx := p[1]*q[2] - p[2]*q[1]
	cy := p[2]*q[0] - p[0]*q[2]
	cz := p[0]*q[1] - p[1]*q[0]
	return math.Atan2(math.Sqrt(cx*cx+cy*cy+cz*cz), p.Dot(q))
}

// RADec returns the sky coordinates of p in degrees, ra in [0, 360).
func (p Point) RADec() (raDeg, decDeg float64) {
	ra := math.Atan2(p[1], p[0]) * 180 / math.Pi
	if ra < 0 {
		ra += 360
	}
	dec := math.Asin(math.Max(-1, math.Min(1, p[2]))) * 180 / math.Pi
	return ra, dec
}

// ChordDistance is the exact chord length subtending theta on the unit
// sphere, sqrt(2 - 2cos(theta)) written in its cancellation-free form.
func ChordDistance(theta float64) float64 { return 2 * math.Sin(theta/2) }

// AngleFromChord is the exact inverse of ChordDistance.
func AngleFromChord(chord float64) float64 { return 2 * math.Asin(chord/2) }
