package geometry

import (
	"math"

	"gonum.org/v1/gonum/interp"
)

// ConverterSamples is the number of grid points used to build the splines.
const ConverterSamples = 10000

// MaxAngle is the largest angular separation a Converter accepts.
const MaxAngle = math.Pi / 2

// MaxChord is the chord length subtending MaxAngle.
const MaxChord = math.Sqrt2

// Converter maps angular separation to chord distance and back using a pair
// of monotone cubic splines sampled once on [0, MaxAngle]. It is immutable
// after construction and safe for concurrent use.
type Converter struct {
	toChord interp.FritschButland
	toAngle interp.FritschButland
}

// NewConverter samples the angle/chord relation and fits both splines.
func NewConverter() (*Converter, error) {
	angles := make([]float64, ConverterSamples)
	chords := make([]float64, ConverterSamples)
	step := MaxAngle / float64(ConverterSamples-1)
	for i := range angles {
		angles[i] = float64(i) * step
		chords[i] = ChordDistance(angles[i])
	}
	// Pin the end points so the domain edges are exact.
	angles[ConverterSamples-1] = MaxAngle
	chords[ConverterSamples-1] = MaxChord

	c := &Converter{}
	if err := c.toChord.Fit(angles, chords); err != nil {
		return nil, err
	}
	if err := c.toAngle.Fit(chords, angles); err != nil {
		return nil, err
	}
	return c, nil
}

// AngleToChord returns the chord distance subtending theta radians.
func (c *Converter) AngleToChord(theta float64) (float64, error) {
	if !(theta >= 0 && theta <= MaxAngle) {
		return 0, &DomainError{Op: "angle_to_chord", Value: theta, Lo: 0, Hi: MaxAngle}
	}
	return c.toChord.Predict(theta), nil
}

// ChordToAngle returns the angle in radians subtended by a chord.
func (c *Converter) ChordToAngle(chord float64) (float64, error) {
	if !(chord >= 0 && chord <= MaxChord) {
		return 0, &DomainError{Op: "chord_to_angle", Value: chord, Lo: 0, Hi: MaxChord}
	}
	return c.toAngle.Predict(chord), nil
}
