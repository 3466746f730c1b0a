package catalogs

import (
	"math/rand"

	"github.com/Noofbiz/clusterz/geometry"
)

// ResampleWeights draws n weights with replacement from weights. The draw is
// fully determined by seed, which ties a random catalog's weight statistics to
// the unknown sample reproducibly.
func ResampleWeights(weights []float64, n int, seed int64) ([]float64, error) {
	if n < 0 {
		return nil, &ValidationError{Catalog: "random", Index: -1, Field: "size", Reason: "negative sample size"}
	}
	if n > 0 && len(weights) == 0 {
		return nil, &ValidationError{Catalog: "unknown", Index: -1, Field: "weight", Reason: "cannot resample from an empty weight set"}
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = weights[rng.Intn(len(weights))]
	}
	return out, nil
}

// WeightRandoms builds the random catalog from bare positions by resampling
// the unknown catalog's weights, one draw per random point.
func WeightRandoms(points []geometry.Point, unknown Weighted, seed int64) (Weighted, error) {
	weights, err := ResampleWeights(unknown.Weights, len(points), seed)
	if err != nil {
		return Weighted{}, err
	}
	return Weighted{Name: "random", Points: points, Weights: weights}, nil
}
