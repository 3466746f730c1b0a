package cosmology

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoised redshifts.
const DefaultCacheSize = 4096

// Cached memoises a distance function. Spectroscopic reference samples often
// repeat redshifts to the quoted precision, so most lookups skip the
// integral. Safe for concurrent use.
type Cached struct {
	fn    func(z float64) float64
	cache *lru.Cache[float64, float64]
}

// NewCached wraps fn with an LRU of the given size (DefaultCacheSize if <= 0).
func NewCached(fn func(z float64) float64, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[float64, float64](size)
	if err != nil {
		return nil, err
	}
	return &Cached{fn: fn, cache: cache}, nil
}

// ComovingDistance returns fn(z), computing it at most once per cached z.
func (c *Cached) ComovingDistance(z float64) float64 {
	if d, ok := c.cache.Get(z); ok {
		return d
	}
	d := c.fn(z)
	if !math.IsNaN(d) {
		c.cache.Add(z, d)
	}
	return d
}

// Len returns the number of cached entries.
func (c *Cached) Len() int { return c.cache.Len() }
