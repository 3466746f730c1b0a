// Package spatial provides the radius-query index used to find candidate
// pairs around each reference galaxy.
package spatial

import (
	"fmt"
	"math"
	"sort"

	"github.com/Noofbiz/clusterz/geometry"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Dims is the dimensionality of indexed points.
const Dims = 3

// keeperSlack widens the kd-tree keeper radius slightly so that points lying
// exactly on the query radius are never lost to sentinel tie handling. Every
// candidate is re-checked against the exact radius afterwards.
const keeperSlack = 1e-12

// node is a point stored in the tree together with its position in the
// caller's slice.
type node struct {
	coord [Dims]float64
	idx   int
}

// Compare implements kdtree.Comparable.
func (n node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return n.coord[d] - c.(node).coord[d]
}

// Dims implements kdtree.Comparable.
func (n node) Dims() int { return Dims }

// Distance implements kdtree.Comparable. The tree prunes with squared plane
// offsets, so this is the squared Euclidean distance.
func (n node) Distance(c kdtree.Comparable) float64 {
	o := c.(node)
	var sum float64
	for i := range n.coord {
		d := n.coord[i] - o.coord[i]
		sum += d * d
	}
	return sum
}

// nodes implements kdtree.Interface.
type nodes []node

func (p nodes) Index(i int) kdtree.Comparable         { return p[i] }
func (p nodes) Len() int                              { return len(p) }
func (p nodes) Slice(start, end int) kdtree.Interface { return p[start:end] }
func (p nodes) Pivot(d kdtree.Dim) int {
	pl := plane{Dim: d, nodes: p}
	return kdtree.Partition(pl, kdtree.MedianOfMedians(pl))
}

// plane sorts nodes along a single dimension for pivot selection.
type plane struct {
	kdtree.Dim
	nodes
}

func (p plane) Less(i, j int) bool {
	return p.nodes[i].coord[p.Dim] < p.nodes[j].coord[p.Dim]
}
func (p plane) Swap(i, j int) { p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i] }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{Dim: p.Dim, nodes: p.nodes[start:end]}
}

// Index answers "all points within a chord radius" queries over a fixed
// point set. It is read-only after New and safe for concurrent queries.
type Index struct {
	tree   *kdtree.Tree
	points []geometry.Point
}

// New builds an index over points. The slice is copied; indices returned by
// queries refer to positions in points.
func New(points []geometry.Point) *Index {
	pts := make([]geometry.Point, len(points))
	copy(pts, points)

	ns := make(nodes, len(pts))
	for i, p := range pts {
		ns[i] = node{coord: p, idx: i}
	}

	idx := &Index{points: pts}
	if len(ns) > 0 {
		idx.tree = kdtree.New(ns, false)
	}
	return idx
}

// Len returns the number of indexed points.
func (x *Index) Len() int { return len(x.points) }

// Point returns the i-th indexed point.
func (x *Index) Point(i int) geometry.Point { return x.points[i] }

// Within returns, in ascending order, the indices of every point whose chord
// distance to center is at most radius.
func (x *Index) Within(center []float64, radius float64) ([]int, error) {
	if len(center) != Dims {
		return nil, &geometry.ValidationError{
			Field:  "center",
			Reason: fmt.Sprintf("expected %d dimensions, got %d", Dims, len(center)),
		}
	}
	var q node
	for i, c := range center {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, &geometry.ValidationError{Field: "center", Reason: "non-finite component"}
		}
		q.coord[i] = c
	}
	if math.IsNaN(radius) || radius < 0 {
		return nil, &geometry.ValidationError{Field: "radius", Reason: fmt.Sprintf("%g is not a non-negative number", radius)}
	}
	if x.tree == nil {
		return nil, nil
	}

	r2 := radius * radius
	keep := kdtree.NewDistKeeper(r2 + keeperSlack*(r2+1))
	x.tree.NearestSet(keep, q)

	out := make([]int, 0, len(keep.Heap))
	for _, c := range keep.Heap {
		if c.Comparable == nil || c.Dist > r2 {
			continue
		}
		out = append(out, c.Comparable.(node).idx)
	}
	sort.Ints(out)
	return out, nil
}

// WithinPoint is Within for a typed center.
func (x *Index) WithinPoint(center geometry.Point, radius float64) ([]int, error) {
	return x.Within(center[:], radius)
}
