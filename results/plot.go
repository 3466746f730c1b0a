package results

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/Noofbiz/clusterz/clusterz"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot renders the unknown (blue) and random (red) pair sums against
// reference redshift. The image format follows path's extension (png, svg,
// pdf, ...).
func Plot(path string, res *clusterz.Result) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}
	unknown, random := pairXYs(res)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Raw clustering-z pairs (%g-%g Mpc)", res.Window.MinMpc, res.Window.MaxMpc)
	p.X.Label.Text = "reference redshift"
	p.Y.Label.Text = "sum of weight / separation"

	us, err := plotter.NewScatter(unknown)
	if err != nil {
		return err
	}
	us.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	us.GlyphStyle.Radius = vg.Points(2)
	p.Add(us)
	p.Legend.Add("unknown", us)

	rs, err := plotter.NewScatter(random)
	if err != nil {
		return err
	}
	rs.GlyphStyle.Color = color.RGBA{R: 200, G: 30, B: 30, A: 180}
	rs.GlyphStyle.Radius = vg.Points(1.6)
	p.Add(rs)
	p.Legend.Add("random", rs)

	p.Add(plotter.NewGrid())

	xmin, xmax, ymin, ymax := autoRange(append(append(plotter.XYs{}, unknown...), random...))
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// pairXYs returns both series sorted by redshift.
func pairXYs(res *clusterz.Result) (unknown, random plotter.XYs) {
	pairs := make([]clusterz.PairCount, len(res.Pairs))
	copy(pairs, res.Pairs)
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Redshift < pairs[j].Redshift })

	unknown = make(plotter.XYs, len(pairs))
	random = make(plotter.XYs, len(pairs))
	for i, pc := range pairs {
		unknown[i] = plotter.XY{X: pc.Redshift, Y: pc.Unknown}
		random[i] = plotter.XY{X: pc.Redshift, Y: pc.Random}
	}
	return unknown, random
}

// autoRange computes padded min/max for X and Y for a set of points.
func autoRange(xs plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	if len(xs) == 0 {
		return 0, 1, 0, 1
	}
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, p := range xs {
		xmin = math.Min(xmin, p.X)
		xmax = math.Max(xmax, p.X)
		ymin = math.Min(ymin, p.Y)
		ymax = math.Max(ymax, p.Y)
	}
	padx := (xmax - xmin) * 0.06
	pady := (ymax - ymin) * 0.06
	if padx == 0 {
		padx = 0.05
	}
	if pady == 0 {
		pady = 1
	}
	return xmin - padx, xmax + padx, ymin - pady, ymax + pady
}
