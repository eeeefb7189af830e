// Package topography derives a slope proxy per zone from an elevation
// raster, with a seeded synthetic fallback when no raster is usable.
package topography

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/geo"
	"github.com/sells-group/sits/internal/model"
)

// Slope class thresholds.
const (
	ConditionedFrom    = 5.0
	NonUrbanizableFrom = 15.0
)

// Classify maps a slope statistic to its class: below 5 viable, below 15
// conditioned, otherwise non-urbanizable.
func Classify(v float64) model.SlopeClass {
	switch {
	case v < ConditionedFrom:
		return model.SlopeViable
	case v < NonUrbanizableFrom:
		return model.SlopeConditioned
	default:
		return model.SlopeNonUrbanizable
	}
}

// Options configures the analyzer.
type Options struct {
	Seed        uint64
	FallbackMin float64
	FallbackMax float64
	Scale       float64
	NodataFloor float64
}

// DefaultOptions returns the standard parameters.
func DefaultOptions() Options {
	return Options{Seed: 42, FallbackMin: 1, FallbackMax: 30, Scale: 5, NodataFloor: -9999}
}

// Result holds one slope statistic per zone, in zone order.
type Result struct {
	Values []float64
	Source model.SlopeSource
	Failed int // zones that fell back to 0 while sampling the raster
}

// Analyzer computes zonal slope statistics.
type Analyzer struct {
	opts  Options
	space *geo.Space
}

// NewAnalyzer returns an analyzer that runs spatial tests in s.
func NewAnalyzer(s *geo.Space, opts Options) *Analyzer {
	return &Analyzer{opts: opts, space: s}
}

// Synthetic draws n values uniformly from [FallbackMin, FallbackMax) with a
// PCG generator seeded from Seed. The sequence depends only on the seed
// and n.
func (a *Analyzer) Synthetic(n int) []float64 {
	rng := rand.New(rand.NewPCG(a.opts.Seed, a.opts.Seed))
	span := a.opts.FallbackMax - a.opts.FallbackMin
	out := make([]float64, n)
	for i := range out {
		out[i] = a.opts.FallbackMin + rng.Float64()*span
	}
	return out
}

func (a *Analyzer) synthetic(n int, reason string) Result {
	zap.L().Warn("topography: using synthetic slope fallback",
		zap.String("component", "topography"),
		zap.String("reason", reason),
		zap.Uint64("seed", a.opts.Seed),
		zap.Int("zones", n),
	)
	return Result{Values: a.Synthetic(n), Source: model.SlopeFromSynthetic}
}

// Analyze computes the slope statistic of every zone (WGS84 geometries)
// against r. A nil or unusable raster yields the synthetic fallback. A zone
// that cannot be sampled gets 0 and the rest continue. Only context
// cancellation is returned as an error.
func (a *Analyzer) Analyze(ctx context.Context, r Raster, zones []geom.T) (Result, error) {
	log := zap.L().With(zap.String("component", "topography"))
	if r == nil {
		return a.synthetic(len(zones), "no elevation raster"), nil
	}

	gt := r.GeoTransform()
	if gt[1] == 0 || gt[5] == 0 || gt[2] != 0 || gt[4] != 0 {
		return a.synthetic(len(zones), "raster geotransform is rotated or degenerate"), nil
	}

	crs := geo.WGS84()
	if wkt := r.CRS(); wkt != "" {
		c, err := geo.ParseCRS(wkt)
		if err != nil {
			return a.synthetic(len(zones), "raster CRS not understood"), nil
		}
		crs = c
	} else {
		log.Warn("topography: raster has no CRS, assuming WGS84")
	}

	projected, err := geo.ReprojectGeoms(zones, geo.WGS84(), crs)
	if err != nil {
		return a.synthetic(len(zones), "zones cannot be reprojected to the raster CRS"), nil
	}

	res := Result{Values: make([]float64, len(zones)), Source: model.SlopeFromRaster}
	for i, g := range projected {
		if err := ctx.Err(); err != nil {
			return Result{}, eris.Wrap(err, "topography: cancelled")
		}
		if g == nil {
			res.Failed++
			continue
		}
		v, err := a.zonal(r, g)
		if err != nil {
			log.Debug("topography: zone not sampled", zap.Int("zone", i), zap.Error(err))
			res.Failed++
			continue
		}
		res.Values[i] = v
	}

	log.Info("topography: zonal statistics computed",
		zap.Int("zones", len(zones)),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// window is an inclusive pixel range.
type window struct {
	c0, r0, c1, r1 int
}

func (w window) width() int  { return w.c1 - w.c0 + 1 }
func (w window) height() int { return w.r1 - w.r0 + 1 }

var errOutside = eris.New("topography: zone outside raster")

func pixelWindow(gt [6]float64, width, height int, b *geom.Bounds) (window, error) {
	ca := (b.Min(0) - gt[0]) / gt[1]
	cb := (b.Max(0) - gt[0]) / gt[1]
	ra := (b.Max(1) - gt[3]) / gt[5]
	rb := (b.Min(1) - gt[3]) / gt[5]
	for _, v := range []float64{ca, cb, ra, rb} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return window{}, errOutside
		}
	}

	w := window{
		c0: int(math.Floor(math.Min(ca, cb))),
		c1: int(math.Floor(math.Max(ca, cb))),
		r0: int(math.Floor(math.Min(ra, rb))),
		r1: int(math.Floor(math.Max(ra, rb))),
	}
	if w.c1 < 0 || w.r1 < 0 || w.c0 >= width || w.r0 >= height {
		return window{}, errOutside
	}
	w.c0 = max(w.c0, 0)
	w.r0 = max(w.r0, 0)
	w.c1 = min(w.c1, width-1)
	w.r1 = min(w.r1, height-1)
	return w, nil
}

func (a *Analyzer) keep(v, nodata float64, hasNodata bool) bool {
	if math.IsNaN(v) || v <= a.opts.NodataFloor {
		return false
	}
	return !hasNodata || v != nodata
}

func (a *Analyzer) zonal(r Raster, g geom.T) (float64, error) {
	gt := r.GeoTransform()
	width, height := r.Size()
	nodata, hasNodata := r.NoData()

	var samples []float64
	switch t := g.(type) {
	case *geom.Point, *geom.MultiPoint:
		// Each point samples the pixel that contains it.
		flat, stride := t.FlatCoords(), t.Stride()
		for i := 0; i+1 < len(flat); i += stride {
			b := geom.NewBounds(geom.XY).Set(flat[i], flat[i+1], flat[i], flat[i+1])
			w, err := pixelWindow(gt, width, height, b)
			if err != nil {
				continue
			}
			px, err := r.Read(w.c0, w.r0, 1, 1)
			if err != nil {
				return 0, err
			}
			if a.keep(px[0], nodata, hasNodata) {
				samples = append(samples, px[0])
			}
		}
	default:
		w, err := pixelWindow(gt, width, height, g.Bounds())
		if err != nil {
			return 0, err
		}
		px, err := r.Read(w.c0, w.r0, w.width(), w.height())
		if err != nil {
			return 0, err
		}
		poly, err := a.space.Geom(g)
		if err != nil {
			return 0, err
		}
		prep := poly.Prepare()
		for row := 0; row < w.height(); row++ {
			y := gt[3] + (float64(w.r0+row)+0.5)*gt[5]
			for col := 0; col < w.width(); col++ {
				v := px[row*w.width()+col]
				if !a.keep(v, nodata, hasNodata) {
					continue
				}
				x := gt[0] + (float64(w.c0+col)+0.5)*gt[1]
				if prep.Contains(a.space.Point(x, y)) {
					samples = append(samples, v)
				}
			}
		}
	}

	if len(samples) == 0 {
		return 0, nil
	}
	return stdDev(samples) * a.opts.Scale, nil
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
