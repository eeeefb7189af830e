// Package restrict flags zones near fuel hazards and river rights-of-way and
// derives the viability verdict.
package restrict

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/economy"
	"github.com/sells-group/sits/internal/geo"
	"github.com/sells-group/sits/internal/model"
)

// Buffer modes.
const (
	ModeDegrees = "degrees"
	ModeMetric  = "metric"
)

// LandslideAbove is the slope statistic above which a zone is a landslide
// risk. The comparison is strict.
const LandslideAbove = 15.0

// Verdict applies the priority rule: chemical risk, then federal zone, then
// landslide risk, otherwise feasible.
func Verdict(gas, water bool, slope float64) model.Verdict {
	switch {
	case gas:
		return model.VerdictChemicalRisk
	case water:
		return model.VerdictFederalZone
	case slope > LandslideAbove:
		return model.VerdictLandslideRisk
	default:
		return model.VerdictFeasible
	}
}

// Options configures buffer construction.
type Options struct {
	Mode            string
	HazardPrefixes  []string
	HazardRadiusDeg float64
	RiverRadiusDeg  float64
	HazardRadiusM   float64
	RiverRadiusM    float64
	QuadSegs        int
}

// DefaultOptions returns degree buffers of 0.001° around fuel retail
// (464, 473) and 0.0002° around rivers.
func DefaultOptions() Options {
	return Options{
		Mode:            ModeDegrees,
		HazardPrefixes:  []string{"464", "473"},
		HazardRadiusDeg: 0.001,
		RiverRadiusDeg:  0.0002,
		HazardRadiusM:   100,
		RiverRadiusM:    20,
		QuadSegs:        8,
	}
}

// Flags holds per-zone restriction flags in zone order.
type Flags struct {
	Gas     []bool
	Water   []bool
	Hazards int // hazard points buffered
	Rivers  int // river features buffered
}

// Engine computes restriction flags.
type Engine struct {
	opts  Options
	space *geo.Space
}

// NewEngine returns an engine that runs spatial tests in s.
func NewEngine(s *geo.Space, opts Options) *Engine {
	if opts.QuadSegs < 1 {
		opts.QuadSegs = 8
	}
	return &Engine{opts: opts, space: s}
}

// IsHazard reports whether an activity code belongs to fuel or gas retail.
func (e *Engine) IsHazard(code string) bool {
	code = strings.TrimSpace(code)
	for _, p := range e.opts.HazardPrefixes {
		if p != "" && strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// HazardPoints returns the geometries of hazardous units. Units whose code
// was inferred from a fallback column are never hazards.
func (e *Engine) HazardPoints(units []economy.Unit) []geom.T {
	var out []geom.T
	for _, u := range units {
		if u.Geometry != nil && !u.Inferred && e.IsHazard(u.Code) {
			out = append(out, u.Geometry)
		}
	}
	return out
}

// Apply flags zones (WGS84) intersecting a hazard buffer or a river buffer.
// A nil units or rivers slice leaves the matching flag false. Failures in
// either computation are logged and leave that flag false; only context
// cancellation is returned.
func (e *Engine) Apply(ctx context.Context, zones []geom.T, units []economy.Unit, rivers []geom.T) (Flags, error) {
	log := zap.L().With(zap.String("component", "restrict"), zap.String("mode", e.opts.Mode))
	flags := Flags{Gas: make([]bool, len(zones)), Water: make([]bool, len(zones))}
	if len(zones) == 0 {
		return flags, nil
	}

	frame, err := e.newFrame(zones)
	if err != nil {
		log.Warn("restrict: cannot prepare zones, restrictions skipped", zap.Error(err))
		return flags, nil
	}

	if units == nil {
		log.Warn("restrict: no economic units, gas restriction skipped")
	} else {
		hazards := e.HazardPoints(units)
		flags.Hazards = len(hazards)
		radius := e.opts.HazardRadiusDeg
		if e.opts.Mode == ModeMetric {
			radius = e.opts.HazardRadiusM
		}
		if err := frame.mark(ctx, e, hazards, radius, flags.Gas); err != nil {
			if ctx.Err() != nil {
				return Flags{}, err
			}
			log.Warn("restrict: gas restriction failed", zap.Error(err))
			clear(flags.Gas)
		}
	}

	if rivers == nil {
		log.Warn("restrict: no river layer, water restriction skipped")
	} else {
		flags.Rivers = len(rivers)
		radius := e.opts.RiverRadiusDeg
		if e.opts.Mode == ModeMetric {
			radius = e.opts.RiverRadiusM
		}
		if err := frame.mark(ctx, e, rivers, radius, flags.Water); err != nil {
			if ctx.Err() != nil {
				return Flags{}, err
			}
			log.Warn("restrict: water restriction failed", zap.Error(err))
			clear(flags.Water)
		}
	}

	log.Info("restrict: restrictions computed",
		zap.Int("hazards", flags.Hazards),
		zap.Int("rivers", flags.Rivers),
		zap.Int("gas_restricted", count(flags.Gas)),
		zap.Int("water_restricted", count(flags.Water)),
	)
	return flags, nil
}

// frame is the CRS buffers are built in, with the zones indexed there.
type frame struct {
	crs   *geo.CRS
	index *geo.Index
}

func (e *Engine) newFrame(zones []geom.T) (*frame, error) {
	f := &frame{crs: geo.WGS84()}
	if e.opts.Mode == ModeMetric {
		lon, lat, ok := center(zones)
		if !ok {
			return nil, eris.New("restrict: zones have no extent")
		}
		utm, err := geo.UTM(lon, lat)
		if err != nil {
			return nil, err
		}
		f.crs = utm
	}
	projected, err := geo.ReprojectGeoms(zones, geo.WGS84(), f.crs)
	if err != nil {
		return nil, eris.Wrap(err, "restrict: project zones")
	}
	ix, err := e.space.NewIndex(projected)
	if err != nil {
		return nil, err
	}
	f.index = ix
	return f, nil
}

// mark buffers each source by radius and sets hit[i] for every zone i
// intersecting a buffer.
func (f *frame) mark(ctx context.Context, e *Engine, sources []geom.T, radius float64, hit []bool) error {
	projected, err := geo.ReprojectGeoms(sources, geo.WGS84(), f.crs)
	if err != nil {
		return eris.Wrap(err, "restrict: project sources")
	}
	for i, g := range projected {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "restrict: cancelled")
		}
		if g == nil {
			continue
		}
		buf, err := e.space.Buffer(g, radius, e.opts.QuadSegs)
		if err != nil {
			zap.L().Debug("restrict: source not buffered", zap.Int("source", i), zap.Error(err))
			continue
		}
		for _, z := range f.index.Intersecting(buf) {
			hit[z] = true
		}
	}
	return nil
}

// center returns the midpoint of the combined bounds of gs.
func center(gs []geom.T) (float64, float64, bool) {
	var b *geom.Bounds
	for _, g := range gs {
		if g == nil {
			continue
		}
		if b == nil {
			b = g.Bounds()
			continue
		}
		b.Extend(g)
	}
	if b == nil || b.IsEmpty() {
		return 0, 0, false
	}
	return (b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2, true
}

func count(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
