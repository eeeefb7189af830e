// Package assembler joins census tables to their geometries, runs every
// analysis module and writes one scored dataset per zone kind.
package assembler

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/census"
	"github.com/sells-group/sits/internal/config"
	"github.com/sells-group/sits/internal/economy"
	"github.com/sells-group/sits/internal/geo"
	"github.com/sells-group/sits/internal/indicator"
	"github.com/sells-group/sits/internal/metrics"
	"github.com/sells-group/sits/internal/model"
	"github.com/sells-group/sits/internal/restrict"
	"github.com/sells-group/sits/internal/source"
	"github.com/sells-group/sits/internal/topography"
)

// ErrMissingRequired marks a zone kind aborted because its layer or census
// table is missing or unreadable.
var ErrMissingRequired = eris.New("assembler: required source missing")

// GeocodeField is the layer attribute joined against the census geocode.
const GeocodeField = "CVEGEO"

// Fallback source labels recorded in reports.
const (
	FallbackUnits     = "economic_units"
	FallbackRivers    = "rivers"
	FallbackElevation = "elevation"
)

// JoinReport counts the two sides of the census join.
type JoinReport struct {
	TableRows    int `json:"table_rows"`
	Features     int `json:"features"`
	Matched      int `json:"matched"`
	DroppedTable int `json:"dropped_table"` // table rows without a feature
	DroppedLayer int `json:"dropped_layer"` // features without a row, or repeating a geocode
}

// Runner assembles zone datasets.
type Runner struct {
	cfg        *config.Config
	resolver   source.Resolver
	openRaster RasterOpener
	metrics    *metrics.Recorder
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithRasterOpener replaces the GDAL raster opener.
func WithRasterOpener(fn RasterOpener) Option {
	return func(r *Runner) { r.openRaster = fn }
}

// WithMetrics records run outcomes in m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// New creates a Runner.
func New(cfg *config.Config, resolver source.Resolver, opts ...Option) *Runner {
	r := &Runner{
		cfg:        cfg,
		resolver:   resolver,
		openRaster: openGDAL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) sources(kind model.Kind) (layer, table string) {
	if kind == model.KindUrban {
		return source.UrbanBlocks, source.UrbanTable
	}
	return source.RuralLocalities, source.RuralTable
}

func (r *Runner) growth(kind model.Kind) float64 {
	if kind == model.KindUrban {
		return r.cfg.Growth.Urban
	}
	return r.cfg.Growth.Rural
}

func (r *Runner) delimiter() rune {
	if d := []rune(r.cfg.Table.Delimiter); len(d) > 0 {
		return d[0]
	}
	return ','
}

func missing(kind model.Kind, what string, cause error) error {
	if cause != nil {
		return eris.Wrapf(ErrMissingRequired, "assembler: %s %s: %v", kind.Slug(), what, cause)
	}
	return eris.Wrapf(ErrMissingRequired, "assembler: %s %s not found", kind.Slug(), what)
}

// Build produces the scored zones of one kind. It returns an error
// wrapping ErrMissingRequired when the kind's layer or table cannot be
// read, and the context error on cancellation. Optional sources in in
// degrade to defaults.
func (r *Runner) Build(ctx context.Context, kind model.Kind, in *Inputs) ([]model.Zone, KindReport, error) {
	log := zap.L().With(zap.String("component", "assembler"), zap.String("kind", string(kind)))
	rep := KindReport{Kind: kind}
	if in == nil {
		in = &Inputs{}
	}

	layerName, tableName := r.sources(kind)
	layerPath, ok := r.resolver.Resolve(layerName)
	if !ok {
		return nil, rep, missing(kind, layerName, nil)
	}
	tablePath, ok := r.resolver.Resolve(tableName)
	if !ok {
		return nil, rep, missing(kind, tableName, nil)
	}
	rep.LayerPath, rep.TablePath = layerPath, tablePath

	layer, err := geo.ReadLayer(layerPath)
	if err != nil {
		return nil, rep, missing(kind, layerName, err)
	}
	if !layer.HasField(GeocodeField) {
		return nil, rep, missing(kind, layerName, eris.Errorf("no %s field in %s", GeocodeField, layerPath))
	}
	layer, err = geo.Reproject(layer, geo.WGS84())
	if err != nil {
		return nil, rep, missing(kind, layerName, err)
	}

	filter := census.Filter{
		State:        r.cfg.Municipality.State,
		Municipality: r.cfg.Municipality.Code,
		HeadTown:     r.cfg.Municipality.HeadTown,
	}
	table, err := census.Read(ctx, tablePath, kind, filter, r.cfg.Table.Encodings, r.delimiter())
	if err != nil {
		if ctx.Err() != nil {
			return nil, rep, ctx.Err()
		}
		return nil, rep, missing(kind, tableName, err)
	}
	rep.Encoding = table.Encoding

	zones, join := r.join(kind, layer, table)
	rep.Join = join
	log.Info("assembler: census joined",
		zap.Int("table_rows", join.TableRows),
		zap.Int("features", join.Features),
		zap.Int("matched", join.Matched),
		zap.Int("dropped_table", join.DroppedTable),
		zap.Int("dropped_layer", join.DroppedLayer),
	)

	geoms := make([]geom.T, len(zones))
	for i := range zones {
		geoms[i] = zones[i].Geometry
	}
	space := geo.NewSpace()

	if err := r.economy(ctx, space, zones, geoms, in, &rep); err != nil {
		return nil, rep, err
	}
	if err := r.topography(ctx, space, zones, geoms, in, &rep); err != nil {
		return nil, rep, err
	}
	if err := r.restrictions(ctx, space, zones, geoms, in, &rep); err != nil {
		return nil, rep, err
	}

	for i := range zones {
		z := &zones[i]
		z.Verdict = restrict.Verdict(z.GasRestricted, z.WaterRestricted, z.Slope)
	}
	rep.Zones = len(zones)
	return zones, rep, nil
}

// join inner-joins layer features to table rows by geocode, in layer order.
// When a geocode repeats in the layer the first feature wins.
func (r *Runner) join(kind model.Kind, layer *geo.Layer, table *census.Table) ([]model.Zone, JoinReport) {
	rep := JoinReport{TableRows: len(table.Rows), Features: len(layer.Features)}
	factor := r.growth(kind)

	zones := make([]model.Zone, 0, len(layer.Features))
	seen := make(map[string]bool, len(layer.Features))
	for _, f := range layer.Features {
		code := f.Attr(GeocodeField)
		row, ok := table.Lookup(code)
		if !ok || seen[code] || f.Geometry == nil {
			rep.DroppedLayer++
			continue
		}
		seen[code] = true
		zones = append(zones, r.zone(kind, f.Geometry, row, factor))
	}
	rep.Matched = len(zones)
	rep.DroppedTable = rep.TableRows - rep.Matched
	return zones, rep
}

func (r *Runner) zone(kind model.Kind, g geom.T, row census.Row, factor float64) model.Zone {
	municipality := row.MunicipalityName
	if municipality == "" {
		municipality = r.cfg.Municipality.Name
	}
	z := model.Zone{
		Geocode:            row.Geocode,
		Kind:               kind,
		Geometry:           g,
		Municipality:       municipality,
		Population:         indicator.Project(row.Vars, factor),
		EconomicallyActive: row.Vars.EconomicallyActive,
		Indicators:         indicator.Compute(row.Vars),
	}
	if kind == model.KindUrban {
		z.Locality = municipality + " (Cabecera)"
		z.AGEB = row.AGEB
		if z.AGEB == "" {
			z.AGEB = "SN"
		}
	} else {
		z.Locality = row.LocalityName
		z.AGEB = "RURAL"
	}
	return z
}

func (r *Runner) economy(ctx context.Context, s *geo.Space, zones []model.Zone, geoms []geom.T, in *Inputs, rep *KindReport) error {
	if in.Units == nil {
		rep.Fallbacks = append(rep.Fallbacks, FallbackUnits)
		return nil
	}
	index, err := s.NewIndex(geoms)
	if err != nil {
		zap.L().Warn("assembler: cannot index zones, economy defaults to zero",
			zap.String("kind", string(rep.Kind)), zap.Error(err))
		rep.Fallbacks = append(rep.Fallbacks, FallbackUnits)
		return nil
	}
	counts, stats := economy.Integrate(ctx, s, index, in.Units, in.Classifier)
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range zones {
		zones[i].Economy = counts[i]
		zones[i].TourismDependency = counts[i].TourismRatio()
	}
	rep.Economy = stats
	return nil
}

func (r *Runner) topography(ctx context.Context, s *geo.Space, zones []model.Zone, geoms []geom.T, in *Inputs, rep *KindReport) error {
	var raster topography.Raster
	if in.RasterPath != "" {
		opened, err := r.openRaster(in.RasterPath)
		if err != nil {
			zap.L().Warn("assembler: elevation raster unreadable",
				zap.String("kind", string(rep.Kind)), zap.String("path", in.RasterPath), zap.Error(err))
		} else {
			raster = opened
			defer func() { _ = opened.Close() }()
		}
	}

	c := r.cfg.Topography
	analyzer := topography.NewAnalyzer(s, topography.Options{
		Seed:        c.Seed,
		FallbackMin: c.FallbackMin,
		FallbackMax: c.FallbackMax,
		Scale:       c.Scale,
		NodataFloor: c.NodataFloor,
	})
	res, err := analyzer.Analyze(ctx, raster, geoms)
	if err != nil {
		return err
	}
	for i := range zones {
		zones[i].Slope = res.Values[i]
		zones[i].SlopeClass = topography.Classify(res.Values[i])
		zones[i].SlopeSource = res.Source
	}
	rep.SlopeSource = res.Source
	rep.SlopeFailed = res.Failed
	if res.Source == model.SlopeFromSynthetic {
		rep.Fallbacks = append(rep.Fallbacks, FallbackElevation)
	}
	return nil
}

func (r *Runner) restrictions(ctx context.Context, s *geo.Space, zones []model.Zone, geoms []geom.T, in *Inputs, rep *KindReport) error {
	c := r.cfg.Restrict
	engine := restrict.NewEngine(s, restrict.Options{
		Mode:            c.BufferMode,
		HazardPrefixes:  c.HazardPrefixes,
		HazardRadiusDeg: c.HazardRadiusDeg,
		RiverRadiusDeg:  c.RiverRadiusDeg,
		HazardRadiusM:   c.HazardRadiusM,
		RiverRadiusM:    c.RiverRadiusM,
		QuadSegs:        c.QuadSegs,
	})
	flags, err := engine.Apply(ctx, geoms, in.Units, in.Rivers)
	if err != nil {
		return err
	}
	for i := range zones {
		zones[i].GasRestricted = flags.Gas[i]
		zones[i].WaterRestricted = flags.Water[i]
		if flags.Gas[i] {
			rep.GasRestricted++
		}
		if flags.Water[i] {
			rep.WaterRestricted++
		}
	}
	if in.Rivers == nil {
		rep.Fallbacks = append(rep.Fallbacks, FallbackRivers)
	}
	return nil
}
