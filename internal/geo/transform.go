package geo

import (
	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// TransformGeom returns a copy of g with every coordinate passed through t.
func TransformGeom(g geom.T, t proj.Transformer) (geom.T, error) {
	var out geom.T
	switch v := g.(type) {
	case *geom.Point:
		out = v.Clone()
	case *geom.MultiPoint:
		out = v.Clone()
	case *geom.LineString:
		out = v.Clone()
	case *geom.MultiLineString:
		out = v.Clone()
	case *geom.Polygon:
		out = v.Clone()
	case *geom.MultiPolygon:
		out = v.Clone()
	case nil:
		return nil, eris.New("geo: nil geometry")
	default:
		return nil, eris.Errorf("geo: cannot transform %T", g)
	}

	flat := out.FlatCoords()
	stride := out.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		x, y, err := t(flat[i], flat[i+1])
		if err != nil {
			return nil, eris.Wrap(err, "geo: transform coordinate")
		}
		flat[i], flat[i+1] = x, y
	}
	return out, nil
}

// Reproject returns a copy of the layer expressed in target. Features whose
// coordinates fail to transform are dropped.
func Reproject(l *Layer, target *CRS) (*Layer, error) {
	if l.CRS.Equal(target) {
		return l, nil
	}
	t, err := l.CRS.Transformer(target)
	if err != nil {
		return nil, err
	}

	out := &Layer{Path: l.Path, CRS: target, Fields: l.Fields, Features: make([]Feature, 0, len(l.Features))}
	var dropped int
	for i, f := range l.Features {
		g, err := TransformGeom(f.Geometry, t)
		if err != nil {
			dropped++
			zap.L().Debug("geo: dropping feature that failed to reproject",
				zap.String("layer", l.Path), zap.Int("feature", i), zap.Error(err))
			continue
		}
		out.Features = append(out.Features, Feature{Geometry: g, Attrs: f.Attrs})
	}
	if dropped > 0 {
		zap.L().Warn("geo: features dropped during reprojection",
			zap.String("layer", l.Path), zap.Int("dropped", dropped))
	}
	return out, nil
}

// ReprojectGeoms transforms a slice of geometries from src to dst. Entries
// that fail to transform come back nil.
func ReprojectGeoms(gs []geom.T, src, dst *CRS) ([]geom.T, error) {
	if src.Equal(dst) {
		return gs, nil
	}
	t, err := src.Transformer(dst)
	if err != nil {
		return nil, err
	}
	out := make([]geom.T, len(gs))
	for i, g := range gs {
		if g == nil {
			continue
		}
		tg, err := TransformGeom(g, t)
		if err != nil {
			zap.L().Debug("geo: geometry failed to reproject", zap.Int("index", i), zap.Error(err))
			continue
		}
		out[i] = tg
	}
	return out, nil
}
