package geo

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// FromShape converts a go-shp geometry to go-geom. Points stay points,
// polylines become MultiLineStrings and polygons become MultiPolygons with
// holes attached to their enclosing shell. Returns nil for null or
// unsupported shapes.
func FromShape(shape shp.Shape) geom.T {
	if shape == nil {
		return nil
	}

	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointM:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		flat := make([]float64, 0, 2*len(s.Points))
		for _, p := range s.Points {
			flat = append(flat, p.X, p.Y)
		}
		return geom.NewMultiPointFlat(geom.XY, flat)
	case *shp.PolyLine:
		return polyLineToMultiLineString(s.Parts, s.Points)
	case *shp.PolyLineZ:
		return polyLineToMultiLineString(s.Parts, s.Points)
	case *shp.Polygon:
		return polygonToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return polygonToMultiPolygon(s.Parts, s.Points)
	default:
		return nil
	}
}

// partRange returns the [start, end) point range of part i.
func partRange(parts []int32, n int, i int) (int, int) {
	start := int(parts[i])
	end := n
	if i+1 < len(parts) {
		end = int(parts[i+1])
	}
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	return start, end
}

func polyLineToMultiLineString(parts []int32, points []shp.Point) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := range parts {
		start, end := partRange(parts, len(points), i)
		if end-start < 2 {
			continue
		}
		ls := geom.NewLineStringFlat(geom.XY, flatPoints(points[start:end]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("geo: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon groups shapefile rings into polygons. Shapefile shells
// wind clockwise and holes counter-clockwise; a hole belongs to the last
// shell that contains its first vertex, or to the last shell read.
func polygonToMultiPolygon(parts []int32, points []shp.Point) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	type poly struct {
		shell []float64
		holes [][]float64
	}
	var polys []*poly
	var orphans [][]float64

	for i := range parts {
		start, end := partRange(parts, len(points), i)
		if end-start < 4 {
			continue
		}
		ring := flatPoints(points[start:end])
		if signedArea(ring) <= 0 {
			// clockwise: a new shell
			polys = append(polys, &poly{shell: ring})
			continue
		}
		owner := -1
		for j := len(polys) - 1; j >= 0; j-- {
			if ringContains(polys[j].shell, ring[0], ring[1]) {
				owner = j
				break
			}
		}
		if owner < 0 {
			orphans = append(orphans, ring)
			continue
		}
		polys[owner].holes = append(polys[owner].holes, ring)
	}

	// Rings wound the wrong way with no enclosing shell are shells.
	for _, r := range orphans {
		polys = append(polys, &poly{shell: r})
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, p := range polys {
		pg := geom.NewPolygon(geom.XY)
		if err := pg.Push(geom.NewLinearRingFlat(geom.XY, p.shell)); err != nil {
			zap.L().Debug("geo: skipping malformed polygon ring", zap.Int("part", i), zap.Error(err))
			continue
		}
		for _, h := range p.holes {
			if err := pg.Push(geom.NewLinearRingFlat(geom.XY, h)); err != nil {
				zap.L().Debug("geo: skipping malformed hole", zap.Int("part", i), zap.Error(err))
			}
		}
		if err := mp.Push(pg); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// ToShape converts a go-geom geometry to the go-shp shape and shape type
// used to write it. Polygon shells are written clockwise and holes
// counter-clockwise.
func ToShape(g geom.T) (shp.Shape, shp.ShapeType, error) {
	switch t := g.(type) {
	case *geom.Point:
		c := t.FlatCoords()
		return &shp.Point{X: c[0], Y: c[1]}, shp.POINT, nil
	case *geom.LineString:
		return shp.NewPolyLine([][]shp.Point{toPoints(t.FlatCoords(), t.Stride())}), shp.POLYLINE, nil
	case *geom.MultiLineString:
		var parts [][]shp.Point
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			parts = append(parts, toPoints(ls.FlatCoords(), ls.Stride()))
		}
		return shp.NewPolyLine(parts), shp.POLYLINE, nil
	case *geom.Polygon:
		pl := shp.NewPolyLine(polygonParts(t))
		return (*shp.Polygon)(pl), shp.POLYGON, nil
	case *geom.MultiPolygon:
		var parts [][]shp.Point
		for i := 0; i < t.NumPolygons(); i++ {
			parts = append(parts, polygonParts(t.Polygon(i))...)
		}
		pl := shp.NewPolyLine(parts)
		return (*shp.Polygon)(pl), shp.POLYGON, nil
	case nil:
		return nil, shp.NULL, eris.New("geo: nil geometry")
	default:
		return nil, shp.NULL, eris.Errorf("geo: unsupported geometry %T", g)
	}
}

func polygonParts(p *geom.Polygon) [][]shp.Point {
	parts := make([][]shp.Point, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		lr := p.LinearRing(i)
		flat := append([]float64(nil), lr.FlatCoords()...)
		if lr.Stride() != 2 {
			flat = toXY(flat, lr.Stride())
		}
		area := signedArea(flat)
		shell := i == 0
		if (shell && area > 0) || (!shell && area < 0) {
			reverseRing(flat)
		}
		parts = append(parts, toPoints(flat, 2))
	}
	return parts
}

func flatPoints(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

func toPoints(flat []float64, stride int) []shp.Point {
	pts := make([]shp.Point, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		pts = append(pts, shp.Point{X: flat[i], Y: flat[i+1]})
	}
	return pts
}

func toXY(flat []float64, stride int) []float64 {
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
	}
	return out
}

func reverseRing(flat []float64) {
	n := len(flat) / 2
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		flat[2*i], flat[2*j] = flat[2*j], flat[2*i]
		flat[2*i+1], flat[2*j+1] = flat[2*j+1], flat[2*i+1]
	}
}

// signedArea is positive for counter-clockwise XY rings.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

// ringContains is an even-odd point in ring test on XY flat coordinates.
func ringContains(ring []float64, x, y float64) bool {
	inside := false
	n := len(ring) / 2
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[2*i], ring[2*i+1]
		xj, yj := ring[2*j], ring[2*j+1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
