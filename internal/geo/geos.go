package geo

import (
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// Space owns a GEOS context. A Space is not safe for concurrent use; each
// zone kind run creates its own.
type Space struct {
	ctx *geos.Context
}

// NewSpace creates a Space with a fresh GEOS context.
func NewSpace() *Space {
	return &Space{ctx: geos.NewContext()}
}

// Geom converts a go-geom geometry to GEOS through WKB.
func (s *Space) Geom(g geom.T) (*geos.Geom, error) {
	if g == nil {
		return nil, eris.New("geo: nil geometry")
	}
	raw, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode WKB")
	}
	gg, err := s.ctx.NewGeomFromWKB(raw)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode WKB into GEOS")
	}
	return gg, nil
}

// Buffer returns g buffered by width in g's own units.
func (s *Space) Buffer(g geom.T, width float64, quadSegs int) (*geos.Geom, error) {
	gg, err := s.Geom(g)
	if err != nil {
		return nil, err
	}
	return gg.Buffer(width, quadSegs), nil
}

// Point creates a GEOS point.
func (s *Space) Point(x, y float64) *geos.Geom {
	return s.ctx.NewPoint([]float64{x, y})
}

// Index is an STRtree over a fixed list of geometries. Query results are
// positions in that list.
type Index struct {
	tree     *geos.STRtree
	geoms    []*geos.Geom
	prepared []*geos.PrepGeom
}

// NewIndex builds an index over gs. Nil or unconvertible entries are left
// out of the tree and never match.
func (s *Space) NewIndex(gs []geom.T) (*Index, error) {
	ix := &Index{
		tree:     s.ctx.NewSTRtree(10),
		geoms:    make([]*geos.Geom, len(gs)),
		prepared: make([]*geos.PrepGeom, len(gs)),
	}
	for i, g := range gs {
		if g == nil {
			continue
		}
		gg, err := s.Geom(g)
		if err != nil {
			continue
		}
		if err := ix.tree.Insert(gg, i); err != nil {
			return nil, eris.Wrapf(err, "geo: index geometry %d", i)
		}
		ix.geoms[i] = gg
		ix.prepared[i] = gg.Prepare()
	}
	return ix, nil
}

// Len returns the number of indexed positions.
func (ix *Index) Len() int {
	return len(ix.geoms)
}

func (ix *Index) candidates(g *geos.Geom) []int {
	var out []int
	ix.tree.Query(g, func(v any) {
		if i, ok := v.(int); ok {
			out = append(out, i)
		}
	})
	return out
}

// Containing returns the indexed geometries that contain g, g being within
// each of them.
func (ix *Index) Containing(g *geos.Geom) []int {
	var out []int
	for _, i := range ix.candidates(g) {
		if ix.prepared[i].Contains(g) {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out
}

// Intersecting returns the indexed geometries that intersect g.
func (ix *Index) Intersecting(g *geos.Geom) []int {
	var out []int
	for _, i := range ix.candidates(g) {
		if ix.prepared[i].Intersects(g) {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out
}
