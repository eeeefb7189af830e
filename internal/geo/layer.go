// Package geo reads vector layers and provides the CRS and spatial
// predicates the pipeline runs on.
package geo

import (
	"archive/zip"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// Feature is one vector record. Attribute keys are upper-cased field names.
type Feature struct {
	Geometry geom.T
	Attrs    map[string]string
}

// Attr returns an attribute by case-insensitive field name.
func (f Feature) Attr(name string) string {
	return f.Attrs[strings.ToUpper(name)]
}

// Layer is a vector layer with its CRS.
type Layer struct {
	Path     string
	CRS      *CRS
	Fields   []string
	Features []Feature
}

// Geometries returns the feature geometries in order.
func (l *Layer) Geometries() []geom.T {
	out := make([]geom.T, len(l.Features))
	for i, f := range l.Features {
		out[i] = f.Geometry
	}
	return out
}

// HasField reports whether the layer carries a field (case-insensitive).
func (l *Layer) HasField(name string) bool {
	name = strings.ToUpper(name)
	for _, f := range l.Fields {
		if f == name {
			return true
		}
	}
	return false
}

type shapeReader interface {
	Next() bool
	Shape() (int, shp.Shape)
	Attribute(n int) string
	Fields() []shp.Field
	Err() error
	Close() error
}

// ReadLayer reads a shapefile, or a ZIP archive holding exactly one
// shapefile, with its attributes. The CRS comes from the .prj sidecar; when
// there is none the layer is assumed to be WGS84. Records with null or
// unsupported geometry are skipped.
func ReadLayer(path string) (*Layer, error) {
	log := zap.L().With(zap.String("component", "geo.layer"), zap.String("path", path))

	var (
		reader shapeReader
		crs    *CRS
		hasPRJ bool
		err    error
	)
	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		zr, oerr := shp.OpenZip(path)
		if oerr != nil {
			return nil, eris.Wrapf(oerr, "geo: open shapefile archive %s", path)
		}
		reader = zr
		crs, hasPRJ, err = readZipPRJ(path)
	} else {
		r, oerr := shp.Open(path)
		if oerr != nil {
			return nil, eris.Wrapf(oerr, "geo: open shapefile %s", path)
		}
		reader = r
		crs, hasPRJ, err = ReadPRJ(path)
	}
	defer func() { _ = reader.Close() }()

	if err != nil {
		return nil, err
	}
	if !hasPRJ {
		log.Warn("geo: layer has no .prj, assuming WGS84")
		crs = WGS84()
	}

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToUpper(strings.TrimSpace(strings.TrimRight(f.String(), "\x00")))
	}

	layer := &Layer{Path: path, CRS: crs, Fields: names}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		g := FromShape(shape)
		if g == nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			attrs[name] = decodeAttr(reader.Attribute(i))
		}
		layer.Features = append(layer.Features, Feature{Geometry: g, Attrs: attrs})
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, eris.Wrapf(err, "geo: read shapefile %s", path)
	}

	if skipped > 0 {
		log.Debug("geo: skipped shapefile records", zap.Int("skipped", skipped))
	}
	log.Debug("geo: layer read", zap.Int("features", len(layer.Features)), zap.Strings("fields", names))

	return layer, nil
}

// decodeAttr trims DBF padding and decodes Latin-1 values, the usual INEGI
// DBF code page, when they are not valid UTF-8.
func decodeAttr(raw string) string {
	s := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if utf8.ValidString(s) {
		return s
	}
	out, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

func readZipPRJ(path string) (*CRS, bool, error) {
	z, err := zip.OpenReader(path)
	if err != nil {
		return nil, false, eris.Wrapf(err, "geo: open archive %s", path)
	}
	defer func() { _ = z.Close() }()

	for _, f := range z.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".prj") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false, eris.Wrapf(err, "geo: open %s in archive", f.Name)
		}
		raw, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, false, eris.Wrapf(err, "geo: read %s in archive", f.Name)
		}
		crs, err := ParseCRS(string(raw))
		if err != nil {
			return nil, true, err
		}
		return crs, true, nil
	}
	return nil, false, nil
}
