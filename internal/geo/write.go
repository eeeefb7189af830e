package geo

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// WGS84WKT is the ESRI WKT written to .prj sidecars of WGS84 layers.
const WGS84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// FieldType is a DBF column type.
type FieldType byte

// DBF column types supported by the writer.
const (
	FieldString FieldType = 'C'
	FieldNumber FieldType = 'N'
	FieldFloat  FieldType = 'F'
)

// FieldSpec describes one DBF column. Names longer than 10 bytes are
// rejected by the format.
type FieldSpec struct {
	Name      string
	Type      FieldType
	Size      uint8
	Precision uint8
}

// Record is one row to write: a geometry and one value per field. Values
// may be string, int, float64 or bool (written as 0/1).
type Record struct {
	Geometry geom.T
	Values   []any
}

// WriteShapefile writes records to path (.shp plus .shx, .dbf and .prj).
// All geometries must map to the same shapefile type.
func WriteShapefile(path string, crs *CRS, fields []FieldSpec, records []Record) error {
	if len(records) == 0 {
		return eris.Errorf("geo: no records to write to %s", path)
	}
	if !strings.HasSuffix(path, ".shp") {
		path += ".shp"
	}

	shapes := make([]shp.Shape, len(records))
	var shapeType shp.ShapeType
	for i, r := range records {
		s, st, err := ToShape(r.Geometry)
		if err != nil {
			return eris.Wrapf(err, "geo: record %d", i)
		}
		if i == 0 {
			shapeType = st
		} else if st != shapeType {
			return eris.Errorf("geo: record %d has shape type %d, layer is %d", i, st, shapeType)
		}
		shapes[i] = s
	}

	dbfFields := make([]shp.Field, len(fields))
	for i, f := range fields {
		if len(f.Name) > 10 {
			return eris.Errorf("geo: field name %q exceeds 10 bytes", f.Name)
		}
		switch f.Type {
		case FieldString:
			dbfFields[i] = shp.StringField(f.Name, f.Size)
		case FieldNumber:
			dbfFields[i] = shp.NumberField(f.Name, f.Size)
		case FieldFloat:
			dbfFields[i] = shp.FloatField(f.Name, f.Size, f.Precision)
		default:
			return eris.Errorf("geo: unsupported field type %q", f.Type)
		}
	}

	w, err := shp.Create(path, shapeType)
	if err != nil {
		return eris.Wrapf(err, "geo: create shapefile %s", path)
	}
	if err := w.SetFields(dbfFields); err != nil {
		w.Close()
		return eris.Wrap(err, "geo: set fields")
	}

	for i, r := range records {
		row := int(w.Write(shapes[i]))
		for j, v := range r.Values {
			if j >= len(fields) {
				break
			}
			if err := w.WriteAttribute(row, j, dbfValue(v, fields[j])); err != nil {
				w.Close()
				return eris.Wrapf(err, "geo: write attribute %s of record %d", fields[j].Name, i)
			}
		}
	}
	w.Close()

	// go-shp v0.1.1 names the table "<base>dbf".
	base := strings.TrimSuffix(path, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			return eris.Wrap(err, "geo: rename dbf")
		}
	}

	return writePRJ(path, crs)
}

func dbfValue(v any, f FieldSpec) any {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case float32:
		return float64(t)
	case int64:
		return int(t)
	case string:
		if f.Size > 0 && len(t) > int(f.Size) {
			t = t[:f.Size]
			for len(t) > 0 && !utf8.ValidString(t) {
				t = t[:len(t)-1]
			}
		}
		return t
	case nil:
		if f.Type == FieldString {
			return ""
		}
		return 0
	default:
		return v
	}
}

func writePRJ(shpPath string, crs *CRS) error {
	if crs == nil {
		return nil
	}
	var wkt string
	switch {
	case !strings.HasPrefix(crs.Def, "+"):
		wkt = crs.Def
	case crs.Equal(WGS84()):
		wkt = WGS84WKT
	default:
		// proj4 only: leave the layer without a sidecar.
		return nil
	}
	prj := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	if err := os.WriteFile(prj, []byte(wkt), 0o644); err != nil {
		return eris.Wrapf(err, "geo: write %s", prj)
	}
	return nil
}
