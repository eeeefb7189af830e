package output

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sits/internal/model"
)

// GeoPackage constants.
const (
	gpkgApplicationID = 0x47504B47 // "GPKG"
	gpkgUserVersion   = 10300
	gpkgSRSID         = 4326
	gpkgGeomColumn    = "geom"
)

const wgs84OGCWKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

const gpkgCore = `
CREATE TABLE gpkg_spatial_ref_sys (
	srs_name                 TEXT NOT NULL,
	srs_id                   INTEGER NOT NULL PRIMARY KEY,
	organization             TEXT NOT NULL,
	organization_coordsys_id INTEGER NOT NULL,
	definition               TEXT NOT NULL,
	description              TEXT
);

CREATE TABLE gpkg_contents (
	table_name  TEXT NOT NULL PRIMARY KEY,
	data_type   TEXT NOT NULL,
	identifier  TEXT UNIQUE,
	description TEXT DEFAULT '',
	last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	min_x       DOUBLE,
	min_y       DOUBLE,
	max_x       DOUBLE,
	max_y       DOUBLE,
	srs_id      INTEGER,
	CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

CREATE TABLE gpkg_geometry_columns (
	table_name         TEXT NOT NULL,
	column_name        TEXT NOT NULL,
	geometry_type_name TEXT NOT NULL,
	srs_id             INTEGER NOT NULL,
	z                  TINYINT NOT NULL,
	m                  TINYINT NOT NULL,
	CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
	CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
	CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

INSERT INTO gpkg_spatial_ref_sys VALUES
	('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', NULL),
	('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', NULL);
`

// GeoPackageWriter writes an OGC GeoPackage with one feature table named
// after the dataset.
type GeoPackageWriter struct{}

func (GeoPackageWriter) Ext() string { return ".gpkg" }

func (GeoPackageWriter) Write(ctx context.Context, path string, zones []model.Zone) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)
	if err := writeGeoPackage(ctx, tmp, tableName(path), zones); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "gpkg: rename to %s", path)
	}
	return nil
}

func tableName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".gpkg")
}

func writeGeoPackage(ctx context.Context, path, table string, zones []model.Zone) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return eris.Wrap(err, "gpkg: open")
	}
	defer db.Close()

	for _, pragma := range []string{
		"PRAGMA application_id = " + strconv.Itoa(gpkgApplicationID),
		"PRAGMA user_version = " + strconv.Itoa(gpkgUserVersion),
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return eris.Wrapf(err, "gpkg: exec %s", pragma)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "gpkg: begin")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, gpkgCore); err != nil {
		return eris.Wrap(err, "gpkg: create core tables")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_spatial_ref_sys VALUES ('WGS 84', ?, 'EPSG', ?, ?, 'longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid')`,
		gpkgSRSID, gpkgSRSID, wgs84OGCWKT,
	); err != nil {
		return eris.Wrap(err, "gpkg: insert srs")
	}

	if _, err := tx.ExecContext(ctx, createFeatureTable(table)); err != nil {
		return eris.Wrap(err, "gpkg: create feature table")
	}

	insert := insertFeature(table)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return eris.Wrap(err, "gpkg: prepare insert")
	}
	defer stmt.Close()

	var extent *geom.Bounds
	for i := range zones {
		z := &zones[i]
		blob, err := gpkgBlob(z.Geometry)
		if err != nil {
			return eris.Wrapf(err, "gpkg: encode zone %s", z.Geocode)
		}
		if z.Geometry != nil {
			if extent == nil {
				extent = z.Geometry.Bounds()
			} else {
				extent.Extend(z.Geometry)
			}
		}

		props := z.Properties()
		args := make([]any, 0, len(model.Schema)+1)
		args = append(args, blob)
		for _, p := range model.Schema {
			v := props[p.Name]
			if b, ok := v.(bool); ok {
				v = boolInt(b)
			}
			args = append(args, v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eris.Wrapf(err, "gpkg: insert zone %s", z.Geocode)
		}
	}

	var minX, minY, maxX, maxY any
	if extent != nil && !extent.IsEmpty() {
		minX, minY, maxX, maxY = extent.Min(0), extent.Min(1), extent.Max(0), extent.Max(1)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id) VALUES (?, 'features', ?, ?, ?, ?, ?, ?)`,
		table, table, minX, minY, maxX, maxY, gpkgSRSID,
	); err != nil {
		return eris.Wrap(err, "gpkg: insert contents")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_geometry_columns VALUES (?, ?, 'GEOMETRY', ?, 0, 0)`,
		table, gpkgGeomColumn, gpkgSRSID,
	); err != nil {
		return eris.Wrap(err, "gpkg: insert geometry column")
	}

	return eris.Wrap(tx.Commit(), "gpkg: commit")
}

func sqlType(t model.PropertyType) string {
	switch t {
	case model.PropertyFloat:
		return "REAL"
	case model.PropertyInt, model.PropertyBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func createFeatureTable(table string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE " + quoteIdent(table) + " (\n\tfid INTEGER PRIMARY KEY AUTOINCREMENT,\n\t")
	b.WriteString(gpkgGeomColumn + " GEOMETRY")
	for _, p := range model.Schema {
		b.WriteString(",\n\t" + quoteIdent(p.Name) + " " + sqlType(p.Type))
	}
	b.WriteString("\n)")
	return b.String()
}

func insertFeature(table string) string {
	cols := []string{gpkgGeomColumn}
	for _, p := range model.Schema {
		cols = append(cols, quoteIdent(p.Name))
	}
	return "INSERT INTO " + quoteIdent(table) + " (" + strings.Join(cols, ", ") +
		") VALUES (?" + strings.Repeat(", ?", len(model.Schema)) + ")"
}

// gpkgBlob encodes g as a GeoPackage geometry: the "GP" header with a
// little-endian XY envelope, followed by WKB.
func gpkgBlob(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	body, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, err
	}

	b := g.Bounds()
	env := []float64{b.Min(0), b.Max(0), b.Min(1), b.Max(1)}
	flags := byte(0x01) // little endian
	if !b.IsEmpty() {
		flags |= 1 << 1 // envelope [minx, maxx, miny, maxy]
	} else {
		flags |= 1 << 4 // empty geometry
		env = nil
	}

	out := make([]byte, 0, 8+8*len(env)+len(body))
	out = append(out, 'G', 'P', 0, flags)
	out = binary.LittleEndian.AppendUint32(out, uint32(gpkgSRSID))
	for _, v := range env {
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
	}
	return append(out, body...), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
