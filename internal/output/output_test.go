package output

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/sits/internal/geo"
	"github.com/sells-group/sits/internal/model"
)

func sampleZones() []model.Zone {
	poly := func(x0 float64) *geom.MultiPolygon {
		return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
			{x0, 18.42}, {x0 + 0.005, 18.42}, {x0 + 0.005, 18.425}, {x0, 18.425}, {x0, 18.42},
		}}})
	}
	return []model.Zone{
		{
			Geocode:       "3003200010231001",
			Kind:          model.KindUrban,
			Geometry:      poly(-95.11),
			Municipality:  "Catemaco",
			Locality:      "Catemaco (Cabecera)",
			AGEB:          "0231",
			Population:    model.Population{Base2020: 100, Total: 104.8, Female: 52.4},
			Indicators:    model.Indicators{Education: 0.2, Health: 0.5, Composite: 0.3, SendaiP4: 0.9},
			Economy:       model.Economy{Tourism: 2, Commerce: 1, Other: 1},
			Slope:         12.5,
			SlopeClass:    model.SlopeConditioned,
			SlopeSource:   model.SlopeFromSynthetic,
			GasRestricted: true,
			Verdict:       model.VerdictChemicalRisk,
		},
		{
			Geocode:      "3003200010231002",
			Kind:         model.KindUrban,
			Geometry:     poly(-95.10),
			Municipality: "Catemaco",
			Locality:     "Catemaco (Cabecera)",
			AGEB:         "0231",
			Slope:        3,
			SlopeClass:   model.SlopeViable,
			SlopeSource:  model.SlopeFromSynthetic,
			Verdict:      model.VerdictFeasible,
		},
	}
}

func TestGeoJSONRoundTrip(t *testing.T) {
	zones := sampleZones()
	zones[0].TourismDependency = zones[0].Economy.TourismRatio()
	path := filepath.Join(t.TempDir(), "capa.geojson")

	require.NoError(t, GeoJSONWriter{}.Write(context.Background(), path, zones))
	got, err := ReadGeoJSON(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	z := got[0]
	assert.Equal(t, "3003200010231001", z.Geocode)
	assert.Equal(t, model.KindUrban, z.Kind)
	assert.Equal(t, "Catemaco (Cabecera)", z.Locality)
	assert.InDelta(t, 104.8, z.Population.Total, 1e-9)
	assert.Equal(t, 2, z.Economy.Tourism)
	assert.Equal(t, 1, z.Economy.Other)
	assert.InDelta(t, 0.5, z.TourismDependency, 1e-12)
	assert.True(t, z.GasRestricted)
	assert.False(t, z.WaterRestricted)
	assert.Equal(t, model.VerdictChemicalRisk, z.Verdict)
	assert.Equal(t, model.SlopeConditioned, z.SlopeClass)
	mp, ok := z.Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.InDelta(t, 0.005*0.005, mp.Area(), 1e-12)
}

func TestGeoJSONOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capa.geojson")
	zones := sampleZones()
	require.NoError(t, GeoJSONWriter{}.Write(context.Background(), path, zones))
	require.NoError(t, GeoJSONWriter{}.Write(context.Background(), path, zones[:1]))

	got, err := ReadGeoJSON(path)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestUnmarshalGeoJSON_Errors(t *testing.T) {
	_, err := UnmarshalGeoJSON([]byte("{"))
	assert.Error(t, err)

	_, err = UnmarshalGeoJSON([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":null,"properties":{"TIPO":"Urbano"}}]}`))
	assert.Error(t, err)
}

func TestGeoPackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sits_capa_urbana.gpkg")
	require.NoError(t, GeoPackageWriter{}.Write(context.Background(), path, sampleZones()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var appID int
	require.NoError(t, db.QueryRow("PRAGMA application_id").Scan(&appID))
	assert.Equal(t, gpkgApplicationID, appID)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "sits_capa_urbana"`).Scan(&n))
	assert.Equal(t, 2, n)

	var (
		geocode string
		gas     int
		blob    []byte
	)
	require.NoError(t, db.QueryRow(
		`SELECT "CVEGEO", "RESTRICCION_GAS", geom FROM "sits_capa_urbana" ORDER BY fid LIMIT 1`,
	).Scan(&geocode, &gas, &blob))
	assert.Equal(t, "3003200010231001", geocode)
	assert.Equal(t, 1, gas)
	require.Greater(t, len(blob), 40)
	assert.Equal(t, []byte{'G', 'P', 0, 0x03}, blob[:4])

	var dataType string
	var minX float64
	require.NoError(t, db.QueryRow(`SELECT data_type, min_x FROM gpkg_contents WHERE table_name = ?`, "sits_capa_urbana").Scan(&dataType, &minX))
	assert.Equal(t, "features", dataType)
	assert.InDelta(t, -95.11, minX, 1e-9)

	// Rewriting replaces the file.
	require.NoError(t, GeoPackageWriter{}.Write(context.Background(), path, sampleZones()[:1]))
	db2, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db2.Close()
	require.NoError(t, db2.QueryRow(`SELECT COUNT(*) FROM "sits_capa_urbana"`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sits_capa_urbana.shp")
	require.NoError(t, ShapefileWriter{}.Write(context.Background(), path, sampleZones()))

	layer, err := geo.ReadLayer(path)
	require.NoError(t, err)
	require.Len(t, layer.Features, 2)
	assert.True(t, layer.CRS.IsGeographic())
	for _, f := range layer.Fields {
		assert.LessOrEqual(t, len(f), 10, f)
	}

	f := layer.Features[0]
	assert.Equal(t, "3003200010231001", f.Attr(model.PropGeocode))
	assert.Equal(t, "1", f.Attr("RESTR_GAS"))
	assert.Equal(t, "0", f.Attr("RESTR_AGUA"))
	assert.Equal(t, string(model.VerdictChemicalRisk), f.Attr("DICTAMEN"))
	assert.Equal(t, "2", f.Attr("ECO_TURISM"))
}

func TestShortNamesFitDBF(t *testing.T) {
	seen := map[string]string{}
	for _, p := range model.Schema {
		short := ShortName(p.Name)
		assert.LessOrEqual(t, len(short), 10, p.Name)
		if prev, dup := seen[short]; dup {
			t.Errorf("%s and %s share column %s", prev, p.Name, short)
		}
		seen[short] = p.Name
	}
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "salida")
	paths, err := WriteAll(context.Background(), dir, model.KindUrban, sampleZones(), []string{FormatGeoJSON, FormatGeoPackage, FormatShapefile})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "sits_capa_urbana.geojson"),
		filepath.Join(dir, "sits_capa_urbana.gpkg"),
		filepath.Join(dir, "sits_capa_urbana.shp"),
	}, paths)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	_, err = WriteAll(context.Background(), dir, model.KindRural, sampleZones(), []string{"kml"})
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "sits_capa_rural.geojson"), Path("out", model.KindRural, FormatGeoJSON))
	assert.Equal(t, filepath.Join("out", "sits_capa_urbana.gpkg"), Path("out", model.KindUrban, FormatGeoPackage))
}
