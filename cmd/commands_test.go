package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/sits/internal/assembler"
	"github.com/sells-group/sits/internal/config"
	"github.com/sells-group/sits/internal/fetcher"
	"github.com/sells-group/sits/internal/model"
	"github.com/sells-group/sits/internal/output"
	"github.com/sells-group/sits/internal/report"
	"github.com/sells-group/sits/internal/source"
)

func testZones() []model.Zone {
	pt := func(x float64) geom.T { return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{x, 18.42}) }
	return []model.Zone{
		{
			Geocode: "3003200010231001", Kind: model.KindUrban, Geometry: pt(-95.11),
			Municipality: "Catemaco", Locality: "Catemaco (Cabecera)", AGEB: "0231",
			Population: model.Population{Total: 100, Female: 60},
			Indicators: model.Indicators{Composite: 0.6, SocialRisk: 0.5, SendaiP1: 0.4, Health: 1},
			Economy:    model.Economy{Tourism: 3},
			Slope:      20,
			Verdict:    model.VerdictLandslideRisk,
		},
		{
			Geocode: "300320015", Kind: model.KindRural, Geometry: pt(-95.05),
			Municipality: "Catemaco", Locality: "Sontecomapan", AGEB: "RURAL",
			Population: model.Population{Total: 40, Female: 20},
			Indicators: model.Indicators{Composite: 0.1, HydricResilience: 0.9},
			Slope:      5,
			Verdict:    model.VerdictFeasible,
		},
	}
}

func TestFormatManifest(t *testing.T) {
	m := &assembler.Manifest{
		RunID:        "run-1",
		Municipality: "Catemaco",
		Started:      time.Now(),
		Kinds: []assembler.KindReport{
			{
				Kind:          model.KindUrban,
				Zones:         12,
				Join:          assembler.JoinReport{Matched: 12, DroppedTable: 3},
				SlopeSource:   model.SlopeFromSynthetic,
				GasRestricted: 2,
				Fallbacks:     []string{"slope"},
			},
			{Kind: model.KindRural, Error: "layer missing"},
		},
	}

	var buf bytes.Buffer
	formatManifest(&buf, m)
	out := buf.String()

	assert.Contains(t, out, "Run run-1 (Catemaco)")
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "Urbano")
	assert.Contains(t, out, "synthetic")
	assert.Contains(t, out, "FAILED: layer missing")
}

func TestApplyRunFlags(t *testing.T) {
	c := &config.Config{Output: config.OutputConfig{Dir: "out", Formats: []string{"geojson"}}}

	require.NoError(t, runCmd.Flags().Set("parallel", "true"))
	runOutDir = "elsewhere"
	runFormats = []string{"gpkg", "shp"}
	t.Cleanup(func() {
		runParallel, runOutDir, runFormats = false, "", nil
		runCmd.Flags().Lookup("parallel").Changed = false
	})

	applyRunFlags(runCmd, c)
	assert.True(t, c.Pipeline.Parallel)
	assert.Equal(t, "elsewhere", c.Output.Dir)
	assert.Equal(t, []string{"gpkg", "shp"}, c.Output.Formats)
}

func TestRunPipeline_InvalidConfig(t *testing.T) {
	var buf bytes.Buffer
	err := runPipeline(t.Context(), &config.Config{}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Empty(t, buf.String())
}

func TestFormatResolutions(t *testing.T) {
	res := []source.Resolution{
		{Logical: "urban_table", Path: "/data/conjunto_de_datos_ageb_urbana_30_cpv2020.csv", Found: true, Required: true},
		{Logical: "dem", Required: false},
	}
	var buf bytes.Buffer
	formatResolutions(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, "urban_table")
	assert.Contains(t, out, "found")
	assert.Contains(t, out, "missing")
}

func TestCheckRequired(t *testing.T) {
	tests := []struct {
		name    string
		res     []source.Resolution
		wantErr bool
	}{
		{"all found", []source.Resolution{{Logical: "a", Found: true, Required: true}}, false},
		{"optional missing", []source.Resolution{{Logical: "dem"}}, false},
		{"required missing", []source.Resolution{{Logical: "urban_layer", Required: true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRequired(tt.res)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "urban_layer")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFetchOptions(t *testing.T) {
	opts := fetchOptions(config.FetchConfig{UserAgent: "ua", TimeoutSecs: 30, RateLimit: 4})
	assert.Equal(t, "ua", opts.HTTP.UserAgent)
	assert.Equal(t, 30*time.Second, opts.HTTP.Timeout)
	assert.Equal(t, 30*time.Second, opts.FTP.Timeout)
	assert.InDelta(t, 4.0, opts.HTTP.RateLimit, 1e-9)
}

func TestFetchSources(t *testing.T) {
	c := config.FetchConfig{Sources: []config.FetchSource{
		{Name: "iter", URL: "https://example.org/iter.zip", Extract: true, Include: []string{"*.csv"}},
		{Name: "mg", URL: "ftp://example.org/mg.zip"},
	}}

	all := fetchSources(c, nil)
	require.Len(t, all, 2)
	assert.Equal(t, fetcher.Source{Name: "iter", URL: "https://example.org/iter.zip", Extract: true, Include: []string{"*.csv"}}, all[0])

	only := fetchSources(c, []string{"mg"})
	require.Len(t, only, 1)
	assert.Equal(t, "mg", only[0].Name)
}

func TestFormatFetchResults(t *testing.T) {
	results := []fetcher.Result{
		{Source: fetcher.Source{Name: "iter"}, Path: "/d/iter.zip", Bytes: 1024, Files: []string{"a.csv"}},
		{Source: fetcher.Source{Name: "mg"}, Skipped: true},
		{Source: fetcher.Source{Name: "dem"}, Err: errors.New("status 404")},
	}
	var buf bytes.Buffer
	formatFetchResults(&buf, results)
	out := buf.String()

	assert.Contains(t, out, "downloaded")
	assert.Contains(t, out, "unchanged")
	assert.Contains(t, out, "FAILED: status 404")
}

func TestReportFilter(t *testing.T) {
	f, err := reportFilter("rural", "Sontecomapan", "")
	require.NoError(t, err)
	assert.Equal(t, model.KindRural, f.Kind)
	assert.Len(t, f.Apply(testZones()), 1)

	_, err = reportFilter("suburban", "", "")
	assert.Error(t, err)
}

func TestBuildTables(t *testing.T) {
	tables, err := buildTables(testZones(), model.PropTotal, model.PropComposite, 10)
	require.NoError(t, err)
	require.Len(t, tables, 10)

	names := map[string]bool{}
	for _, tb := range tables {
		names[tb.Name] = true
	}
	assert.Len(t, names, len(tables), "table names must be unique")
	assert.True(t, names["padron_SITS_INDEX"])
	assert.True(t, names["decision_inversion"])
	assert.True(t, names["zonas_restringidas"])

	_, err = buildTables(testZones(), "NOPE", model.PropComposite, 10)
	assert.Error(t, err)
	_, err = buildTables(testZones(), model.PropTotal, model.PropComposite, -1)
	assert.Error(t, err)
}

func TestWriteTables(t *testing.T) {
	tables, err := buildTables(testZones(), model.PropTotal, model.PropComposite, 10)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "reports")
	paths, err := writeTables(dir, tables)
	require.NoError(t, err)
	require.Len(t, paths, len(tables)+1)

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	assert.Equal(t, "sits_reportes.xlsx", filepath.Base(paths[len(paths)-1]))

	var buf bytes.Buffer
	formatWritten(&buf, tables, paths)
	assert.Contains(t, buf.String(), "workbook:")
}

func TestReportFromWrittenDatasets(t *testing.T) {
	dir := t.TempDir()
	for _, k := range model.Kinds {
		var zs []model.Zone
		for _, z := range testZones() {
			if z.Kind == k {
				zs = append(zs, z)
			}
		}
		_, err := output.WriteAll(t.Context(), dir, k, zs, []string{output.FormatGeoJSON})
		require.NoError(t, err)
	}

	f, err := reportFilter("urban", "", "")
	require.NoError(t, err)

	zones, err := report.Load(dir)
	require.NoError(t, err)
	require.Len(t, zones, 2)

	tables, err := buildTables(f.Apply(zones), model.PropTotal, model.PropComposite, 10)
	require.NoError(t, err)
	for _, tb := range tables {
		if tb.Name == "padron_SITS_INDEX" {
			assert.Len(t, tb.Rows, 1)
		}
	}
}
