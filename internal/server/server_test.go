package server

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/sits/internal/config"
	"github.com/sells-group/sits/internal/metrics"
	"github.com/sells-group/sits/internal/model"
	"github.com/sells-group/sits/internal/output"
)

func zones() []model.Zone {
	pt := func(x float64) geom.T { return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{x, 18.42}) }
	return []model.Zone{
		{
			Geocode: "3003200010231001", Kind: model.KindUrban, Geometry: pt(-95.11),
			Municipality: "Catemaco", Locality: "Catemaco (Cabecera)", AGEB: "0231",
			Population: model.Population{Total: 100, Female: 60},
			Indicators: model.Indicators{
				Composite: 0.6, SocialRisk: 0.5, SendaiP1: 0.4, SendaiP4: 0.9,
				Income: 0.5, Health: 1, HydricResilience: 0.2,
			},
			Economy: model.Economy{Tourism: 3},
			Slope:   20,
			Verdict: model.VerdictLandslideRisk,
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

type fixture struct {
	srv   *Server
	h     http.Handler
	loads *atomic.Int32
	rec   *metrics.Recorder
}

func newFixture(t *testing.T, cfg config.ServerConfig) fixture {
	t.Helper()
	var loads atomic.Int32
	rec := metrics.New()
	srv := New(cfg,
		WithLoader(func() ([]model.Zone, error) {
			loads.Add(1)
			return zones(), nil
		}),
		WithMetrics(rec),
	)
	return fixture{srv: srv, h: srv.Router(), loads: &loads, rec: rec}
}

func defaultCfg() config.ServerConfig {
	return config.ServerConfig{
		Port:          8080,
		CORSOrigins:   []string{"*"},
		CacheTTLSecs:  300,
		CacheCapacity: 16,
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, defaultCfg())
	w := get(t, f.h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLayer(t *testing.T) {
	f := newFixture(t, defaultCfg())

	w := get(t, f.h, "/api/v1/layers/urbana")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	got, err := output.UnmarshalGeoJSON(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3003200010231001", got[0].Geocode)

	w = get(t, f.h, "/api/v1/layers/suburbana")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestZones_Filters(t *testing.T) {
	f := newFixture(t, defaultCfg())

	tests := []struct {
		query string
		code  int
		want  int
	}{
		{"", http.StatusOK, 2},
		{"?kind=rural", http.StatusOK, 1},
		{"?locality=Sontecomapan", http.StatusOK, 1},
		{"?kind=urbana&ageb=9999", http.StatusOK, 0},
		{"?kind=planeta", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(t, f.h, "/api/v1/zones"+tt.query)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.code != http.StatusOK {
				return
			}
			got := decode[[]map[string]any](t, w)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestFilters(t *testing.T) {
	f := newFixture(t, defaultCfg())
	got := decode[map[string]any](t, get(t, f.h, "/api/v1/filters"))
	assert.Equal(t, []any{"Catemaco (Cabecera)", "Sontecomapan"}, got["localities"])
	assert.Equal(t, []any{"0231"}, got["agebs"])
	assert.Len(t, got["groups"], 9)
}

func TestSummary(t *testing.T) {
	f := newFixture(t, defaultCfg())

	got := decode[summary](t, get(t, f.h, "/api/v1/summary?group=P25_FEM"))
	assert.Equal(t, 2, got.KPIs.Zones)
	assert.InDelta(t, 140, got.KPIs.Total, 1e-9)
	assert.Equal(t, model.PropFemale, got.Group)
	assert.Equal(t, 1, got.Restricted)
	require.Len(t, got.Incidence, 5)
	assert.InDelta(t, 30, got.Incidence[0].Affected, 1e-9)

	w := get(t, f.h, "/api/v1/summary?group=P25_NADA")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoster(t *testing.T) {
	f := newFixture(t, defaultCfg())

	got := decode[tableBody](t, get(t, f.h, "/api/v1/roster?indicator=CAR_SALUD_20&limit=1"))
	assert.Equal(t, "padron_CAR_SALUD_20", got.Name)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "Catemaco (Cabecera)", got.Rows[0][0])

	assert.Equal(t, http.StatusBadRequest, get(t, f.h, "/api/v1/roster?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, f.h, "/api/v1/roster?indicator=X").Code)
}

func TestOperationalAndSendai(t *testing.T) {
	f := newFixture(t, defaultCfg())

	got := decode[tableBody](t, get(t, f.h, "/api/v1/operational/hidrica"))
	assert.Equal(t, "logistica_pipas_agua", got.Name)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "URGENTE (24 HRS - Sin Tinaco)", got.Rows[0][len(got.Rows[0])-1])
	assert.Equal(t, http.StatusNotFound, get(t, f.h, "/api/v1/operational/fiscal").Code)

	plan := decode[map[string]any](t, get(t, f.h, "/api/v1/sendai/p4"))
	assert.InDelta(t, 1, plan["total"], 1e-9)
	assert.Equal(t, "Puntos Ciegos (Requieren Radio/Antena)", plan["resource"])
	assert.Equal(t, http.StatusNotFound, get(t, f.h, "/api/v1/sendai/p2").Code)
}

func TestDecisionsCSV(t *testing.T) {
	f := newFixture(t, defaultCfg())

	w := get(t, f.h, "/api/v1/decisions?format=csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "decision_inversion.csv")

	recs, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "VOCACION_DOMINANTE", recs[0][5])
	assert.Equal(t, "TURISMO", recs[1][5])

	top := decode[tableBody](t, get(t, f.h, "/api/v1/decisions?top_quartile=true"))
	assert.Len(t, top.Rows, 1)
	assert.Equal(t, http.StatusBadRequest, get(t, f.h, "/api/v1/decisions?top_quartile=maybe").Code)
}

func TestEconomyAndRestricted(t *testing.T) {
	f := newFixture(t, defaultCfg())

	eco := decode[tableBody](t, get(t, f.h, "/api/v1/economy"))
	assert.Equal(t, "padron_economico", eco.Name)
	assert.Len(t, eco.Rows, 2)

	res := decode[tableBody](t, get(t, f.h, "/api/v1/restricted?kind=rural"))
	assert.Equal(t, "zonas_restringidas", res.Name)
	assert.Empty(t, res.Rows)
}

func TestResponseCache(t *testing.T) {
	f := newFixture(t, defaultCfg())

	w := get(t, f.h, "/api/v1/zones")
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))
	w = get(t, f.h, "/api/v1/zones")
	assert.Equal(t, "hit", w.Header().Get("X-Cache"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	// Error responses are not cached.
	get(t, f.h, "/api/v1/zones?kind=x")
	assert.Equal(t, "miss", get(t, f.h, "/api/v1/zones?kind=x").Header().Get("X-Cache"))

	stats := decode[CacheStats](t, get(t, f.h, "/api/v1/cache"))
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int32(1), f.loads.Load())
}

func TestDatasetReload(t *testing.T) {
	f := newFixture(t, defaultCfg())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.srv.now = func() time.Time { return now }

	get(t, f.h, "/api/v1/filters")
	get(t, f.h, "/api/v1/zones")
	assert.Equal(t, int32(1), f.loads.Load())

	now = now.Add(10 * time.Minute)
	get(t, f.h, "/api/v1/summary")
	assert.Equal(t, int32(2), f.loads.Load())
}

func TestResponseCache_ClearedOnReload(t *testing.T) {
	f := newFixture(t, defaultCfg())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.srv.now = func() time.Time { return now }

	assert.Equal(t, "miss", get(t, f.h, "/api/v1/zones").Header().Get("X-Cache"))
	assert.Equal(t, "hit", get(t, f.h, "/api/v1/zones").Header().Get("X-Cache"))

	now = now.Add(10 * time.Minute)
	assert.Equal(t, "miss", get(t, f.h, "/api/v1/zones").Header().Get("X-Cache"))
	assert.Equal(t, int32(2), f.loads.Load())
	assert.Equal(t, "hit", get(t, f.h, "/api/v1/zones").Header().Get("X-Cache"))
}

func TestDatasetUnavailable(t *testing.T) {
	srv := New(defaultCfg(), WithLoader(func() ([]model.Zone, error) {
		return nil, errors.New("no datasets")
	}))
	w := get(t, srv.Router(), "/api/v1/zones")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no datasets")
}

func TestDefaultLoaderReadsDataDir(t *testing.T) {
	dir := t.TempDir()
	_, err := output.WriteAll(t.Context(), dir, model.KindRural, zones()[1:], []string{output.FormatGeoJSON})
	require.NoError(t, err)

	cfg := defaultCfg()
	cfg.DataDir = dir
	got := decode[[]map[string]any](t, get(t, New(cfg).Router(), "/api/v1/zones"))
	require.Len(t, got, 1)
	assert.Equal(t, "300320015", got[0][model.PropGeocode])
}

func TestCORS(t *testing.T) {
	f := newFixture(t, defaultCfg())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/filters", nil)
	req.Header.Set("Origin", "https://tablero.example")
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, defaultCfg())
	get(t, f.h, "/api/v1/zones")
	get(t, f.h, "/api/v1/layers/rural")

	w := get(t, f.h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `sits_api_requests_total{route="/api/v1/zones",status="200"} 1`)
	assert.Contains(t, body, `sits_api_requests_total{route="/api/v1/layers/{kind}",status="200"} 1`)
}
