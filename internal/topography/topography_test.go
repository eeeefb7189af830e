package topography

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/sits/internal/geo"
	"github.com/sells-group/sits/internal/model"
)

// fakeRaster is a 10x10 grid with its origin at (0,10) and 1-unit pixels.
type fakeRaster struct {
	crs       string
	gt        [6]float64
	values    func(col, row int) float64
	nodata    float64
	hasNodata bool
	failRead  bool
	reads     int
}

func newFake(values func(col, row int) float64) *fakeRaster {
	return &fakeRaster{gt: [6]float64{0, 1, 0, 10, 0, -1}, values: values}
}

func (f *fakeRaster) CRS() string              { return f.crs }
func (f *fakeRaster) GeoTransform() [6]float64 { return f.gt }
func (f *fakeRaster) Size() (int, int)         { return 10, 10 }
func (f *fakeRaster) NoData() (float64, bool)  { return f.nodata, f.hasNodata }
func (f *fakeRaster) Close() error             { return nil }

func (f *fakeRaster) Read(x, y, w, h int) ([]float64, error) {
	f.reads++
	if f.failRead {
		return nil, errors.New("boom")
	}
	out := make([]float64, 0, w*h)
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			out = append(out, f.values(col, row))
		}
	}
	return out, nil
}

func square(x0, y0, size float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x0, y0, x0 + size, y0, x0 + size, y0 + size, x0, y0 + size, x0, y0,
	}, []int{10})
}

func newAnalyzer() *Analyzer {
	return NewAnalyzer(geo.NewSpace(), DefaultOptions())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		v    float64
		want model.SlopeClass
	}{
		{0, model.SlopeViable},
		{4.99, model.SlopeViable},
		{5, model.SlopeConditioned},
		{14.99, model.SlopeConditioned},
		{15, model.SlopeNonUrbanizable},
		{20, model.SlopeNonUrbanizable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.v), "slope %v", tt.v)
	}
}

func TestSynthetic_Deterministic(t *testing.T) {
	a := newAnalyzer()
	b := newAnalyzer()

	first := a.Synthetic(50)
	second := b.Synthetic(50)
	assert.Equal(t, first, second)
	for _, v := range first {
		assert.GreaterOrEqual(t, v, 1.0)
		assert.Less(t, v, 30.0)
	}

	// A prefix of a longer run matches the shorter run.
	assert.Equal(t, first[:10], a.Synthetic(10))

	other := NewAnalyzer(geo.NewSpace(), Options{Seed: 7, FallbackMin: 1, FallbackMax: 30, Scale: 5, NodataFloor: -9999})
	assert.NotEqual(t, first, other.Synthetic(50))
}

func TestAnalyze_NoRasterFallsBack(t *testing.T) {
	zones := []geom.T{square(0, 0, 1), square(1, 1, 1), square(2, 2, 1)}
	res, err := newAnalyzer().Analyze(context.Background(), nil, zones)
	require.NoError(t, err)
	assert.Equal(t, model.SlopeFromSynthetic, res.Source)
	assert.Equal(t, newAnalyzer().Synthetic(3), res.Values)
}

func TestAnalyze_UnparsableCRSFallsBack(t *testing.T) {
	r := newFake(func(int, int) float64 { return 1 })
	r.crs = "not a crs"
	res, err := newAnalyzer().Analyze(context.Background(), r, []geom.T{square(0, 8, 2)})
	require.NoError(t, err)
	assert.Equal(t, model.SlopeFromSynthetic, res.Source)
	assert.Zero(t, r.reads)
}

// WKT1 as exported by GDAL for EPSG:4326 and EPSG:32615.
const (
	gdalWGS84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AXIS["Latitude",NORTH],AXIS["Longitude",EAST],AUTHORITY["EPSG","4326"]]`
	gdalUTM15WKT = `PROJCS["WGS 84 / UTM zone 15N",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]],PROJECTION["Transverse_Mercator"],PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",-93],PARAMETER["scale_factor",0.9996],PARAMETER["false_easting",500000],PARAMETER["false_northing",0],UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["Easting",EAST],AXIS["Northing",NORTH],AUTHORITY["EPSG","32615"]]`
)

func TestAnalyze_GDALCRS(t *testing.T) {
	alternating := func(col, _ int) float64 { return float64(col%2) * 10 }

	// utmFake lays a 10x10 grid over the zone projected to UTM 15N, with
	// the zone four pixels wide and three pixels of margin.
	utmFake := func(t *testing.T, zone geom.T) *fakeRaster {
		t.Helper()
		utm, err := geo.ParseCRS(gdalUTM15WKT)
		require.NoError(t, err)
		projected, err := geo.ReprojectGeoms([]geom.T{zone}, geo.WGS84(), utm)
		require.NoError(t, err)
		b := projected[0].Bounds()
		px := (b.Max(0) - b.Min(0)) / 4
		r := newFake(alternating)
		r.crs = gdalUTM15WKT
		r.gt = [6]float64{b.Min(0) - 3*px, px, 0, b.Max(1) + 3*px, 0, -px}
		return r
	}

	tests := []struct {
		name   string
		zone   geom.T
		raster func(t *testing.T, zone geom.T) *fakeRaster
		want   float64 // 0 means any positive value
	}{
		{
			name: "geographic",
			zone: square(0, 8, 2),
			raster: func(*testing.T, geom.T) *fakeRaster {
				r := newFake(alternating)
				r.crs = gdalWGS84WKT
				return r
			},
			want: 25,
		},
		{
			name:   "projected",
			zone:   square(-95.11, 18.42, 0.01),
			raster: utmFake,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.raster(t, tt.zone)
			res, err := newAnalyzer().Analyze(context.Background(), r, []geom.T{tt.zone})
			require.NoError(t, err)
			assert.Equal(t, model.SlopeFromRaster, res.Source)
			assert.Zero(t, res.Failed)
			assert.Positive(t, r.reads)
			if tt.want != 0 {
				assert.InDelta(t, tt.want, res.Values[0], 1e-6)
			} else {
				assert.Positive(t, res.Values[0])
			}
		})
	}
}

func TestAnalyze_ZonalStdDev(t *testing.T) {
	// Values alternate 0 and 10 by column: std of {0,10,0,10} is 5.
	r := newFake(func(col, _ int) float64 { return float64(col%2) * 10 })

	zones := []geom.T{
		square(0, 8, 2),   // four pixel centres inside
		square(50, 50, 1), // outside the raster
		geom.NewPointFlat(geom.XY, []float64{3.5, 6.5}),
		square(4, 4, 2), // same pattern elsewhere
	}
	res, err := newAnalyzer().Analyze(context.Background(), r, zones)
	require.NoError(t, err)
	assert.Equal(t, model.SlopeFromRaster, res.Source)
	require.Len(t, res.Values, 4)
	assert.InDelta(t, 25, res.Values[0], 1e-9)
	assert.Zero(t, res.Values[1])
	assert.Zero(t, res.Values[2], "a single pixel has no dispersion")
	assert.InDelta(t, 25, res.Values[3], 1e-9)
	assert.Equal(t, 1, res.Failed)
}

func TestAnalyze_DiscardsNodata(t *testing.T) {
	r := newFake(func(col, row int) float64 {
		switch {
		case col == 0 && row == 0:
			return -10000
		case col == 1 && row == 0:
			return 255
		default:
			return 4
		}
	})
	r.nodata, r.hasNodata = 255, true

	res, err := newAnalyzer().Analyze(context.Background(), r, []geom.T{square(0, 8, 2)})
	require.NoError(t, err)
	assert.Zero(t, res.Values[0], "only equal valid values remain")
}

func TestAnalyze_ReadFailureIsolated(t *testing.T) {
	r := newFake(func(int, int) float64 { return 1 })
	r.failRead = true
	res, err := newAnalyzer().Analyze(context.Background(), r, []geom.T{square(0, 8, 2), square(2, 2, 2)})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, res.Values)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, model.SlopeFromRaster, res.Source)
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newFake(func(int, int) float64 { return 1 })
	_, err := newAnalyzer().Analyze(ctx, r, []geom.T{square(0, 8, 2)})
	assert.Error(t, err)
}

func TestAnalyze_RotatedFallsBack(t *testing.T) {
	r := newFake(func(int, int) float64 { return 1 })
	r.gt[2] = 0.1
	res, err := newAnalyzer().Analyze(context.Background(), r, []geom.T{square(0, 8, 2)})
	require.NoError(t, err)
	assert.Equal(t, model.SlopeFromSynthetic, res.Source)
}

func TestStdDev(t *testing.T) {
	assert.InDelta(t, 2, stdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	assert.Zero(t, stdDev([]float64{3}))
}
