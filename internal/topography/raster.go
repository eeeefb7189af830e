package topography

import (
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sits/internal/geo"
)

// Raster is a single-band elevation grid.
type Raster interface {
	// CRS returns the raster's spatial reference as WKT, or "" when unknown.
	CRS() string
	// GeoTransform maps pixel (col,row) to georeferenced coordinates.
	GeoTransform() [6]float64
	Size() (width, height int)
	NoData() (float64, bool)
	// Read returns a row-major window of w×h values starting at (x,y).
	Read(x, y, w, h int) ([]float64, error)
	Close() error
}

var registerOnce sync.Once

// GDALRaster reads the first band of any GDAL-supported raster.
type GDALRaster struct {
	ds     *godal.Dataset
	band   godal.Band
	gt     [6]float64
	wkt    string
	width  int
	height int
}

// OpenGDAL opens path with GDAL.
func OpenGDAL(path string) (*GDALRaster, error) {
	registerOnce.Do(godal.RegisterAll)

	ds, err := godal.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "topography: open raster %s", path)
	}
	st := ds.Structure()
	if st.NBands < 1 {
		_ = ds.Close()
		return nil, eris.Errorf("topography: raster %s has no bands", path)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		_ = ds.Close()
		return nil, eris.Wrapf(err, "topography: raster %s has no geotransform", path)
	}

	r := &GDALRaster{
		ds:     ds,
		band:   ds.Bands()[0],
		gt:     gt,
		width:  st.SizeX,
		height: st.SizeY,
	}
	if sr := ds.SpatialRef(); sr != nil {
		r.wkt = crsDefinition(sr)
	}
	return r, nil
}

// crsDefinition returns the working CRS definition for WGS84 geographic
// rasters and the WKT export otherwise.
func crsDefinition(sr *godal.SpatialRef) string {
	if sr.Geographic() {
		if wgs84, err := godal.NewSpatialRefFromEPSG(4326); err == nil {
			same := sr.IsSame(wgs84)
			wgs84.Close()
			if same {
				return geo.WGS84Def
			}
		}
	}
	wkt, err := sr.WKT()
	if err != nil {
		return ""
	}
	return wkt
}

func (r *GDALRaster) CRS() string              { return r.wkt }
func (r *GDALRaster) GeoTransform() [6]float64 { return r.gt }
func (r *GDALRaster) Size() (int, int)         { return r.width, r.height }
func (r *GDALRaster) NoData() (float64, bool)  { return r.band.NoData() }

func (r *GDALRaster) Read(x, y, w, h int) ([]float64, error) {
	buf := make([]float64, w*h)
	if err := r.band.Read(x, y, buf, w, h); err != nil {
		return nil, eris.Wrapf(err, "topography: read window %d,%d %dx%d", x, y, w, h)
	}
	return buf, nil
}

func (r *GDALRaster) Close() error {
	return r.ds.Close()
}
