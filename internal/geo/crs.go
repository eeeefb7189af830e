package geo

import (
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
)

// WGS84Def is the working CRS of the pipeline and of every output layer.
const WGS84Def = "+proj=longlat +datum=WGS84 +no_defs"

// CRS is a parsed coordinate reference system. Def keeps the source text
// (proj4 string or WKT) it was parsed from.
type CRS struct {
	Def string
	sr  *proj.SR
}

var (
	wgs84Once sync.Once
	wgs84     *CRS
)

// WGS84 returns the geographic lon/lat CRS.
func WGS84() *CRS {
	wgs84Once.Do(func() {
		c, err := ParseCRS(WGS84Def)
		if err != nil {
			panic(err)
		}
		wgs84 = c
	})
	return wgs84
}

// ParseCRS parses a proj4 string or an ESRI/OGC WKT definition.
func ParseCRS(def string) (*CRS, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return nil, eris.New("geo: empty CRS definition")
	}
	sr, err := proj.Parse(def)
	if err != nil && strings.Contains(def, "AXIS[") {
		// GDAL writes AXIS nodes inside GEOGCS, which the WKT reader
		// rejects. Raster geotransforms are in lon/lat order regardless.
		sr, err = proj.Parse(stripAxes(def))
	}
	if err != nil {
		return nil, eris.Wrap(err, "geo: parse CRS")
	}
	return &CRS{Def: def, sr: sr}, nil
}

// stripAxes removes every AXIS[...] node, and the comma before it, from a
// WKT definition.
func stripAxes(wkt string) string {
	var b strings.Builder
	for {
		i := strings.Index(wkt, "AXIS[")
		if i < 0 {
			b.WriteString(wkt)
			return b.String()
		}
		head := strings.TrimRight(wkt[:i], " \t\r\n")
		b.WriteString(strings.TrimSuffix(head, ","))

		depth, j := 0, i+len("AXIS")
		for ; j < len(wkt); j++ {
			if wkt[j] == '[' {
				depth++
			} else if wkt[j] == ']' {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		if j >= len(wkt) {
			return b.String()
		}
		wkt = wkt[j+1:]
	}
}

// IsGeographic reports whether coordinates are longitude/latitude degrees.
func (c *CRS) IsGeographic() bool {
	return c.sr.Name == "longlat"
}

// Equal reports whether two CRS come from the same definition.
func (c *CRS) Equal(o *CRS) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c == o || c.Def == o.Def {
		return true
	}
	// Geographic WGS84 written in different dialects.
	return c.IsGeographic() && o.IsGeographic() && isWGS84(c.sr) && isWGS84(o.sr)
}

func isWGS84(sr *proj.SR) bool {
	return strings.EqualFold(sr.DatumCode, "wgs84") ||
		strings.Contains(strings.ToUpper(sr.DatumName), "WGS") ||
		strings.Contains(strings.ToUpper(sr.DatumName), "WORLD GEODETIC SYSTEM 1984")
}

// Transformer returns the coordinate transform from c to dst.
func (c *CRS) Transformer(dst *CRS) (proj.Transformer, error) {
	t, err := c.sr.NewTransform(dst.sr)
	if err != nil {
		return nil, eris.Wrap(err, "geo: create transform")
	}
	return t, nil
}

// ReadPRJ reads the .prj sidecar of a shapefile. ok is false when the
// sidecar does not exist.
func ReadPRJ(shpPath string) (crs *CRS, ok bool, err error) {
	prj := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	raw, err := os.ReadFile(prj)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, eris.Wrapf(err, "geo: read %s", prj)
	}
	crs, err = ParseCRS(string(raw))
	if err != nil {
		return nil, true, err
	}
	return crs, true, nil
}

// UTMZone returns the UTM zone number covering a longitude.
func UTMZone(lon float64) int {
	z := int(math.Floor((lon+180)/6)) + 1
	if z < 1 {
		z = 1
	}
	if z > 60 {
		z = 60
	}
	return z
}

// UTM returns the WGS84 UTM CRS for the zone covering lon/lat.
func UTM(lon, lat float64) (*CRS, error) {
	def := "+proj=utm +zone=" + strconv.Itoa(UTMZone(lon)) + " +datum=WGS84 +units=m +no_defs"
	if lat < 0 {
		def = "+proj=utm +zone=" + strconv.Itoa(UTMZone(lon)) + " +south +datum=WGS84 +units=m +no_defs"
	}
	return ParseCRS(def)
}
