package output

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/sits/internal/model"
)

// GeoJSONWriter writes a FeatureCollection in WGS84, one feature per zone
// with the geocode as feature id.
type GeoJSONWriter struct{}

func (GeoJSONWriter) Ext() string { return ".geojson" }

func (GeoJSONWriter) Write(ctx context.Context, path string, zones []model.Zone) error {
	data, err := MarshalGeoJSON(zones)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "output: cancelled")
	}
	return replaceFile(path, data)
}

// MarshalGeoJSON encodes zones as a FeatureCollection.
func MarshalGeoJSON(zones []model.Zone) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(zones))}
	for i := range zones {
		z := &zones[i]
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         z.Geocode,
			Geometry:   z.Geometry,
			Properties: z.Properties(),
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "output: encode geojson")
	}
	return data, nil
}

// ReadGeoJSON reads zones back from a dataset written by GeoJSONWriter.
func ReadGeoJSON(path string) ([]model.Zone, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "output: read %s", path)
	}
	return UnmarshalGeoJSON(raw)
}

// UnmarshalGeoJSON decodes a FeatureCollection into zones.
func UnmarshalGeoJSON(raw []byte) ([]model.Zone, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, eris.Wrap(err, "output: decode geojson")
	}
	zones := make([]model.Zone, 0, len(fc.Features))
	for i, f := range fc.Features {
		z, err := model.ZoneFromProperties(f.Properties)
		if err != nil {
			return nil, eris.Wrapf(err, "output: feature %d", i)
		}
		z.Geometry = f.Geometry
		zones = append(zones, z)
	}
	return zones, nil
}
