package output

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sits/internal/geo"
	"github.com/sells-group/sits/internal/model"
)

// ShortNames maps output properties longer than the 10-byte DBF limit to
// their shapefile column names.
var ShortNames = map[string]string{
	model.PropElderly:       "P25_MAYOR",
	model.PropHealth:        "CAR_SAL_20",
	model.PropServices:      "CAR_SER_20",
	model.PropIncome:        "CAR_POB_20",
	model.PropHydric:        "RES_HIDRIC",
	model.PropEnvironmental: "PRES_AMB",
	model.PropSocialRisk:    "RIESGO_SOC",
	model.PropSendaiP1:      "SENDAI_P1",
	model.PropSendaiP3:      "SENDAI_P3",
	model.PropSendaiP4:      "SENDAI_P4",
	model.PropEcoTourism:    "ECO_TURISM",
	model.PropEcoCommerce:   "ECO_COMERC",
	model.PropEcoIndustry:   "ECO_INDUST",
	model.PropEcoServices:   "ECO_SERVIC",
	model.PropTourismDep:    "VOC_TURIS",
	model.PropSlope:         "PENDIENTE",
	model.PropSlopeClass:    "CLAS_TOPO",
	model.PropSlopeSource:   "FUENTE_PEN",
	model.PropGas:           "RESTR_GAS",
	model.PropWater:         "RESTR_AGUA",
	model.PropVerdict:       "DICTAMEN",
}

// ShortName returns the DBF column name of a property.
func ShortName(prop string) string {
	if s, ok := ShortNames[prop]; ok {
		return s
	}
	return prop
}

var stringSizes = map[string]uint8{
	model.PropGeocode:      16,
	model.PropKind:         10,
	model.PropMunicipality: 80,
	model.PropLocality:     120,
	model.PropAGEB:         8,
	model.PropSlopeClass:   40,
	model.PropSlopeSource:  12,
	model.PropVerdict:      40,
}

// ShapefileWriter writes an ESRI shapefile set (.shp, .shx, .dbf, .prj).
type ShapefileWriter struct{}

func (ShapefileWriter) Ext() string { return ".shp" }

func (ShapefileWriter) Write(ctx context.Context, path string, zones []model.Zone) error {
	fields := shapefileFields()
	records := make([]geo.Record, 0, len(zones))
	for i := range zones {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "output: cancelled")
		}
		props := zones[i].Properties()
		values := make([]any, len(model.Schema))
		for j, p := range model.Schema {
			values[j] = props[p.Name]
		}
		records = append(records, geo.Record{Geometry: zones[i].Geometry, Values: values})
	}

	base := strings.TrimSuffix(path, ".shp")
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "output: remove %s", base+ext)
		}
	}
	return geo.WriteShapefile(path, geo.WGS84(), fields, records)
}

func shapefileFields() []geo.FieldSpec {
	fields := make([]geo.FieldSpec, len(model.Schema))
	for i, p := range model.Schema {
		f := geo.FieldSpec{Name: ShortName(p.Name)}
		switch p.Type {
		case model.PropertyString:
			f.Type, f.Size = geo.FieldString, stringSizes[p.Name]
			if f.Size == 0 {
				f.Size = 64
			}
		case model.PropertyFloat:
			f.Type, f.Size, f.Precision = geo.FieldFloat, 18, 6
		case model.PropertyInt:
			f.Type, f.Size = geo.FieldNumber, 10
		case model.PropertyBool:
			f.Type, f.Size = geo.FieldNumber, 1
		}
		fields[i] = f
	}
	return fields
}
