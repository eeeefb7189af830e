package economy

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/geo"
	"github.com/sells-group/sits/internal/model"
)

// DefaultCodeField is the DENUE activity code column.
const DefaultCodeField = "codigo_act"

// Unit is one economic unit: its location and SCIAN activity code.
// Inferred marks a code read from a fallback column rather than the code
// field; such codes feed sector counts but never hazard detection.
type Unit struct {
	Geometry geom.T
	Code     string
	Inferred bool
}

// UnitsFromLayer extracts units from a layer. The code comes from
// codeField; when the layer has no such field the first attribute column
// is used instead and every unit is marked Inferred.
func UnitsFromLayer(l *geo.Layer, codeField string) []Unit {
	if codeField == "" {
		codeField = DefaultCodeField
	}
	field := strings.ToUpper(codeField)
	inferred := false
	if !l.HasField(field) {
		if len(l.Fields) == 0 {
			field = ""
		} else {
			zap.L().Warn("economy: code field missing, using first column",
				zap.String("field", codeField),
				zap.String("fallback", l.Fields[0]),
			)
			field = l.Fields[0]
			inferred = true
		}
	}

	out := make([]Unit, 0, len(l.Features))
	for _, f := range l.Features {
		out = append(out, Unit{Geometry: f.Geometry, Code: f.Attr(field), Inferred: inferred})
	}
	return out
}

// LoadUnits reads the economic unit layer at path in WGS84.
func LoadUnits(path, codeField string) ([]Unit, error) {
	l, err := geo.ReadLayer(path)
	if err != nil {
		return nil, err
	}
	l, err = geo.Reproject(l, geo.WGS84())
	if err != nil {
		return nil, eris.Wrap(err, "economy: reproject units")
	}
	return UnitsFromLayer(l, codeField), nil
}

// Stats reports how many units fell inside at least one zone.
type Stats struct {
	Units   int `json:"units"`
	Joined  int `json:"joined"`
	Outside int `json:"outside"`
}

// Integrate counts units per zone and sector. A unit within several zones
// counts for each of them; units outside every zone are dropped. The
// result has one entry per indexed zone. On cancellation the counts so far
// are discarded and zeros returned.
func Integrate(ctx context.Context, s *geo.Space, zones *geo.Index, units []Unit, c *Classifier) ([]model.Economy, Stats) {
	log := zap.L().With(zap.String("component", "economy"))
	if c == nil {
		c = DefaultClassifier()
	}

	counts := make([]model.Economy, zones.Len())
	stats := Stats{Units: len(units)}
	for i, u := range units {
		if i%256 == 0 && ctx.Err() != nil {
			log.Warn("economy: cancelled, counts set to zero", zap.Error(ctx.Err()))
			return make([]model.Economy, zones.Len()), Stats{Units: len(units)}
		}
		if u.Geometry == nil {
			stats.Outside++
			continue
		}
		g, err := s.Geom(u.Geometry)
		if err != nil {
			log.Debug("economy: skipping unit", zap.Int("unit", i), zap.Error(err))
			stats.Outside++
			continue
		}
		hits := zones.Containing(g)
		if len(hits) == 0 {
			stats.Outside++
			continue
		}
		sector := c.Classify(u.Code)
		for _, z := range hits {
			counts[z].Add(sector)
		}
		stats.Joined++
	}

	log.Info("economy: units joined",
		zap.Int("units", stats.Units),
		zap.Int("joined", stats.Joined),
		zap.Int("outside", stats.Outside),
	)
	return counts, stats
}
