package assembler

import (
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/economy"
	"github.com/sells-group/sits/internal/geo"
	"github.com/sells-group/sits/internal/source"
	"github.com/sells-group/sits/internal/topography"
)

// Inputs are the optional sources shared by both zone kinds. A nil slice
// means the source was missing or unreadable.
type Inputs struct {
	Units      []economy.Unit
	Rivers     []geom.T
	Classifier *economy.Classifier
	RasterPath string

	UnitsPath  string
	RiversPath string
}

// LoadInputs resolves and reads the optional sources. Failures are logged
// and leave the matching field empty.
func (r *Runner) LoadInputs() *Inputs {
	log := zap.L().With(zap.String("component", "assembler.inputs"))
	in := &Inputs{Classifier: economy.DefaultClassifier()}

	if path := r.cfg.Economy.SectorTable; path != "" {
		c, err := economy.LoadSectorTable(path)
		if err != nil {
			log.Warn("assembler: sector table unreadable, using default rules",
				zap.String("path", path), zap.Error(err))
		} else {
			in.Classifier = c
		}
	}

	if path, ok := r.resolver.Resolve(source.EconomicUnits); ok {
		units, err := economy.LoadUnits(path, r.cfg.Economy.CodeField)
		if err != nil {
			log.Warn("assembler: economic units unreadable", zap.String("path", path), zap.Error(err))
		} else {
			in.Units, in.UnitsPath = units, path
		}
	} else {
		log.Warn("assembler: economic units not found, economy and gas restriction default to zero")
	}

	if path, ok := r.resolver.Resolve(source.Rivers); ok {
		rivers, err := readWGS84(path)
		if err != nil {
			log.Warn("assembler: river layer unreadable", zap.String("path", path), zap.Error(err))
		} else {
			in.Rivers, in.RiversPath = rivers, path
		}
	} else {
		log.Warn("assembler: river layer not found, water restriction defaults to false")
	}

	if path, ok := r.resolver.Resolve(source.Elevation); ok {
		in.RasterPath = path
	} else {
		log.Warn("assembler: elevation raster not found, slope uses the synthetic fallback")
	}
	return in
}

func readWGS84(path string) ([]geom.T, error) {
	l, err := geo.ReadLayer(path)
	if err != nil {
		return nil, err
	}
	l, err = geo.Reproject(l, geo.WGS84())
	if err != nil {
		return nil, err
	}
	return l.Geometries(), nil
}

// RasterOpener opens an elevation raster.
type RasterOpener func(path string) (topography.Raster, error)

func openGDAL(path string) (topography.Raster, error) {
	r, err := topography.OpenGDAL(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}
