package report

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/model"
	"github.com/sells-group/sits/internal/output"
)

// Load reads the GeoJSON datasets of every kind from dir, urban first. A
// missing dataset is skipped with a warning; no dataset at all is an
// error.
func Load(dir string) ([]model.Zone, error) {
	var (
		zones []model.Zone
		found int
	)
	for _, kind := range model.Kinds {
		path := output.Path(dir, kind, output.FormatGeoJSON)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			zap.L().Warn("report: dataset missing",
				zap.String("component", "report"), zap.String("path", path))
			continue
		}
		zs, err := output.ReadGeoJSON(path)
		if err != nil {
			return nil, err
		}
		found++
		zones = append(zones, zs...)
	}
	if found == 0 {
		return nil, eris.Errorf("report: no datasets in %s", dir)
	}
	return zones, nil
}
