// Package output writes and reads the per-kind zone datasets.
package output

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/model"
)

// Output formats.
const (
	FormatGeoJSON    = "geojson"
	FormatGeoPackage = "gpkg"
	FormatShapefile  = "shp"
)

// Writer writes one zone kind's dataset to path. Existing files are
// replaced.
type Writer interface {
	Write(ctx context.Context, path string, zones []model.Zone) error
	Ext() string
}

// ForFormat returns the writer for a format name.
func ForFormat(format string) (Writer, error) {
	switch format {
	case FormatGeoJSON:
		return GeoJSONWriter{}, nil
	case FormatGeoPackage:
		return GeoPackageWriter{}, nil
	case FormatShapefile:
		return ShapefileWriter{}, nil
	default:
		return nil, eris.Errorf("output: unknown format %q", format)
	}
}

// BaseName is the file name, without extension, of a kind's dataset.
func BaseName(kind model.Kind) string {
	return "sits_capa_" + kind.Slug()
}

// Path returns the dataset path of kind in dir for format.
func Path(dir string, kind model.Kind, format string) string {
	w, err := ForFormat(format)
	if err != nil {
		return filepath.Join(dir, BaseName(kind)+"."+format)
	}
	return filepath.Join(dir, BaseName(kind)+w.Ext())
}

// WriteAll writes zones in every format to dir and returns the paths
// written.
func WriteAll(ctx context.Context, dir string, kind model.Kind, zones []model.Zone, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "output: create %s", dir)
	}

	var paths []string
	for _, f := range formats {
		w, err := ForFormat(f)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, BaseName(kind)+w.Ext())
		if err := w.Write(ctx, path, zones); err != nil {
			return paths, eris.Wrapf(err, "output: write %s", path)
		}
		zap.L().Info("output: dataset written",
			zap.String("component", "output"),
			zap.String("kind", string(kind)),
			zap.String("path", path),
			zap.Int("zones", len(zones)),
		)
		paths = append(paths, path)
	}
	return paths, nil
}

// replaceFile writes data to a temporary file next to path and renames it
// into place.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrap(err, "output: create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "output: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "output: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "output: rename to %s", path)
	}
	return nil
}
