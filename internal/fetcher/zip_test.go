package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	require.NoError(t, os.WriteFile(zipPath, zipBytes(t, files), 0o644))
	return zipPath
}

func TestExtractZIP(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"30m.shp":         "shp",
		"30m.dbf":         "dbf",
		"metadatos/a.xml": "xml",
		"metadatos/":      "",
	})
	dest := t.TempDir()

	files, err := ExtractZIP(zipPath, dest)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	data, err := os.ReadFile(filepath.Join(dest, "metadatos", "a.xml"))
	require.NoError(t, err)
	assert.Equal(t, "xml", string(data))
}

func TestExtractZIP_ZipSlipPrevention(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../../etc/evil.txt": "x"})
	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_InvalidArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err := ExtractZIP(path, t.TempDir())
	assert.Error(t, err)
}

func TestExtractZIPMatching(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"conjunto/30M.SHP": "shp",
		"conjunto/30m.prj": "prj",
		"conjunto/30l.shp": "loc",
		"leeme.txt":        "readme",
	})

	tests := []struct {
		name     string
		patterns []string
		want     []string
		wantErr  bool
	}{
		{"case-insensitive base name", []string{"30m.*"}, []string{"conjunto/30M.SHP", "conjunto/30m.prj"}, false},
		{"several patterns", []string{"30l.shp", "*.txt"}, []string{"conjunto/30l.shp", "leeme.txt"}, false},
		{"no match", []string{"30e.*"}, nil, true},
		{"bad pattern", []string{"["}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := t.TempDir()
			files, err := ExtractZIPMatching(zipPath, dest, tt.patterns...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			want := make([]string, len(tt.want))
			for i, w := range tt.want {
				want[i] = filepath.Join(dest, filepath.FromSlash(w))
			}
			assert.ElementsMatch(t, want, files)
		})
	}
}
