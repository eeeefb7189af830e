package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"ITER": {
			{"Resultados por localidad"},
			{"CVEGEO", "POBTOT", ""},
			{"", "", ""},
			{" 300320015 ", "40", ""},
		},
	})

	tests := []struct {
		name string
		opts XLSXOptions
		want [][]string
	}{
		{
			name: "blank rows and trailing cells dropped",
			want: [][]string{{"Resultados por localidad"}, {"CVEGEO", "POBTOT"}, {"300320015", "40"}},
		},
		{
			name: "title skipped",
			opts: XLSXOptions{SkipRows: 1},
			want: [][]string{{"CVEGEO", "POBTOT"}, {"300320015", "40"}},
		},
		{
			name: "by name",
			opts: XLSXOptions{SheetName: "ITER", SkipRows: 1},
			want: [][]string{{"CVEGEO", "POBTOT"}, {"300320015", "40"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ReadXLSX(path, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestReadXLSX_Errors(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"ITER": {{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "AGEB"})
	assert.Error(t, err)

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.Error(t, err)

	_, err = ReadXLSX(filepath.Join(t.TempDir(), "none.xlsx"), XLSXOptions{})
	assert.Error(t, err)
}
