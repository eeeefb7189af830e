package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectRows drains a StreamCSV result; it takes the two channels as its
// only parameters so calls can pass StreamCSV(...) directly.
func collectRows(rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  CSVOptions
		want  [][]string
	}{
		{
			name:  "basic",
			input: "a,b\n1,2\n",
			want:  [][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			name:  "semicolon",
			input: "CVEGEO;POBTOT\n300320015;40\n",
			opts:  CSVOptions{Delimiter: ';'},
			want:  [][]string{{"CVEGEO", "POBTOT"}, {"300320015", "40"}},
		},
		{
			name:  "bom stripped",
			input: "\ufeffCVEGEO,POBTOT\n1,2\n",
			want:  [][]string{{"CVEGEO", "POBTOT"}, {"1", "2"}},
		},
		{
			name:  "trim space",
			input: " a , b \n",
			opts:  CSVOptions{TrimSpace: true},
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "skip blank",
			input: "a,b\n,\n1,2\n",
			opts:  CSVOptions{SkipBlank: true},
			want:  [][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			name:  "lazy quotes",
			input: "a,b \"x\" c\n",
			opts:  CSVOptions{LazyQuotes: true},
			want:  [][]string{{"a", "b \"x\" c"}},
		},
		{
			name:  "comment",
			input: "# nota\na,b\n",
			opts:  CSVOptions{Comment: '#'},
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "variable fields",
			input: "a,b,c\n1\n",
			want:  [][]string{{"a", "b", "c"}, {"1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := collectRows(StreamCSV(context.Background(), strings.NewReader(tt.input), tt.opts))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestStreamCSV_Header(t *testing.T) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("\ufeffCVEGEO,POBTOT\n1,2\n3,4\n"), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})
	rows, err := collectRows(rowCh, errCh)
	require.NoError(t, err)

	assert.Equal(t, []string{"CVEGEO", "POBTOT"}, <-headerCh)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, rows)
}

func TestStreamCSV_Empty(t *testing.T) {
	rows, err := collectRows(StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{}))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_ReadError(t *testing.T) {
	_, err := collectRows(StreamCSV(context.Background(), strings.NewReader("a,\"b\n"), CSVOptions{}))
	assert.Error(t, err)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := collectRows(StreamCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
