// Package census reads INEGI 2020 census tables and filters them down to the
// zones of one municipality.
package census

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/sits/internal/fetcher"
)

// Raw is a decoded census table before filtering: normalized column names
// and string records.
type Raw struct {
	Path     string
	Encoding string
	Columns  []string
	Records  [][]string
}

// Index returns the position of each column by name.
func (r *Raw) Index() map[string]int {
	out := make(map[string]int, len(r.Columns))
	for i, c := range r.Columns {
		if _, dup := out[c]; !dup {
			out[c] = i
		}
	}
	return out
}

// ReadRaw loads a CSV or XLSX census table. CSV bytes are decoded with the
// first encoding in encodings that succeeds; "utf-8" is strict, every other
// label accepts any input.
func ReadRaw(ctx context.Context, path string, encodings []string, delimiter rune) (*Raw, error) {
	log := zap.L().With(zap.String("component", "census.table"), zap.String("path", path))

	var (
		rows [][]string
		used string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "census: read %s", path)
		}
		used = "xlsx"
	default:
		raw, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, eris.Wrapf(rerr, "census: read %s", path)
		}
		text, enc, derr := Decode(raw, encodings)
		if derr != nil {
			return nil, eris.Wrapf(derr, "census: decode %s", path)
		}
		used = enc
		rows, err = readCSV(ctx, text, delimiter)
		if err != nil {
			return nil, eris.Wrapf(err, "census: parse %s", path)
		}
	}

	if len(rows) == 0 {
		return nil, eris.Errorf("census: %s is empty", path)
	}

	out := &Raw{
		Path:     path,
		Encoding: used,
		Columns:  NormalizeColumns(rows[0]),
		Records:  rows[1:],
	}
	log.Debug("census: table read",
		zap.String("encoding", used),
		zap.Int("columns", len(out.Columns)),
		zap.Int("records", len(out.Records)),
	)
	return out, nil
}

func readCSV(ctx context.Context, text string, delimiter rune) ([][]string, error) {
	if delimiter == 0 {
		delimiter = ','
	}
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, strings.NewReader(text), fetcher.CSVOptions{
		Delimiter:  delimiter,
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	select {
	case header := <-headerCh:
		return append([][]string{header}, rows...), nil
	default:
		return nil, nil
	}
}

// Decode converts raw bytes to a string using the first encoding that
// accepts them, returning the label that succeeded.
func Decode(raw []byte, encodings []string) (string, string, error) {
	if len(encodings) == 0 {
		encodings = []string{"utf-8"}
	}
	for _, label := range encodings {
		name := strings.ToLower(strings.TrimSpace(label))
		if name == "utf-8" || name == "utf8" {
			if utf8.Valid(raw) {
				return strings.TrimPrefix(string(raw), "\ufeff"), "utf-8", nil
			}
			continue
		}
		enc, err := htmlindex.Get(name)
		if err != nil {
			zap.L().Warn("census: unknown encoding", zap.String("encoding", label))
			continue
		}
		out, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		return string(bytes.TrimPrefix(out, []byte("\ufeff"))), label, nil
	}
	return "", "", eris.Errorf("census: no encoding in %v could decode the table", encodings)
}

// columnFolder decomposes accents and drops everything outside ASCII. The
// chain is stateful, so each call gets its own.
func columnFolder() transform.Transformer {
	return transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
}

// NormalizeColumns upper-cases and trims column names and strips
// non-ASCII residue such as byte-order marks and accents. When no column is
// named ENTIDAD, the first column whose name contains it is renamed.
func NormalizeColumns(cols []string) []string {
	out := make([]string, len(cols))
	hasEntity := false
	fold := columnFolder()
	for i, c := range cols {
		folded, _, err := transform.String(fold, strings.ToUpper(strings.TrimSpace(c)))
		if err != nil {
			folded = c
		}
		out[i] = strings.TrimSpace(folded)
		if out[i] == ColEntity {
			hasEntity = true
		}
	}
	if !hasEntity {
		for i, c := range out {
			if strings.Contains(c, ColEntity) {
				out[i] = ColEntity
				break
			}
		}
	}
	return out
}
