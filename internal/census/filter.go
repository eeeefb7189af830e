package census

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/model"
)

// INEGI key and name columns.
const (
	ColEntity       = "ENTIDAD"
	ColMunicipality = "MUN"
	ColLocality     = "LOC"
	ColAGEB         = "AGEB"
	ColBlock        = "MZA"
	ColMunName      = "NOM_MUN"
	ColLocName      = "NOM_LOC"
	ColGeoName      = "NOMGEO"
)

// Aggregate locality keys that never denote a rural locality.
var aggregateLocalities = map[string]bool{
	"0000": true, // municipal total
	"9998": true, // one-dwelling localities
	"9999": true, // two-dwelling localities
}

// Filter selects the rows of one municipality. An empty State matches
// every entity.
type Filter struct {
	State        string // two-digit entity key
	Municipality string // three-digit municipality key
	HeadTown     string // four-digit locality key of the head town
}

// Row is one census record that passed the filter.
type Row struct {
	Geocode          string
	Entity           string
	Municipality     string
	Locality         string
	AGEB             string
	Block            string
	MunicipalityName string
	LocalityName     string
	Vars             Vars
}

// Table is a filtered census table keyed by geocode.
type Table struct {
	Kind       model.Kind
	Path       string
	Encoding   string
	Rows       []Row
	Read       int // records before filtering
	Duplicates int // rows dropped because their geocode was already seen
	byCode     map[string]int
}

// Lookup returns the row for a geocode.
func (t *Table) Lookup(geocode string) (Row, bool) {
	i, ok := t.byCode[geocode]
	if !ok {
		return Row{}, false
	}
	return t.Rows[i], true
}

// Read loads the census table at path and filters it for kind.
func Read(ctx context.Context, path string, kind model.Kind, f Filter, encodings []string, delimiter rune) (*Table, error) {
	raw, err := ReadRaw(ctx, path, encodings, delimiter)
	if err != nil {
		return nil, err
	}
	return Apply(raw, kind, f)
}

// Apply filters raw records for kind and builds geocodes. Rows outside the
// filter's entity and municipality are skipped. Urban rows keep
// blocks of the municipality (MZA != "000") keyed by
// ENTIDAD+MUN+LOC+AGEB+MZA. Rural rows keep localities of the municipality
// other than the aggregates and the head town, keyed by ENTIDAD+MUN+LOC.
// When a geocode repeats, the first row wins.
func Apply(raw *Raw, kind model.Kind, f Filter) (*Table, error) {
	log := zap.L().With(zap.String("component", "census.filter"), zap.String("kind", string(kind)))

	idx := raw.Index()
	need := []string{ColEntity, ColMunicipality, ColLocality}
	if kind == model.KindUrban {
		need = append(need, ColAGEB, ColBlock)
	}
	for _, c := range need {
		if _, ok := idx[c]; !ok {
			return nil, eris.Errorf("census: %s table %s has no %s column", kind.Slug(), raw.Path, c)
		}
	}

	locName := ColLocName
	if _, ok := idx[ColLocName]; !ok {
		locName = ColGeoName
	}

	cell := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	m := newMapper(idx)
	t := &Table{
		Kind:     kind,
		Path:     raw.Path,
		Encoding: raw.Encoding,
		Read:     len(raw.Records),
		byCode:   make(map[string]int),
	}
	for _, rec := range raw.Records {
		row := Row{
			Entity:           padKey(cell(rec, ColEntity), 2),
			Municipality:     padKey(cell(rec, ColMunicipality), 3),
			Locality:         padKey(cell(rec, ColLocality), 4),
			MunicipalityName: cell(rec, ColMunName),
			LocalityName:     cell(rec, locName),
		}
		if row.Municipality != f.Municipality || (f.State != "" && row.Entity != f.State) {
			continue
		}

		switch kind {
		case model.KindUrban:
			row.AGEB = padKey(cell(rec, ColAGEB), 4)
			row.Block = padKey(cell(rec, ColBlock), 3)
			if row.Block == "000" {
				continue
			}
			row.Geocode = row.Entity + row.Municipality + row.Locality + row.AGEB + row.Block
		case model.KindRural:
			if aggregateLocalities[row.Locality] || row.Locality == f.HeadTown {
				continue
			}
			row.Geocode = row.Entity + row.Municipality + row.Locality
		default:
			return nil, eris.Errorf("census: unknown zone kind %q", kind)
		}

		if _, dup := t.byCode[row.Geocode]; dup {
			t.Duplicates++
			continue
		}
		row.Vars = m.vars(rec)
		t.byCode[row.Geocode] = len(t.Rows)
		t.Rows = append(t.Rows, row)
	}

	if t.Duplicates > 0 {
		log.Warn("census: duplicate geocodes dropped, first row kept", zap.Int("duplicates", t.Duplicates))
	}
	if !m.hasEAP {
		log.Warn("census: table has no PEA column, unemployment uses population 15+")
	}
	log.Info("census: table filtered",
		zap.String("path", raw.Path),
		zap.Int("read", t.Read),
		zap.Int("kept", len(t.Rows)),
	)
	return t, nil
}

// padKey left-pads purely numeric keys that lost their leading zeros, as
// spreadsheet exports do. Alphanumeric keys (AGEB "023A") pass unchanged.
func padKey(s string, width int) string {
	if s == "" || len(s) >= width {
		return s
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return s
		}
	}
	return strings.Repeat("0", width-len(s)) + s
}
