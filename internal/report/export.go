package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/sits/internal/model"
)

// Table is a named, rectangular export.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]any // string, float64 or int cells
}

func zoneCells(z model.Zone) []any {
	return []any{z.Locality, string(z.Kind), z.AGEB, z.Population.Total}
}

var zoneHeaders = []string{model.PropLocality, model.PropKind, model.PropAGEB, model.PropTotal}

func headers(extra ...string) []string {
	return append(append([]string(nil), zoneHeaders...), extra...)
}

// RosterTable exports a focalised roster with the five dimensions.
func RosterTable(entries []RosterEntry, group Group, ind Indicator) Table {
	h := headers(group.Key, "PERSONAS_PRIORITARIAS", "FAMILIAS_ESTIMADAS", model.PropComposite)
	for _, d := range Dimensions {
		h = append(h, d.Key)
	}
	t := Table{Name: "padron_" + ind.Key, Headers: dedupe(h)}
	for _, e := range entries {
		row := append(zoneCells(e.Zone), e.Group, e.Persons, e.Families, e.Zone.Indicators.Composite)
		for _, d := range Dimensions {
			row = append(row, d.Value(e.Zone))
		}
		t.Rows = append(t.Rows, dedupeRow(h, row))
	}
	return t
}

// OperationalTable exports an axis report.
func OperationalTable(entries []OperationalEntry, a Axis) Table {
	t := Table{Name: a.FileName(), Headers: headers(a.Indicator().Key, "ESTATUS_OPERATIVO")}
	for _, e := range entries {
		t.Rows = append(t.Rows, append(zoneCells(e.Zone), e.Value, e.Status))
	}
	return t
}

// SendaiTable exports a Sendai plan.
func SendaiTable(plan SendaiPlan) Table {
	t := Table{Name: plan.Phase.FileName(), Headers: headers(plan.Phase.Indicator().Key, "RECURSO_NECESARIO")}
	for _, e := range plan.Entries {
		t.Rows = append(t.Rows, append(zoneCells(e.Zone), e.Value, e.Resource))
	}
	return t
}

// DecisionTable exports the investment decision table.
func DecisionTable(ds []Decision) Table {
	t := Table{Name: "decision_inversion", Headers: headers("IND_PRIORIDAD_TOTAL", "VOCACION_DOMINANTE", "ACCION_OBRA_PUBLICA")}
	for _, d := range ds {
		t.Rows = append(t.Rows, append(zoneCells(d.Zone), d.Priority, string(d.Vocation), d.Action))
	}
	return t
}

// EconomicTable exports the economic roster.
func EconomicTable(es []EconomicEntry) Table {
	t := Table{
		Name:    "padron_economico",
		Headers: []string{model.PropLocality, model.PropKind, model.PropAGEB, model.PropEcoTotal, model.PropTourismDep, model.PropEAP, "ESTIMACION_INFORMALIDAD"},
	}
	for _, e := range es {
		z := e.Zone
		t.Rows = append(t.Rows, []any{z.Locality, string(z.Kind), z.AGEB, e.Units, z.TourismDependency, z.EconomicallyActive, e.Informality})
	}
	return t
}

// RestrictedTable exports the zones with a blocking verdict.
func RestrictedTable(zones []model.Zone) Table {
	t := Table{
		Name:    "zonas_restringidas",
		Headers: []string{model.PropLocality, model.PropKind, model.PropSlope, model.PropVerdict},
	}
	for _, z := range zones {
		t.Rows = append(t.Rows, []any{z.Locality, string(z.Kind), z.Slope, string(z.Verdict)})
	}
	return t
}

// dedupe drops repeated headers, keeping the first; the roster repeats
// P25_TOT when the selected group is the total population.
func dedupe(h []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(h))
	for _, s := range h {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func dedupeRow(h []string, row []any) []any {
	seen := map[string]bool{}
	out := make([]any, 0, len(row))
	for i, v := range row {
		if !seen[h[i]] {
			seen[h[i]] = true
			out = append(out, v)
		}
	}
	return out
}

func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return ""
	}
}

// WriteCSV writes t as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	rec := make([]string, len(t.Headers))
	for _, row := range t.Rows {
		for i := range rec {
			rec[i] = ""
			if i < len(row) {
				rec[i] = cellString(row[i])
			}
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// maxSheetName is the XLSX limit on sheet name length.
const maxSheetName = 31

// WriteXLSX writes each table to its own sheet of a workbook at path.
func WriteXLSX(path string, tables ...Table) error {
	if len(tables) == 0 {
		return eris.New("report: no tables to write")
	}
	f := xlsx.NewFile()
	for _, t := range tables {
		name := t.Name
		if len(name) > maxSheetName {
			name = name[:maxSheetName]
		}
		sheet, err := f.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %s", name)
		}
		hr := sheet.AddRow()
		for _, h := range t.Headers {
			hr.AddCell().SetString(h)
		}
		for _, row := range t.Rows {
			r := sheet.AddRow()
			for _, v := range row {
				c := r.AddCell()
				switch x := v.(type) {
				case float64:
					c.SetFloat(x)
				case int:
					c.SetInt(x)
				default:
					c.SetString(cellString(v))
				}
			}
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}
