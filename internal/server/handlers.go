package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sits/internal/model"
	"github.com/sells-group/sits/internal/output"
	"github.com/sells-group/sits/internal/report"
)

// selection loads the dataset and applies the kind, locality and ageb
// query filters. It writes the error response itself and returns false on
// failure.
func (s *Server) selection(w http.ResponseWriter, r *http.Request) ([]model.Zone, bool) {
	zones, err := s.dataset()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return nil, false
	}
	q := r.URL.Query()
	f := report.Filter{Locality: q.Get("locality"), AGEB: q.Get("ageb")}
	if k := q.Get("kind"); k != "" {
		kind, ok := model.ParseKind(k)
		if !ok {
			writeError(w, http.StatusBadRequest, eris.Errorf("unknown kind %q", k))
			return nil, false
		}
		f.Kind = kind
	}
	return f.Apply(zones), true
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	zones, err := s.dataset()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	type option struct {
		Key   string `json:"key"`
		Label string `json:"label"`
	}
	groups := make([]option, 0, len(report.Groups))
	for _, g := range report.Groups {
		groups = append(groups, option{g.Key, g.Label})
	}
	indicators := make([]option, 0, len(report.Indicators))
	for _, i := range report.Indicators {
		indicators = append(indicators, option{i.Key, i.Label})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"localities": report.Localities(zones),
		"agebs":      report.AGEBs(zones),
		"groups":     groups,
		"indicators": indicators,
	})
}

func (s *Server) handleLayer(w http.ResponseWriter, r *http.Request) {
	kind, ok := model.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusNotFound, eris.Errorf("unknown layer %q", chi.URLParam(r, "kind")))
		return
	}
	zones, ok := s.selection(w, r)
	if !ok {
		return
	}
	raw, err := output.MarshalGeoJSON(report.Filter{Kind: kind}.Apply(zones))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(raw)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	zones, ok := s.selection(w, r)
	if !ok {
		return
	}
	out := make([]map[string]any, 0, len(zones))
	for i := range zones {
		out = append(out, zones[i].Properties())
	}
	writeJSON(w, http.StatusOK, out)
}

// summary is the dashboard header: population KPIs and the incidence of
// the selected group in each deprivation dimension.
type summary struct {
	KPIs       report.KPIs        `json:"kpis"`
	Group      string             `json:"group"`
	Incidence  []incidenceSummary `json:"incidence"`
	Restricted int                `json:"restricted"`
}

type incidenceSummary struct {
	report.Incidence
	Severity report.Severity `json:"severity"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	zones, ok := s.selection(w, r)
	if !ok {
		return
	}
	group, err := report.GroupByKey(queryOr(r, "group", model.PropTotal))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out := summary{
		KPIs:       report.Population(zones),
		Group:      group.Key,
		Restricted: len(report.Restricted(zones)),
	}
	for _, inc := range report.ByDimension(zones, group) {
		out.Incidence = append(out.Incidence, incidenceSummary{inc, report.SeverityOf(inc.Percent / 100)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	zones, ok := s.selection(w, r)
	if !ok {
		return
	}
	group, err := report.GroupByKey(queryOr(r, "group", model.PropTotal))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ind, err := report.IndicatorByKey(queryOr(r, "indicator", model.PropComposite))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, ok := limitParam(w, r, report.RosterLimit)
	if !ok {
		return
	}
	writeTable(w, r, report.RosterTable(report.Roster(zones, group, ind, limit), group, ind))
}

func (s *Server) handleOperational(w http.ResponseWriter, r *http.Request) {
	axis, err := report.ParseAxis(chi.URLParam(r, "axis"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	zones, ok := s.selection(w, r)
	if !ok {
		return
	}
	writeTable(w, r, report.OperationalTable(report.Operational(zones, axis), axis))
}

func (s *Server) handleSendai(w http.ResponseWriter, r *http.Request) {
	phase, err := report.ParsePhase(chi.URLParam(r, "phase"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	zones, ok := s.selection(w, r)
	if !ok {
		return
	}
	limit, ok := limitParam(w, r, 0)
	if !ok {
		return
	}
	plan := report.Sendai(zones, phase, limit)
	if r.URL.Query().Get("format") == "csv" {
		writeTable(w, r, report.SendaiTable(plan))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"phase":    plan.Phase,
		"resource": plan.Phase.ResourceLabel(),
		"total":    plan.Total,
		"table":    tableJSON(report.SendaiTable(plan)),
	})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	zones, ok := s.selection(w, r)
	if !ok {
		return
	}
	top := false
	if v := r.URL.Query().Get("top_quartile"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, eris.Errorf("invalid top_quartile %q", v))
			return
		}
		top = b
	}
	writeTable(w, r, report.DecisionTable(report.Decisions(zones, top)))
}

func (s *Server) handleEconomy(w http.ResponseWriter, r *http.Request) {
	zones, ok := s.selection(w, r)
	if !ok {
		return
	}
	writeTable(w, r, report.EconomicTable(report.Economic(zones)))
}

func (s *Server) handleRestricted(w http.ResponseWriter, r *http.Request) {
	zones, ok := s.selection(w, r)
	if !ok {
		return
	}
	writeTable(w, r, report.RestrictedTable(report.Restricted(zones)))
}

type tableBody struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
}

func tableJSON(t report.Table) tableBody {
	rows := t.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return tableBody{Name: t.Name, Headers: t.Headers, Rows: rows}
}

// writeTable renders t as JSON, or as a CSV download with format=csv.
func writeTable(w http.ResponseWriter, r *http.Request, t report.Table) {
	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, http.StatusOK, tableJSON(t))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+t.Name+`.csv"`)
	_ = report.WriteCSV(w, t)
}

func queryOr(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

func limitParam(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, eris.Errorf("invalid limit %q", v))
		return 0, false
	}
	return n, true
}
