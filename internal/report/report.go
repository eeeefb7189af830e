// Package report derives the dashboard tables from scored zones: filters,
// population KPIs, group-weighted incidence and the operational rosters.
package report

import (
	"sort"

	"github.com/sells-group/sits/internal/model"
)

// HouseholdSize is the average number of persons per household used to
// turn persons into families or dwellings.
const HouseholdSize = 3.6

// RosterLimit is the number of rows kept in ranked rosters.
const RosterLimit = 100

// Filter selects zones by kind, locality and AGEB. Empty fields match
// everything. AGEB applies to urban zones only; rural zones pass it.
type Filter struct {
	Kind     model.Kind
	Locality string
	AGEB     string
}

// Apply returns the zones that match f, in input order.
func (f Filter) Apply(zones []model.Zone) []model.Zone {
	out := make([]model.Zone, 0, len(zones))
	for _, z := range zones {
		if f.Kind != "" && z.Kind != f.Kind {
			continue
		}
		if f.Locality != "" && z.Locality != f.Locality {
			continue
		}
		if f.AGEB != "" && z.Kind == model.KindUrban && z.AGEB != f.AGEB {
			continue
		}
		out = append(out, z)
	}
	return out
}

// Localities lists the distinct locality names, sorted.
func Localities(zones []model.Zone) []string {
	return distinct(zones, func(z model.Zone) (string, bool) { return z.Locality, true })
}

// AGEBs lists the distinct AGEB keys of urban zones, sorted.
func AGEBs(zones []model.Zone) []string {
	return distinct(zones, func(z model.Zone) (string, bool) { return z.AGEB, z.Kind == model.KindUrban })
}

func distinct(zones []model.Zone, key func(model.Zone) (string, bool)) []string {
	seen := map[string]bool{}
	var out []string
	for _, z := range zones {
		k, ok := key(z)
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KPIs are the projected population totals of a selection.
type KPIs struct {
	Zones int     `json:"zones"`
	Total float64 `json:"total"`
	Urban float64 `json:"urban"`
	Rural float64 `json:"rural"`
}

// Population sums the projected population by kind.
func Population(zones []model.Zone) KPIs {
	k := KPIs{Zones: len(zones)}
	for _, z := range zones {
		k.Total += z.Population.Total
		switch z.Kind {
		case model.KindUrban:
			k.Urban += z.Population.Total
		case model.KindRural:
			k.Rural += z.Population.Total
		}
	}
	return k
}

// Severity is the traffic-light band of a deprivation value.
type Severity string

// Severity bands.
const (
	SeverityCritical Severity = "CRÍTICO"
	SeverityHigh     Severity = "ALTO"
	SeverityMedium   Severity = "MEDIO"
	SeverityLow      Severity = "BAJO"
)

// SeverityOf bands v: >= 0.40 critical, >= 0.25 high, >= 0.15 medium.
func SeverityOf(v float64) Severity {
	switch {
	case v >= 0.40:
		return SeverityCritical
	case v >= 0.25:
		return SeverityHigh
	case v >= 0.15:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Incidence is the group population affected by one indicator.
type Incidence struct {
	Group     string  `json:"group"`
	Indicator string  `json:"indicator"`
	Total     float64 `json:"total"`
	Affected  float64 `json:"affected"`
	Percent   float64 `json:"percent"`
}

// IncidenceOf weights each zone's group population by its indicator value.
// Percent is 0 when the group total is 0.
func IncidenceOf(zones []model.Zone, group Group, ind Indicator) Incidence {
	inc := Incidence{Group: group.Key, Indicator: ind.Key}
	for _, z := range zones {
		g := group.Value(z)
		inc.Total += g
		inc.Affected += g * ind.Value(z)
	}
	if inc.Total > 0 {
		inc.Percent = inc.Affected / inc.Total * 100
	}
	return inc
}

// ByDimension returns the incidence of group in each deprivation
// dimension, in Dimensions order.
func ByDimension(zones []model.Zone, group Group) []Incidence {
	out := make([]Incidence, 0, len(Dimensions))
	for _, d := range Dimensions {
		out = append(out, IncidenceOf(zones, group, d))
	}
	return out
}

// RosterEntry is one zone of the focalised roster.
type RosterEntry struct {
	Zone     model.Zone
	Group    float64 // group population
	Persons  float64 // group population × indicator
	Families float64 // Persons / HouseholdSize
}

// Roster ranks zones by persons affected, highest first, keeping at most
// limit rows (all when limit <= 0).
func Roster(zones []model.Zone, group Group, ind Indicator, limit int) []RosterEntry {
	out := make([]RosterEntry, 0, len(zones))
	for _, z := range zones {
		g := group.Value(z)
		persons := g * ind.Value(z)
		out = append(out, RosterEntry{Zone: z, Group: g, Persons: persons, Families: persons / HouseholdSize})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Persons > out[j].Persons })
	return head(out, limit)
}

func head[T any](xs []T, limit int) []T {
	if limit > 0 && len(xs) > limit {
		return xs[:limit]
	}
	return xs
}
