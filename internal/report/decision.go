package report

import (
	"math"
	"sort"

	"github.com/sells-group/sits/internal/model"
)

// Vocation is the dominant economic profile of a zone.
type Vocation string

// Vocations.
const (
	VocationTourism     Vocation = "TURISMO"
	VocationCommerce    Vocation = "COMERCIO"
	VocationIndustry    Vocation = "INDUSTRIA"
	VocationServices    Vocation = "SERVICIOS"
	VocationResidential Vocation = "Zona Habitacional Rezago"
	VocationNone        Vocation = "Sin Actividad"
)

// ResidentialAbove is the population above which a zone with no economic
// activity is a residential lag zone.
const ResidentialAbove = 50

// Priority is (SITS index + social risk + Sendai P1) / 3.
func Priority(z model.Zone) float64 {
	return (z.Indicators.Composite + z.Indicators.SocialRisk + z.Indicators.SendaiP1) / 3
}

// VocationOf returns the dominant vocation. Ties go to the first sector in
// the order tourism, commerce, industry, services. Units classified as
// other count toward activity but never dominate.
func VocationOf(z model.Zone) Vocation {
	e := z.Economy
	if e.Total() == 0 {
		if z.Population.Total > ResidentialAbove {
			return VocationResidential
		}
		return VocationNone
	}
	best, n := VocationTourism, e.Tourism
	for _, c := range []struct {
		v Vocation
		n int
	}{
		{VocationCommerce, e.Commerce},
		{VocationIndustry, e.Industry},
		{VocationServices, e.Services},
	} {
		if c.n > n {
			best, n = c.v, c.n
		}
	}
	return best
}

// Action suggests the public works intervention for a priority and
// vocation.
func Action(priority float64, v Vocation) string {
	switch {
	case priority > 0.40:
		switch v {
		case VocationTourism:
			return "Rescate Urbano (Imagen + Drenaje)"
		case VocationResidential:
			return "Infraestructura Básica (Ramo 033)"
		case VocationCommerce:
			return "Seguridad e Iluminación"
		default:
			return "Intervención Social Integral"
		}
	case priority > 0.25:
		return "Mantenimiento Preventivo"
	default:
		return "Monitoreo"
	}
}

// Decision is one row of the investment decision table.
type Decision struct {
	Zone     model.Zone
	Priority float64
	Vocation Vocation
	Action   string
}

// Decisions scores every zone, highest priority first. With topQuartile
// only zones at or above the 75th percentile of priority are kept.
func Decisions(zones []model.Zone, topQuartile bool) []Decision {
	out := make([]Decision, 0, len(zones))
	prios := make([]float64, 0, len(zones))
	for _, z := range zones {
		p := Priority(z)
		v := VocationOf(z)
		out = append(out, Decision{Zone: z, Priority: p, Vocation: v, Action: Action(p, v)})
		prios = append(prios, p)
	}
	if topQuartile && len(out) > 0 {
		cut := Quantile(prios, 0.75)
		kept := out[:0]
		for _, d := range out {
			if d.Priority >= cut {
				kept = append(kept, d)
			}
		}
		out = kept
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Quantile returns the q-quantile of xs with linear interpolation between
// closest ranks. NaN when xs is empty.
func Quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	pos := q * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	return s[lo] + (s[hi]-s[lo])*(pos-float64(lo))
}

// JobsPerUnit is the formal employment assumed per registered unit.
const JobsPerUnit = 3

// EconomicEntry is one row of the economic roster.
type EconomicEntry struct {
	Zone        model.Zone
	Units       int
	Informality float64 // PEA - units × JobsPerUnit, floored at 0
}

// Economic ranks zones by estimated informal employment, highest first.
func Economic(zones []model.Zone) []EconomicEntry {
	out := make([]EconomicEntry, 0, len(zones))
	for _, z := range zones {
		units := z.Economy.Total()
		inf := math.Max(0, z.EconomicallyActive-float64(units*JobsPerUnit))
		out = append(out, EconomicEntry{Zone: z, Units: units, Informality: inf})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Informality > out[j].Informality })
	return out
}

// Restricted returns the zones whose verdict is not feasible, steepest
// first.
func Restricted(zones []model.Zone) []model.Zone {
	var out []model.Zone
	for _, z := range zones {
		if z.Verdict != "" && z.Verdict != model.VerdictFeasible {
			out = append(out, z)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slope > out[j].Slope })
	return out
}
