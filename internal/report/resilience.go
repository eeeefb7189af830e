package report

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sits/internal/model"
)

// Axis is a resilience axis of the operational report.
type Axis string

// Resilience axes.
const (
	AxisHydric        Axis = "hidrica"
	AxisEnvironmental Axis = "ambiental"
	AxisSocial        Axis = "social"
)

// ParseAxis validates an axis name.
func ParseAxis(s string) (Axis, error) {
	switch a := Axis(s); a {
	case AxisHydric, AxisEnvironmental, AxisSocial:
		return a, nil
	}
	return "", eris.Errorf("report: unknown axis %q", s)
}

// Indicator returns the index the axis reads.
func (a Axis) Indicator() Indicator {
	switch a {
	case AxisHydric:
		return hydric
	case AxisEnvironmental:
		return pressure
	default:
		return social
	}
}

// Status labels the operational status of v on the axis. Hydric
// resilience is good when high; the other two axes are risks.
func (a Axis) Status(v float64) string {
	switch a {
	case AxisHydric:
		switch {
		case v < 0.4:
			return "URGENTE (24 HRS - Sin Tinaco)"
		case v < 0.7:
			return "PROGRAMADA (48 HRS)"
		default:
			return "RESILIENTE (Tiene Cisterna)"
		}
	case AxisEnvironmental:
		switch {
		case v > 0.4:
			return "FOCO INFECCIÓN (Drenaje/Humo)"
		case v > 0.2:
			return "RIESGO LATENTE"
		default:
			return "SANEADO"
		}
	default:
		switch {
		case v > 0.3:
			return "PROGRAMA EMPLEO TEMPORAL"
		case v > 0.15:
			return "CAPACITACIÓN/MICROCRÉDITO"
		default:
			return "ESTABLE"
		}
	}
}

// FileName is the export file name of the axis report.
func (a Axis) FileName() string {
	switch a {
	case AxisHydric:
		return "logistica_pipas_agua"
	case AxisEnvironmental:
		return "focos_infeccion_ambiental"
	default:
		return "apoyos_empleo_social"
	}
}

// OperationalEntry is one row of an axis report.
type OperationalEntry struct {
	Zone   model.Zone
	Value  float64
	Status string
}

// Operational labels every zone on the axis. Hydric rows sort by value
// ascending (least resilient first); the other axes descending.
func Operational(zones []model.Zone, a Axis) []OperationalEntry {
	ind := a.Indicator()
	out := make([]OperationalEntry, 0, len(zones))
	for _, z := range zones {
		v := ind.Value(z)
		out = append(out, OperationalEntry{Zone: z, Value: v, Status: a.Status(v)})
	}
	asc := a == AxisHydric
	sort.SliceStable(out, func(i, j int) bool {
		if asc {
			return out[i].Value < out[j].Value
		}
		return out[i].Value > out[j].Value
	})
	return out
}

// Phase is a Sendai framework priority.
type Phase string

// Sendai phases.
const (
	PhasePreparedness Phase = "p1"
	PhasePrevention   Phase = "p3"
	PhaseResponse     Phase = "p4"
)

// ParsePhase validates a phase name.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(s); p {
	case PhasePreparedness, PhasePrevention, PhaseResponse:
		return p, nil
	}
	return "", eris.Errorf("report: unknown Sendai phase %q", s)
}

// SilentAbove is the P4 value above which a zone counts as a blind spot.
const SilentAbove = 0.7

// RescueVehicleSeats is the capacity assumed for evacuation vehicles.
const RescueVehicleSeats = 10

// Indicator returns the Sendai index of the phase.
func (p Phase) Indicator() Indicator {
	switch p {
	case PhasePreparedness:
		return sendaiP1
	case PhasePrevention:
		return sendaiP3
	default:
		return sendaiP4
	}
}

// Resource estimates what the phase needs in zone z: rescue vehicles for
// P1, dwellings to reinforce for P3, one radio site per blind spot for P4.
func (p Phase) Resource(z model.Zone) float64 {
	v := p.Indicator().Value(z)
	switch p {
	case PhasePreparedness:
		return z.Population.Total * v / RescueVehicleSeats
	case PhasePrevention:
		return z.Population.Total / HouseholdSize * v
	default:
		if v > SilentAbove {
			return 1
		}
		return 0
	}
}

// ResourceLabel names the resource unit of the phase.
func (p Phase) ResourceLabel() string {
	switch p {
	case PhasePreparedness:
		return "Camionetas de Rescate (10 pax)"
	case PhasePrevention:
		return "Viviendas a Reforzar (Techo/Muro)"
	default:
		return "Puntos Ciegos (Requieren Radio/Antena)"
	}
}

// FileName is the export file name of the phase plan.
func (p Phase) FileName() string {
	switch p {
	case PhasePreparedness:
		return "sendai_plan_evacuacion"
	case PhasePrevention:
		return "sendai_plan_vivienda"
	default:
		return "sendai_plan_comunicaciones"
	}
}

// SendaiEntry is one row of a Sendai plan.
type SendaiEntry struct {
	Zone     model.Zone
	Value    float64
	Resource float64
}

// SendaiPlan is the ranked plan of a phase with its resource total over
// every zone, not only the rows kept.
type SendaiPlan struct {
	Phase   Phase
	Total   float64
	Entries []SendaiEntry
}

// Sendai ranks zones by the phase index, highest first, keeping at most
// limit rows.
func Sendai(zones []model.Zone, p Phase, limit int) SendaiPlan {
	ind := p.Indicator()
	plan := SendaiPlan{Phase: p, Entries: make([]SendaiEntry, 0, len(zones))}
	for _, z := range zones {
		r := p.Resource(z)
		plan.Total += r
		plan.Entries = append(plan.Entries, SendaiEntry{Zone: z, Value: ind.Value(z), Resource: r})
	}
	sort.SliceStable(plan.Entries, func(i, j int) bool { return plan.Entries[i].Value > plan.Entries[j].Value })
	plan.Entries = head(plan.Entries, limit)
	return plan
}
