// Package indicator turns census counts into deprivation, resilience and
// Sendai indices.
package indicator

import (
	"math"

	"github.com/sells-group/sits/internal/census"
	"github.com/sells-group/sits/internal/model"
)

// Weights applied inside the formulas.
const (
	SingleRoomWeight = 1.2
	ChildrenWeight   = 0.5
)

// safe replaces a zero denominator with 1.
func safe(d float64) float64 {
	if d == 0 {
		return 1
	}
	return d
}

// Clip bounds v to [0,1]. NaN becomes 0.
func Clip(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Compute derives every index of one zone. Zero population, household,
// population 15+ and EAP denominators are treated as 1. Sub-indices,
// resilience and Sendai values are clipped to [0,1]; the composite is the
// plain mean of the clipped sub-indices.
func Compute(v census.Vars) model.Indicators {
	pop := safe(v.TotalPopulation)
	hh := safe(v.Households)
	adults := safe(v.Pop15Plus)
	eap := adults
	if v.HasEAP {
		eap = safe(v.EconomicallyActive)
	}

	var ind model.Indicators

	ind.Education = Clip((v.Illiterate15Plus + v.NoSchooling15) / adults)
	ind.Health = Clip(1 - v.Insured/pop)
	ind.Housing = Clip((v.DirtFloor + v.LightRoof + v.PalmRoof + v.LightWall +
		v.DeterioratedWall + SingleRoomWeight*v.SingleRoom) / hh)
	ind.Services = Clip(((v.NoPipedWater + v.NoDrainage + v.NoElectricity + v.WoodFuel) / 4) / hh)
	ind.Income = Clip(1 - (v.Fridge+v.Washer+v.Car+v.Computer)/(4*hh))

	d := ind.Deprivation()
	ind.Composite = (d[0] + d[1] + d[2] + d[3] + d[4]) / float64(len(d))

	ind.HydricResilience = Clip(((v.NoPipedWater + v.Cistern + v.RooftopTank) / 2) / hh)
	ind.EnvironmentalPressure = Clip((v.WoodFuel + v.Charcoal + v.NoDrainage) / hh)
	unemployment := v.Unemployed / eap
	ind.SocialRisk = Clip((unemployment + ind.Housing + ind.Education) / 3)

	ind.SendaiP1 = Clip((v.Disability + v.IndigenousLang + v.Elderly60Plus + ChildrenWeight*v.Children0to14) / pop)
	ind.SendaiP3 = Clip((v.DeterioratedWall + v.PalmRoof + v.WasteRoof + v.NoDrainage) / hh)
	ind.SendaiP4 = Clip(1 - ((v.Cellphone+v.Internet+v.Car+v.Cistern+v.RooftopTank)/5)/hh)

	return ind
}

// Project scales the 2020 counts of each demographic group by factor.
// Base2020 keeps the raw 2020 total. An empty zone projects to zero: the
// denominator guard of Compute does not apply here.
func Project(v census.Vars, factor float64) model.Population {
	return model.Population{
		Base2020:    v.TotalPopulation,
		Total:       v.TotalPopulation * factor,
		Female:      v.FemalePopulation * factor,
		Male:        v.MalePopulation * factor,
		Indigenous:  v.IndigenousLang * factor,
		Afro:        v.Afro * factor,
		Disability:  v.Disability * factor,
		FemaleHeads: v.FemaleHeaded * factor,
		Children:    v.Children0to14 * factor,
		Elderly:     v.Elderly60Plus * factor,
	}
}
