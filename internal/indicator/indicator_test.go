package indicator

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/sits/internal/census"
	"github.com/sells-group/sits/internal/model"
)

func inUnit(t *testing.T, name string, v float64) {
	t.Helper()
	assert.GreaterOrEqual(t, v, 0.0, name)
	assert.LessOrEqual(t, v, 1.0, name)
}

func allIndices(ind model.Indicators) map[string]float64 {
	return map[string]float64{
		"education":     ind.Education,
		"health":        ind.Health,
		"housing":       ind.Housing,
		"services":      ind.Services,
		"income":        ind.Income,
		"composite":     ind.Composite,
		"hydric":        ind.HydricResilience,
		"environmental": ind.EnvironmentalPressure,
		"social":        ind.SocialRisk,
		"sendai_p1":     ind.SendaiP1,
		"sendai_p3":     ind.SendaiP3,
		"sendai_p4":     ind.SendaiP4,
	}
}

func TestCompute_Reference(t *testing.T) {
	v := census.Vars{
		TotalPopulation:    100,
		Pop15Plus:          60,
		Illiterate15Plus:   6,
		NoSchooling15:      3,
		Insured:            75,
		Households:         25,
		DirtFloor:          2,
		LightRoof:          1,
		SingleRoom:         5,
		NoPipedWater:       4,
		NoDrainage:         2,
		NoElectricity:      1,
		WoodFuel:           5,
		Fridge:             20,
		Washer:             15,
		Car:                5,
		Computer:           10,
		Cistern:            3,
		RooftopTank:        7,
		Charcoal:           1,
		EconomicallyActive: 40,
		Unemployed:         4,
		HasEAP:             true,
		Disability:         5,
		IndigenousLang:     10,
		Elderly60Plus:      8,
		Children0to14:      30,
		PalmRoof:           0,
		WasteRoof:          1,
		DeterioratedWall:   1,
		Cellphone:          20,
		Internet:           10,
	}

	ind := Compute(v)

	assert.InDelta(t, 9.0/60, ind.Education, 1e-12)
	assert.InDelta(t, 0.25, ind.Health, 1e-12)
	assert.InDelta(t, (2+1+0+0+1+1.2*5)/25.0, ind.Housing, 1e-12)
	assert.InDelta(t, (12.0/4)/25, ind.Services, 1e-12)
	assert.InDelta(t, 1-50.0/100, ind.Income, 1e-12)
	assert.InDelta(t, (14.0/2)/25, ind.HydricResilience, 1e-12)
	assert.InDelta(t, 8.0/25, ind.EnvironmentalPressure, 1e-12)
	assert.InDelta(t, (0.1+ind.Housing+ind.Education)/3, ind.SocialRisk, 1e-12)
	assert.InDelta(t, (5+10+8+15)/100.0, ind.SendaiP1, 1e-12)
	assert.InDelta(t, 4.0/25, ind.SendaiP3, 1e-12)
	assert.InDelta(t, 1-(45.0/5)/25, ind.SendaiP4, 1e-12)
}

func TestCompute_HealthExtremes(t *testing.T) {
	tests := []struct {
		name    string
		insured float64
		want    float64
	}{
		{"fully insured", 100, 0},
		{"none insured", 0, 1},
		{"over-reported", 140, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := Compute(census.Vars{TotalPopulation: 100, Insured: tt.insured})
			assert.Equal(t, tt.want, ind.Health)
		})
	}
}

func TestCompute_ZeroDenominators(t *testing.T) {
	ind := Compute(census.Vars{})
	for name, v := range allIndices(ind) {
		assert.False(t, math.IsNaN(v), name)
		inUnit(t, name, v)
	}
	assert.Equal(t, 1.0, ind.Health)
	assert.Equal(t, 1.0, ind.Income)
	assert.Equal(t, 1.0, ind.SendaiP4)
}

func TestCompute_UnemploymentFallsBackToAdults(t *testing.T) {
	withEAP := Compute(census.Vars{Pop15Plus: 100, EconomicallyActive: 10, Unemployed: 3, HasEAP: true})
	withoutEAP := Compute(census.Vars{Pop15Plus: 100, Unemployed: 3})
	assert.InDelta(t, 0.3/3, withEAP.SocialRisk, 1e-12)
	assert.InDelta(t, 0.03/3, withoutEAP.SocialRisk, 1e-12)
}

func TestCompute_AdversarialBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	pick := func() float64 {
		switch rng.IntN(6) {
		case 0:
			return 0
		case 1:
			return -rng.Float64() * 1e6
		case 2:
			return rng.Float64() * 1e12
		case 3:
			return math.MaxFloat64
		case 4:
			return -math.MaxFloat64
		default:
			return rng.Float64() * 50
		}
	}

	for i := 0; i < 2000; i++ {
		v := census.Vars{
			TotalPopulation: pick(), Pop15Plus: pick(), Illiterate15Plus: pick(), NoSchooling15: pick(),
			Insured: pick(), Households: pick(), DirtFloor: pick(), LightRoof: pick(), PalmRoof: pick(),
			LightWall: pick(), DeterioratedWall: pick(), SingleRoom: pick(), NoPipedWater: pick(),
			NoDrainage: pick(), NoElectricity: pick(), WoodFuel: pick(), Fridge: pick(), Washer: pick(),
			Car: pick(), Computer: pick(), Cistern: pick(), RooftopTank: pick(), Charcoal: pick(),
			EconomicallyActive: pick(), Unemployed: pick(), HasEAP: rng.IntN(2) == 0, Disability: pick(),
			IndigenousLang: pick(), Elderly60Plus: pick(), Children0to14: pick(), WasteRoof: pick(),
			Cellphone: pick(), Internet: pick(),
		}
		ind := Compute(v)
		for name, x := range allIndices(ind) {
			if math.IsNaN(x) || x < 0 || x > 1 {
				t.Fatalf("iteration %d: %s = %v out of [0,1] for %+v", i, name, x, v)
			}
		}
		d := ind.Deprivation()
		mean := (d[0] + d[1] + d[2] + d[3] + d[4]) / 5
		assert.InDelta(t, mean, ind.Composite, 1e-12)
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, 0.0, Clip(math.NaN()))
	assert.Equal(t, 0.0, Clip(-0.5))
	assert.Equal(t, 1.0, Clip(math.Inf(1)))
	assert.Equal(t, 0.0, Clip(math.Inf(-1)))
	assert.Equal(t, 0.3, Clip(0.3))
}

func TestProject(t *testing.T) {
	v := census.Vars{TotalPopulation: 1000, FemalePopulation: 520, MalePopulation: 480, Children0to14: 300, Elderly60Plus: 90}
	p := Project(v, 1.048)
	assert.Equal(t, 1000.0, p.Base2020)
	assert.InDelta(t, 1048, p.Total, 1e-9)
	assert.InDelta(t, 544.96, p.Female, 1e-9)
	assert.InDelta(t, 503.04, p.Male, 1e-9)
	assert.InDelta(t, 314.4, p.Children, 1e-9)
	assert.InDelta(t, 94.32, p.Elderly, 1e-9)
	assert.Zero(t, p.Afro)
}

func TestProject_ZeroPopulationStaysZero(t *testing.T) {
	v := census.Vars{}
	ind := Compute(v)
	assert.Zero(t, ind.Education, "denominator guard applies to indicators only")

	p := Project(v, 1.048)
	assert.Zero(t, p.Base2020)
	assert.Zero(t, p.Total)
}
