package report

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/sits/internal/model"
)

// Group is a population group selectable in the dashboard.
type Group struct {
	Key   string
	Label string
	Value func(model.Zone) float64
}

// Groups lists the projected population groups.
var Groups = []Group{
	{model.PropTotal, "Población Total", func(z model.Zone) float64 { return z.Population.Total }},
	{model.PropFemale, "Mujeres", func(z model.Zone) float64 { return z.Population.Female }},
	{model.PropMale, "Hombres", func(z model.Zone) float64 { return z.Population.Male }},
	{model.PropFemaleHeads, "Jefas de Familia", func(z model.Zone) float64 { return z.Population.FemaleHeads }},
	{model.PropIndigenous, "Indígena", func(z model.Zone) float64 { return z.Population.Indigenous }},
	{model.PropAfro, "Afromexicana", func(z model.Zone) float64 { return z.Population.Afro }},
	{model.PropDisability, "Discapacidad", func(z model.Zone) float64 { return z.Population.Disability }},
	{model.PropChildren, "Niños (0-14)", func(z model.Zone) float64 { return z.Population.Children }},
	{model.PropElderly, "Adultos Mayores", func(z model.Zone) float64 { return z.Population.Elderly }},
}

// Indicator is a zone index selectable in the dashboard.
type Indicator struct {
	Key   string
	Label string
	Value func(model.Zone) float64
}

var (
	composite  = Indicator{model.PropComposite, "Índice Pobreza Multidimensional", func(z model.Zone) float64 { return z.Indicators.Composite }}
	income     = Indicator{model.PropIncome, "Línea de Pobreza (Ingresos)", func(z model.Zone) float64 { return z.Indicators.Income }}
	services   = Indicator{model.PropServices, "Servicios Básicos y Energía", func(z model.Zone) float64 { return z.Indicators.Services }}
	housing    = Indicator{model.PropHousing, "Calidad y Espacios Vivienda", func(z model.Zone) float64 { return z.Indicators.Housing }}
	health     = Indicator{model.PropHealth, "Acceso a Salud", func(z model.Zone) float64 { return z.Indicators.Health }}
	education  = Indicator{model.PropEducation, "Rezago Educativo", func(z model.Zone) float64 { return z.Indicators.Education }}
	hydric     = Indicator{model.PropHydric, "Resiliencia Hídrica", func(z model.Zone) float64 { return z.Indicators.HydricResilience }}
	pressure   = Indicator{model.PropEnvironmental, "Presión Ambiental", func(z model.Zone) float64 { return z.Indicators.EnvironmentalPressure }}
	social     = Indicator{model.PropSocialRisk, "Riesgo Social", func(z model.Zone) float64 { return z.Indicators.SocialRisk }}
	sendaiP1   = Indicator{model.PropSendaiP1, "Vulnerabilidad (Evacuación)", func(z model.Zone) float64 { return z.Indicators.SendaiP1 }}
	sendaiP3   = Indicator{model.PropSendaiP3, "Fragilidad Física (Vivienda)", func(z model.Zone) float64 { return z.Indicators.SendaiP3 }}
	sendaiP4   = Indicator{model.PropSendaiP4, "Falta de Capacidad (Comunicaciones)", func(z model.Zone) float64 { return z.Indicators.SendaiP4 }}
	tourismDep = Indicator{model.PropTourismDep, "Dependencia Turística", func(z model.Zone) float64 { return z.TourismDependency }}
)

// Dimensions are the five deprivation dimensions in dashboard order.
var Dimensions = []Indicator{income, services, housing, health, education}

// Indicators lists every selectable index.
var Indicators = []Indicator{
	composite, income, services, housing, health, education,
	hydric, pressure, social, sendaiP1, sendaiP3, sendaiP4, tourismDep,
}

// GroupByKey looks up a group by its output property name.
func GroupByKey(key string) (Group, error) {
	for _, g := range Groups {
		if g.Key == key {
			return g, nil
		}
	}
	return Group{}, eris.Errorf("report: unknown group %q", key)
}

// IndicatorByKey looks up an indicator by its output property name.
func IndicatorByKey(key string) (Indicator, error) {
	for _, i := range Indicators {
		if i.Key == key {
			return i, nil
		}
	}
	return Indicator{}, eris.Errorf("report: unknown indicator %q", key)
}
