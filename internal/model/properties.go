package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Output property names. These match the column names the dashboard reads.
const (
	PropGeocode      = "CVEGEO"
	PropKind         = "TIPO"
	PropMunicipality = "NOM_MUN"
	PropLocality     = "NOM_LOC"
	PropAGEB         = "CVE_AGEB"

	PropBase2020    = "P20_TOT"
	PropTotal       = "P25_TOT"
	PropFemale      = "P25_FEM"
	PropMale        = "P25_MAS"
	PropIndigenous  = "P25_IND"
	PropAfro        = "P25_AFRO"
	PropDisability  = "P25_DISC"
	PropFemaleHeads = "P25_JEFAS"
	PropChildren    = "P25_NINOS"
	PropElderly     = "P25_MAYORES"
	PropEAP         = "PEA"

	PropEducation = "CAR_EDU_20"
	PropHealth    = "CAR_SALUD_20"
	PropHousing   = "CAR_VIV_20"
	PropServices  = "CAR_SERV_20"
	PropIncome    = "CAR_POBREZA_20"
	PropComposite = "SITS_INDEX"

	PropHydric        = "IND_RESILIENCIA_HIDRICA"
	PropEnvironmental = "IND_PRESION_AMBIENTAL"
	PropSocialRisk    = "IND_RIESGO_SOCIAL"

	PropSendaiP1 = "SENDAI_P1_VULNERABILIDAD"
	PropSendaiP3 = "SENDAI_P3_FRAGILIDAD"
	PropSendaiP4 = "SENDAI_P4_FALTACAPACIDAD"

	PropEcoTourism  = "ECO_TURISMO"
	PropEcoCommerce = "ECO_COMERCIO"
	PropEcoIndustry = "ECO_INDUSTRIA"
	PropEcoServices = "ECO_SERVICIOS"
	PropEcoOther    = "ECO_OTROS"
	PropEcoTotal    = "ECO_TOTAL"
	PropTourismDep  = "IND_VOCACION_TURISTICA"

	PropSlope       = "PENDIENTE_PROMEDIO"
	PropSlopeClass  = "CLASIFICACION_TOPOGRAFICA"
	PropSlopeSource = "FUENTE_PENDIENTE"
	PropGas         = "RESTRICCION_GAS"
	PropWater       = "RESTRICCION_AGUA"
	PropVerdict     = "DICTAMEN_VIABILIDAD"
)

// PropertyType is the storage type of an output property.
type PropertyType int

// Property types.
const (
	PropertyString PropertyType = iota
	PropertyFloat
	PropertyInt
	PropertyBool
)

// Property describes one output column.
type Property struct {
	Name string
	Type PropertyType
}

// Schema lists every output property in column order.
var Schema = []Property{
	{PropGeocode, PropertyString},
	{PropKind, PropertyString},
	{PropMunicipality, PropertyString},
	{PropLocality, PropertyString},
	{PropAGEB, PropertyString},
	{PropBase2020, PropertyFloat},
	{PropTotal, PropertyFloat},
	{PropFemale, PropertyFloat},
	{PropMale, PropertyFloat},
	{PropIndigenous, PropertyFloat},
	{PropAfro, PropertyFloat},
	{PropDisability, PropertyFloat},
	{PropFemaleHeads, PropertyFloat},
	{PropChildren, PropertyFloat},
	{PropElderly, PropertyFloat},
	{PropEAP, PropertyFloat},
	{PropEducation, PropertyFloat},
	{PropHealth, PropertyFloat},
	{PropHousing, PropertyFloat},
	{PropServices, PropertyFloat},
	{PropIncome, PropertyFloat},
	{PropComposite, PropertyFloat},
	{PropHydric, PropertyFloat},
	{PropEnvironmental, PropertyFloat},
	{PropSocialRisk, PropertyFloat},
	{PropSendaiP1, PropertyFloat},
	{PropSendaiP3, PropertyFloat},
	{PropSendaiP4, PropertyFloat},
	{PropEcoTourism, PropertyInt},
	{PropEcoCommerce, PropertyInt},
	{PropEcoIndustry, PropertyInt},
	{PropEcoServices, PropertyInt},
	{PropEcoOther, PropertyInt},
	{PropEcoTotal, PropertyInt},
	{PropTourismDep, PropertyFloat},
	{PropSlope, PropertyFloat},
	{PropSlopeClass, PropertyString},
	{PropSlopeSource, PropertyString},
	{PropGas, PropertyBool},
	{PropWater, PropertyBool},
	{PropVerdict, PropertyString},
}

// Properties flattens the zone into its output property map.
func (z *Zone) Properties() map[string]any {
	p := z.Population
	ind := z.Indicators
	eco := z.Economy
	return map[string]any{
		PropGeocode:      z.Geocode,
		PropKind:         string(z.Kind),
		PropMunicipality: z.Municipality,
		PropLocality:     z.Locality,
		PropAGEB:         z.AGEB,

		PropBase2020:    p.Base2020,
		PropTotal:       p.Total,
		PropFemale:      p.Female,
		PropMale:        p.Male,
		PropIndigenous:  p.Indigenous,
		PropAfro:        p.Afro,
		PropDisability:  p.Disability,
		PropFemaleHeads: p.FemaleHeads,
		PropChildren:    p.Children,
		PropElderly:     p.Elderly,
		PropEAP:         z.EconomicallyActive,

		PropEducation: ind.Education,
		PropHealth:    ind.Health,
		PropHousing:   ind.Housing,
		PropServices:  ind.Services,
		PropIncome:    ind.Income,
		PropComposite: ind.Composite,

		PropHydric:        ind.HydricResilience,
		PropEnvironmental: ind.EnvironmentalPressure,
		PropSocialRisk:    ind.SocialRisk,

		PropSendaiP1: ind.SendaiP1,
		PropSendaiP3: ind.SendaiP3,
		PropSendaiP4: ind.SendaiP4,

		PropEcoTourism:  eco.Tourism,
		PropEcoCommerce: eco.Commerce,
		PropEcoIndustry: eco.Industry,
		PropEcoServices: eco.Services,
		PropEcoOther:    eco.Other,
		PropEcoTotal:    eco.Total(),
		PropTourismDep:  z.TourismDependency,

		PropSlope:       z.Slope,
		PropSlopeClass:  string(z.SlopeClass),
		PropSlopeSource: string(z.SlopeSource),
		PropGas:         z.GasRestricted,
		PropWater:       z.WaterRestricted,
		PropVerdict:     string(z.Verdict),
	}
}

// ZoneFromProperties rebuilds a zone from a decoded property map. Numbers may
// arrive as any Go numeric type or as numeric strings. The geometry is left
// to the caller.
func ZoneFromProperties(props map[string]any) (Zone, error) {
	var z Zone
	r := propReader{props: props}

	z.Geocode = r.str(PropGeocode)
	if z.Geocode == "" {
		return z, eris.New("model: feature has no " + PropGeocode)
	}
	kind, ok := ParseKind(r.str(PropKind))
	if !ok {
		return z, eris.Errorf("model: zone %s has unknown kind %q", z.Geocode, r.str(PropKind))
	}
	z.Kind = kind
	z.Municipality = r.str(PropMunicipality)
	z.Locality = r.str(PropLocality)
	z.AGEB = r.str(PropAGEB)

	z.Population = Population{
		Base2020:    r.num(PropBase2020),
		Total:       r.num(PropTotal),
		Female:      r.num(PropFemale),
		Male:        r.num(PropMale),
		Indigenous:  r.num(PropIndigenous),
		Afro:        r.num(PropAfro),
		Disability:  r.num(PropDisability),
		FemaleHeads: r.num(PropFemaleHeads),
		Children:    r.num(PropChildren),
		Elderly:     r.num(PropElderly),
	}
	z.EconomicallyActive = r.num(PropEAP)

	z.Indicators = Indicators{
		Education:             r.num(PropEducation),
		Health:                r.num(PropHealth),
		Housing:               r.num(PropHousing),
		Services:              r.num(PropServices),
		Income:                r.num(PropIncome),
		Composite:             r.num(PropComposite),
		HydricResilience:      r.num(PropHydric),
		EnvironmentalPressure: r.num(PropEnvironmental),
		SocialRisk:            r.num(PropSocialRisk),
		SendaiP1:              r.num(PropSendaiP1),
		SendaiP3:              r.num(PropSendaiP3),
		SendaiP4:              r.num(PropSendaiP4),
	}

	z.Economy = Economy{
		Tourism:  int(r.num(PropEcoTourism)),
		Commerce: int(r.num(PropEcoCommerce)),
		Industry: int(r.num(PropEcoIndustry)),
		Services: int(r.num(PropEcoServices)),
		Other:    int(r.num(PropEcoOther)),
	}
	z.TourismDependency = r.num(PropTourismDep)

	z.Slope = r.num(PropSlope)
	z.SlopeClass = SlopeClass(r.str(PropSlopeClass))
	z.SlopeSource = SlopeSource(r.str(PropSlopeSource))
	z.GasRestricted = r.boolean(PropGas)
	z.WaterRestricted = r.boolean(PropWater)
	z.Verdict = Verdict(r.str(PropVerdict))

	return z, nil
}

type propReader struct {
	props map[string]any
}

func (r propReader) str(key string) string {
	v, ok := r.props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (r propReader) num(key string) float64 {
	switch v := r.props[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		var f float64
		if _, err := fmt.Sscan(v, &f); err == nil {
			return f
		}
	}
	return 0
}

func (r propReader) boolean(key string) bool {
	switch v := r.props[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case string:
		return v == "true" || v == "1" || v == "True"
	}
	return false
}
