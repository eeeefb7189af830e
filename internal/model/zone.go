package model

import (
	geom "github.com/twpayne/go-geom"
)

// Kind distinguishes urban blocks from rural localities. The string value is
// the TIPO label written to the output layers.
type Kind string

// Zone kinds.
const (
	KindUrban Kind = "Urbano"
	KindRural Kind = "Rural"
)

// Kinds lists every zone kind in processing order.
var Kinds = []Kind{KindUrban, KindRural}

// Slug returns the lowercase token used in output file names.
func (k Kind) Slug() string {
	switch k {
	case KindUrban:
		return "urbana"
	case KindRural:
		return "rural"
	default:
		return "desconocida"
	}
}

// ParseKind accepts either the label or the slug of a kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if s == string(k) || s == k.Slug() {
			return k, true
		}
	}
	switch s {
	case "urban", "urbano":
		return KindUrban, true
	case "rural":
		return KindRural, true
	}
	return "", false
}

// SlopeClass is the topographic category of a zone.
type SlopeClass string

// Slope categories.
const (
	SlopeViable         SlopeClass = "Plano (Viable)"
	SlopeConditioned    SlopeClass = "Lomerío (Condicionado)"
	SlopeNonUrbanizable SlopeClass = "NO URBANIZABLE (>15%)"
)

// SlopeSource records where a slope statistic came from.
type SlopeSource string

// Slope sources.
const (
	SlopeFromRaster    SlopeSource = "raster"
	SlopeFromSynthetic SlopeSource = "synthetic"
)

// Verdict is the regulatory viability label of a zone.
type Verdict string

// Verdicts in priority order.
const (
	VerdictChemicalRisk  Verdict = "RIESGO QUÍMICO (Gasolinera)"
	VerdictFederalZone   Verdict = "ZONA FEDERAL (Río)"
	VerdictLandslideRisk Verdict = "RIESGO DESLAVE"
	VerdictFeasible      Verdict = "FACTIBLE"
)

// Sector is an economic sector derived from a SCIAN activity code.
type Sector string

// Economic sectors.
const (
	SectorTourism  Sector = "Turismo"
	SectorCommerce Sector = "Comercio"
	SectorIndustry Sector = "Industria"
	SectorServices Sector = "Servicios"
	SectorOther    Sector = "Otros"
)

// Sectors lists every sector, Other last.
var Sectors = []Sector{SectorTourism, SectorCommerce, SectorIndustry, SectorServices, SectorOther}

// Indicators holds every computed index of a zone. All values lie in [0,1].
type Indicators struct {
	Education float64
	Health    float64
	Housing   float64
	Services  float64
	Income    float64
	Composite float64

	HydricResilience      float64
	EnvironmentalPressure float64
	SocialRisk            float64

	SendaiP1 float64
	SendaiP3 float64
	SendaiP4 float64
}

// Deprivation returns the five deprivation sub-indices in canonical order.
func (i Indicators) Deprivation() [5]float64 {
	return [5]float64{i.Education, i.Health, i.Housing, i.Services, i.Income}
}

// Population holds the 2020 base population and the projected groups.
type Population struct {
	Base2020 float64

	Total       float64
	Female      float64
	Male        float64
	Indigenous  float64
	Afro        float64
	Disability  float64
	FemaleHeads float64
	Children    float64
	Elderly     float64
}

// Economy holds per-sector counts of economic units inside a zone.
type Economy struct {
	Tourism  int
	Commerce int
	Industry int
	Services int
	Other    int
}

// Add increments the count of one sector.
func (e *Economy) Add(s Sector) {
	switch s {
	case SectorTourism:
		e.Tourism++
	case SectorCommerce:
		e.Commerce++
	case SectorIndustry:
		e.Industry++
	case SectorServices:
		e.Services++
	default:
		e.Other++
	}
}

// Count returns the count of one sector.
func (e Economy) Count(s Sector) int {
	switch s {
	case SectorTourism:
		return e.Tourism
	case SectorCommerce:
		return e.Commerce
	case SectorIndustry:
		return e.Industry
	case SectorServices:
		return e.Services
	default:
		return e.Other
	}
}

// Total sums all sectors, Other included.
func (e Economy) Total() int {
	return e.Tourism + e.Commerce + e.Industry + e.Services + e.Other
}

// TourismRatio is tourism / max(total, 1).
func (e Economy) TourismRatio() float64 {
	total := e.Total()
	if total < 1 {
		total = 1
	}
	return float64(e.Tourism) / float64(total)
}

// Zone is one scored urban block or rural locality.
type Zone struct {
	Geocode  string
	Kind     Kind
	Geometry geom.T

	Municipality string
	Locality     string
	AGEB         string

	Population         Population
	EconomicallyActive float64

	Indicators Indicators

	Economy           Economy
	TourismDependency float64

	Slope       float64
	SlopeClass  SlopeClass
	SlopeSource SlopeSource

	GasRestricted   bool
	WaterRestricted bool
	Verdict         Verdict
}
