package census

import (
	"math"
	"strconv"
	"strings"
)

// Vars is the typed census record of one zone. Every field defaults to 0
// when its column is absent or holds a non-numeric value.
type Vars struct {
	TotalPopulation  float64 // POBTOT
	FemalePopulation float64 // POBFEM
	MalePopulation   float64 // POBMAS
	Pop15Plus        float64 // P_15YMAS
	Illiterate15Plus float64 // P15YM_AN
	NoSchooling15    float64 // P15YM_SE
	Insured          float64 // PDER_SS
	Households       float64 // TVIVPARHAB
	Children0to14    float64 // POB0_14
	Elderly60Plus    float64 // P_60YMAS
	IndigenousLang   float64 // P3YM_HLI
	Afro             float64 // POB_AFRO
	Disability       float64 // PCON_DISC
	FemaleHeaded     float64 // HOGJEF_F

	DirtFloor        float64 // VPH_PISOTI
	NoDrainage       float64 // VPH_NODREN
	NoPipedWater     float64 // VPH_AGUAFV
	NoElectricity    float64 // VPH_S_ELEC
	Fridge           float64 // VPH_REFRI
	Washer           float64 // VPH_LAVAD
	Car              float64 // VPH_AUTOM
	Computer         float64 // VPH_PC
	SingleRoom       float64 // VPH_1CUARTO
	LightRoof        float64 // VPH_TECHOLAM
	PalmRoof         float64 // VPH_TECHOPAL
	WasteRoof        float64 // VPH_TECHOPEC
	LightWall        float64 // VPH_PAREDLAM
	DeterioratedWall float64 // VPH_PAREDDES
	LowWall          float64 // VPH_PAREDBAJ

	WoodFuel    float64 // VPH_LENA
	Charcoal    float64 // VPH_CARBON
	Cistern     float64 // VPH_CIST
	RooftopTank float64 // VPH_TINACO

	EconomicallyActive float64 // PEA
	Unemployed         float64 // PDESOCUP
	Inactive           float64 // PE_INAC

	Internet  float64 // VPH_INTER
	Cellphone float64 // VPH_CEL

	// HasEAP records whether the table carried a PEA column.
	HasEAP bool
}

type column struct {
	name  string
	field func(*Vars) *float64
}

// schema maps INEGI column names to Vars fields.
var schema = []column{
	{"POBTOT", func(v *Vars) *float64 { return &v.TotalPopulation }},
	{"POBFEM", func(v *Vars) *float64 { return &v.FemalePopulation }},
	{"POBMAS", func(v *Vars) *float64 { return &v.MalePopulation }},
	{"P_15YMAS", func(v *Vars) *float64 { return &v.Pop15Plus }},
	{"P15YM_AN", func(v *Vars) *float64 { return &v.Illiterate15Plus }},
	{"P15YM_SE", func(v *Vars) *float64 { return &v.NoSchooling15 }},
	{"PDER_SS", func(v *Vars) *float64 { return &v.Insured }},
	{"TVIVPARHAB", func(v *Vars) *float64 { return &v.Households }},
	{"POB0_14", func(v *Vars) *float64 { return &v.Children0to14 }},
	{"P_60YMAS", func(v *Vars) *float64 { return &v.Elderly60Plus }},
	{"P3YM_HLI", func(v *Vars) *float64 { return &v.IndigenousLang }},
	{"POB_AFRO", func(v *Vars) *float64 { return &v.Afro }},
	{"PCON_DISC", func(v *Vars) *float64 { return &v.Disability }},
	{"HOGJEF_F", func(v *Vars) *float64 { return &v.FemaleHeaded }},
	{"VPH_PISOTI", func(v *Vars) *float64 { return &v.DirtFloor }},
	{"VPH_NODREN", func(v *Vars) *float64 { return &v.NoDrainage }},
	{"VPH_AGUAFV", func(v *Vars) *float64 { return &v.NoPipedWater }},
	{"VPH_S_ELEC", func(v *Vars) *float64 { return &v.NoElectricity }},
	{"VPH_REFRI", func(v *Vars) *float64 { return &v.Fridge }},
	{"VPH_LAVAD", func(v *Vars) *float64 { return &v.Washer }},
	{"VPH_AUTOM", func(v *Vars) *float64 { return &v.Car }},
	{"VPH_PC", func(v *Vars) *float64 { return &v.Computer }},
	{"VPH_1CUARTO", func(v *Vars) *float64 { return &v.SingleRoom }},
	{"VPH_TECHOLAM", func(v *Vars) *float64 { return &v.LightRoof }},
	{"VPH_TECHOPAL", func(v *Vars) *float64 { return &v.PalmRoof }},
	{"VPH_TECHOPEC", func(v *Vars) *float64 { return &v.WasteRoof }},
	{"VPH_PAREDLAM", func(v *Vars) *float64 { return &v.LightWall }},
	{"VPH_PAREDDES", func(v *Vars) *float64 { return &v.DeterioratedWall }},
	{"VPH_PAREDBAJ", func(v *Vars) *float64 { return &v.LowWall }},
	{"VPH_LENA", func(v *Vars) *float64 { return &v.WoodFuel }},
	{"VPH_CARBON", func(v *Vars) *float64 { return &v.Charcoal }},
	{"VPH_CIST", func(v *Vars) *float64 { return &v.Cistern }},
	{"VPH_TINACO", func(v *Vars) *float64 { return &v.RooftopTank }},
	{"PEA", func(v *Vars) *float64 { return &v.EconomicallyActive }},
	{"PDESOCUP", func(v *Vars) *float64 { return &v.Unemployed }},
	{"PE_INAC", func(v *Vars) *float64 { return &v.Inactive }},
	{"VPH_INTER", func(v *Vars) *float64 { return &v.Internet }},
	{"VPH_CEL", func(v *Vars) *float64 { return &v.Cellphone }},
}

// Columns returns the INEGI column names the schema maps.
func Columns() []string {
	out := make([]string, len(schema))
	for i, c := range schema {
		out[i] = c.name
	}
	return out
}

// mapper binds schema columns to positions in a header.
type mapper struct {
	idx    []int // position per schema entry, -1 when absent
	hasEAP bool
}

func newMapper(header map[string]int) mapper {
	m := mapper{idx: make([]int, len(schema))}
	for i, c := range schema {
		pos, ok := header[c.name]
		if !ok {
			m.idx[i] = -1
			continue
		}
		m.idx[i] = pos
		if c.name == "PEA" {
			m.hasEAP = true
		}
	}
	return m
}

func (m mapper) vars(record []string) Vars {
	v := Vars{HasEAP: m.hasEAP}
	for i, c := range schema {
		pos := m.idx[i]
		if pos < 0 || pos >= len(record) {
			continue
		}
		*c.field(&v) = ParseNumber(record[pos])
	}
	return v
}

// ParseNumber coerces a census cell to a number. Suppressed or missing
// values ("*", "N/D", blank) and non-finite values become 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
