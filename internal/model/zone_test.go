package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindSlug(t *testing.T) {
	assert.Equal(t, "urbana", KindUrban.Slug())
	assert.Equal(t, "rural", KindRural.Slug())

	for _, in := range []string{"Urbano", "urbana", "urban"} {
		k, ok := ParseKind(in)
		require.True(t, ok, in)
		assert.Equal(t, KindUrban, k)
	}
	_, ok := ParseKind("suburbano")
	assert.False(t, ok)
}

func TestEconomyTotalsAndRatio(t *testing.T) {
	tests := []struct {
		name    string
		add     []Sector
		total   int
		tourism int
		ratio   float64
	}{
		{name: "empty", total: 0, ratio: 0},
		{name: "only tourism", add: []Sector{SectorTourism, SectorTourism}, total: 2, tourism: 2, ratio: 1},
		{
			name:    "mixed with other",
			add:     []Sector{SectorTourism, SectorCommerce, SectorOther, SectorServices},
			total:   4,
			tourism: 1,
			ratio:   0.25,
		},
		{name: "other only", add: []Sector{SectorOther}, total: 1, ratio: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Economy
			for _, s := range tt.add {
				e.Add(s)
			}
			assert.Equal(t, tt.total, e.Total())
			assert.Equal(t, tt.tourism, e.Count(SectorTourism))
			assert.InDelta(t, tt.ratio, e.TourismRatio(), 1e-12)
		})
	}
}

func TestPropertiesCoverSchema(t *testing.T) {
	z := Zone{Geocode: "300320001", Kind: KindRural}
	props := z.Properties()
	assert.Len(t, props, len(Schema))
	for _, p := range Schema {
		_, ok := props[p.Name]
		assert.True(t, ok, p.Name)
	}
}

func TestZoneFromPropertiesAfterJSON(t *testing.T) {
	z := Zone{
		Geocode:      "3003200010231001",
		Kind:         KindUrban,
		Municipality: "Catemaco",
		Locality:     "Catemaco (Cabecera)",
		AGEB:         "0231",
		Population:   Population{Base2020: 100, Total: 104.8},
		Indicators:   Indicators{Health: 0.25, Composite: 0.4, SendaiP4: 0.8},
		Economy:      Economy{Tourism: 3, Other: 1},
		Slope:        12.5,
		SlopeClass:   SlopeConditioned,
		SlopeSource:  SlopeFromRaster,

		GasRestricted: true,
		Verdict:       VerdictChemicalRisk,
	}
	z.TourismDependency = z.Economy.TourismRatio()

	raw, err := json.Marshal(z.Properties())
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	got, err := ZoneFromProperties(decoded)
	require.NoError(t, err)
	assert.Equal(t, z, got)
}

func TestZoneFromPropertiesErrors(t *testing.T) {
	_, err := ZoneFromProperties(map[string]any{PropKind: "Urbano"})
	assert.Error(t, err)

	_, err = ZoneFromProperties(map[string]any{PropGeocode: "1", PropKind: "Mixto"})
	assert.Error(t, err)
}
