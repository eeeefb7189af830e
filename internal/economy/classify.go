// Package economy classifies economic units by SCIAN code and counts them
// per zone.
package economy

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sits/internal/model"
)

// Rule maps activity code prefixes to a sector.
type Rule struct {
	Sector   model.Sector `yaml:"sector"`
	Prefixes []string     `yaml:"prefixes"`
}

// DefaultRules is the SCIAN two-digit table, evaluated in order.
var DefaultRules = []Rule{
	{Sector: model.SectorTourism, Prefixes: []string{"72"}},
	{Sector: model.SectorCommerce, Prefixes: []string{"46", "43"}},
	{Sector: model.SectorIndustry, Prefixes: []string{"31", "32", "33"}},
	{Sector: model.SectorServices, Prefixes: []string{"81", "54", "61", "62"}},
}

// Classifier assigns a sector to an activity code. The first rule with a
// matching prefix wins; unmatched codes are Other.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier over rules.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultClassifier returns a classifier over DefaultRules.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules)
}

// Classify returns the sector of code.
func (c *Classifier) Classify(code string) model.Sector {
	code = strings.TrimSpace(code)
	for _, r := range c.rules {
		for _, p := range r.Prefixes {
			if p != "" && strings.HasPrefix(code, p) {
				return r.Sector
			}
		}
	}
	return model.SectorOther
}

// Rules returns the classifier's rules in evaluation order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

type sectorTable struct {
	Sectors []Rule `yaml:"sectors"`
}

// LoadSectorTable reads rules from a YAML file of the form
//
//	sectors:
//	  - sector: Turismo
//	    prefixes: ["72"]
//
// Sector names accept the Spanish labels or their English equivalents.
func LoadSectorTable(path string) (*Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "economy: read sector table %s", path)
	}
	var t sectorTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, eris.Wrapf(err, "economy: parse sector table %s", path)
	}
	if len(t.Sectors) == 0 {
		return nil, eris.Errorf("economy: sector table %s has no sectors", path)
	}
	for i, r := range t.Sectors {
		s, ok := parseSector(string(r.Sector))
		if !ok {
			return nil, eris.Errorf("economy: sector table %s: unknown sector %q", path, r.Sector)
		}
		t.Sectors[i].Sector = s
	}
	return NewClassifier(t.Sectors), nil
}

func parseSector(s string) (model.Sector, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "turismo", "tourism":
		return model.SectorTourism, true
	case "comercio", "commerce":
		return model.SectorCommerce, true
	case "industria", "industry":
		return model.SectorIndustry, true
	case "servicios", "services":
		return model.SectorServices, true
	case "otros", "other":
		return model.SectorOther, true
	}
	return "", false
}
