package planner

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type is one kind of mitigation a user can place.
type Type struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Efficiency  float64 `json:"efficiency" yaml:"efficiency"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

var ErrInvalidCatalog = errors.New("invalid intervention catalog")

func DefaultCatalog() []Type {
	return []Type{
		{ID: "vertical-gardens", Name: "Vertical Gardens", Efficiency: 85, Description: "Plant walls on building facades"},
		{ID: "roadside-filters", Name: "Air Filtration Systems", Efficiency: 75, Description: "Filter units along high-traffic roads"},
		{ID: "bio-walls", Name: "Bio Walls", Efficiency: 90, Description: "Living walls with air-cleaning microbes"},
		{ID: "algae-scrubbers", Name: "Algae CO₂ Scrubbers", Efficiency: 95, Description: "Photobioreactors that absorb CO₂"},
		{ID: "green-roofs", Name: "Green Roof Systems", Efficiency: 70, Description: "Vegetated rooftops"},
	}
}

// NormalizeTypeID lowercases and hyphenates an intervention type id, so "Bio Walls" and
// "bio_walls" both read as "bio-walls".
func NormalizeTypeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.NewReplacer(" ", "-", "_", "-").Replace(id)
	for strings.Contains(id, "--") {
		id = strings.ReplaceAll(id, "--", "-")
	}
	return strings.Trim(id, "-")
}

type catalogFile struct {
	Interventions []Type `yaml:"interventions"`
}

// LoadCatalog reads a YAML catalogue. An empty path yields DefaultCatalog.
//
//	interventions:
//	  - id: bio-walls
//	    name: Bio Walls
//	    efficiency: 90
func LoadCatalog(path string) ([]Type, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) ([]Type, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return normalizeCatalog(f.Interventions)
}

func normalizeCatalog(types []Type) ([]Type, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: no interventions", ErrInvalidCatalog)
	}
	seen := make(map[string]struct{}, len(types))
	out := make([]Type, 0, len(types))
	for _, t := range types {
		t.ID = NormalizeTypeID(t.ID)
		if t.ID == "" {
			return nil, fmt.Errorf("%w: intervention without id", ErrInvalidCatalog)
		}
		if _, ok := seen[t.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, t.ID)
		}
		if t.Efficiency < 0 || t.Efficiency > 100 {
			return nil, fmt.Errorf("%w: %s efficiency %v out of range", ErrInvalidCatalog, t.ID, t.Efficiency)
		}
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			t.Name = t.ID
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// ByEfficiency returns the catalogue sorted best first, ties broken by id.
func ByEfficiency(types []Type) []Type {
	out := append([]Type(nil), types...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Efficiency != out[j].Efficiency {
			return out[i].Efficiency > out[j].Efficiency
		}
		return out[i].ID < out[j].ID
	})
	return out
}
