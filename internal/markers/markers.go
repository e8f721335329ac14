// Package markers turns the collaborator-supplied collections into one ordered list of
// categorised markers for a single render pass.
package markers

import (
	"strconv"

	"carbontwin/mapsurface/internal/geo"
)

// Category tags a marker and selects the shape of its payload.
type Category string

const (
	CategoryPointOfInterest Category = "point_of_interest"
	CategoryMeasurement     Category = "measurement"
	CategoryIntervention    Category = "intervention"
)

var allCategories = []Category{
	CategoryPointOfInterest,
	CategoryMeasurement,
	CategoryIntervention,
}

func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func IsKnownCategory(c Category) bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Payload is the category-specific part of a marker. The set of implementations is closed.
type Payload interface {
	Category() Category
	payload()
}

type POIPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

type MeasurementPayload struct {
	Level  float64 `json:"level"`
	Status Status  `json:"status"`
}

type InterventionPayload struct {
	InterventionType string  `json:"intervention_type"`
	Efficiency       float64 `json:"efficiency"`
}

func (POIPayload) Category() Category          { return CategoryPointOfInterest }
func (MeasurementPayload) Category() Category  { return CategoryMeasurement }
func (InterventionPayload) Category() Category { return CategoryIntervention }

func (POIPayload) payload()          {}
func (MeasurementPayload) payload()  {}
func (InterventionPayload) payload() {}

// Marker is a renderable point. Markers are rebuilt, never mutated, when inputs change.
type Marker struct {
	ID       string       `json:"id"`
	Category Category     `json:"category"`
	Position geo.GeoPoint `json:"position"`
	Payload  Payload      `json:"payload,omitempty"`
}

// PointOfInterest is a static reference location.
type PointOfInterest struct {
	ID          string       `json:"id" validate:"required"`
	Name        string       `json:"name"`
	Position    geo.GeoPoint `json:"position"`
	Category    string       `json:"category,omitempty"`
	Description string       `json:"description,omitempty"`
}

// Measurement is a live intensity reading in ppm.
type Measurement struct {
	Position geo.GeoPoint `json:"position"`
	Value    float64      `json:"value"`
}

// Intervention is a placed mitigation with its efficiency percentage.
type Intervention struct {
	ID         string       `json:"id" validate:"required"`
	Type       string       `json:"type"`
	Position   geo.GeoPoint `json:"position"`
	Efficiency float64      `json:"efficiency" validate:"gte=0,lte=100"`
}

// Inputs is a read-only snapshot of the three collections.
type Inputs struct {
	PointsOfInterest []PointOfInterest `json:"points_of_interest" validate:"dive"`
	Measurements     []Measurement     `json:"measurements" validate:"dive"`
	Interventions    []Intervention    `json:"interventions" validate:"dive"`
}

// Clone returns a snapshot that shares no backing arrays with in.
func (in Inputs) Clone() Inputs {
	return Inputs{
		PointsOfInterest: append([]PointOfInterest(nil), in.PointsOfInterest...),
		Measurements:     append([]Measurement(nil), in.Measurements...),
		Interventions:    append([]Intervention(nil), in.Interventions...),
	}
}

// MeasurementID is the marker id of the i-th measurement of a snapshot.
func MeasurementID(i int) string {
	return "measurement-" + strconv.Itoa(i)
}

// Build concatenates points of interest, measurements and interventions, in that order,
// keeping each collection's own order. It does not modify in.
func Build(in Inputs) []Marker {
	out := make([]Marker, 0, len(in.PointsOfInterest)+len(in.Measurements)+len(in.Interventions))

	for _, poi := range in.PointsOfInterest {
		out = append(out, Marker{
			ID:       poi.ID,
			Category: CategoryPointOfInterest,
			Position: poi.Position,
			Payload:  POIPayload{Name: poi.Name, Description: poi.Description, Kind: poi.Category},
		})
	}
	for i, m := range in.Measurements {
		out = append(out, Marker{
			ID:       MeasurementID(i),
			Category: CategoryMeasurement,
			Position: m.Position,
			Payload:  MeasurementPayload{Level: m.Value, Status: StatusOf(m.Value)},
		})
	}
	for _, iv := range in.Interventions {
		out = append(out, Marker{
			ID:       iv.ID,
			Category: CategoryIntervention,
			Position: iv.Position,
			Payload:  InterventionPayload{InterventionType: iv.Type, Efficiency: iv.Efficiency},
		})
	}

	return out
}

// Positions returns the position of every marker, in order.
func Positions(ms []Marker) []geo.GeoPoint {
	out := make([]geo.GeoPoint, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Position)
	}
	return out
}

// DuplicateIDs lists ids that occur more than once, in the order their first repeat is seen.
func DuplicateIDs(ms []Marker) []string {
	seen := make(map[string]int, len(ms))
	var dups []string
	for _, m := range ms {
		seen[m.ID]++
		if seen[m.ID] == 2 {
			dups = append(dups, m.ID)
		}
	}
	return dups
}

// Find returns the first marker with the given id.
func Find(ms []Marker, id string) (Marker, bool) {
	for _, m := range ms {
		if m.ID == id {
			return m, true
		}
	}
	return Marker{}, false
}

// SampleMeasurements are the demonstration CO₂ zones shown when no live readings exist.
func SampleMeasurements() []Measurement {
	return []Measurement{
		{Position: geo.GeoPoint{Lat: 28.6139, Lng: 77.2090}, Value: 450},
		{Position: geo.GeoPoint{Lat: 28.6339, Lng: 77.1890}, Value: 380},
		{Position: geo.GeoPoint{Lat: 28.5939, Lng: 77.2290}, Value: 320},
		{Position: geo.GeoPoint{Lat: 28.6239, Lng: 77.2490}, Value: 280},
		{Position: geo.GeoPoint{Lat: 28.6539, Lng: 77.1690}, Value: 420},
	}
}
