package markers

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	ColorNeutral   = "#6b7280"
	ColorPositive  = "#10b981"
	ColorSafe      = "#10b981"
	ColorModerate  = "#f59e0b"
	ColorUnhealthy = "#f97316"
	ColorHazardous = "#ef4444"
	ColorDefault   = ColorNeutral
)

func StatusColor(s Status) string {
	switch s {
	case StatusSafe:
		return ColorSafe
	case StatusModerate:
		return ColorModerate
	case StatusUnhealthy:
		return ColorUnhealthy
	case StatusHazardous:
		return ColorHazardous
	default:
		return ColorDefault
	}
}

// Color is total: anything it does not recognise gets ColorDefault.
func Color(m Marker) string {
	switch m.Category {
	case CategoryPointOfInterest:
		return ColorNeutral
	case CategoryMeasurement:
		if p, ok := m.Payload.(MeasurementPayload); ok {
			return StatusColor(p.Status)
		}
		return ColorDefault
	case CategoryIntervention:
		return ColorPositive
	default:
		return ColorDefault
	}
}

type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Detail is the content of the overlay shown for the selected marker.
type Detail struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

func Describe(m Marker) Detail {
	switch p := m.Payload.(type) {
	case POIPayload:
		title := strings.TrimSpace(p.Name)
		if title == "" {
			title = m.ID
		}
		fields := []Field{{Label: "Type", Value: "Point of interest"}}
		if kind := strings.TrimSpace(p.Kind); kind != "" {
			fields = append(fields, Field{Label: "Category", Value: kind})
		}
		if desc := strings.TrimSpace(p.Description); desc != "" {
			fields = append(fields, Field{Label: "Description", Value: desc})
		}
		return Detail{Title: title, Fields: fields}
	case MeasurementPayload:
		return Detail{
			Title: fmt.Sprintf("CO₂ Level: %s ppm", formatNumber(p.Level)),
			Fields: []Field{
				{Label: "Status", Value: p.Status.String()},
				{Label: "ID", Value: m.ID},
			},
		}
	case InterventionPayload:
		title := strings.TrimSpace(p.InterventionType)
		if title == "" {
			title = "Intervention"
		}
		return Detail{
			Title: title,
			Fields: []Field{
				{Label: "Efficiency", Value: formatNumber(p.Efficiency) + "%"},
				{Label: "ID", Value: m.ID},
			},
		}
	default:
		return Detail{
			Title:  m.ID,
			Fields: []Field{{Label: "Category", Value: string(m.Category)}},
		}
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
