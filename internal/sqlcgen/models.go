package sqlcgen

import "time"

type PointOfInterest struct {
	ID          string
	Name        string
	Category    *string
	Description *string
	Lat         float64
	Lng         float64
}

type Measurement struct {
	SensorID   string
	Lat        float64
	Lng        float64
	Value      float64
	ObservedAt time.Time
}

type Intervention struct {
	ID         string
	Type       string
	Lat        float64
	Lng        float64
	Efficiency float64
	CreatedAt  time.Time
}
