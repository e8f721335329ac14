package markers

import (
	"fmt"
	"math"
	"strings"
)

// Status classifies a measurement's intensity. Values are ordered by severity.
type Status int

const (
	StatusSafe Status = iota
	StatusModerate
	StatusUnhealthy
	StatusHazardous
)

// Lower bounds, in ppm, of each band above Safe.
const (
	ModerateThreshold  = 300.0
	UnhealthyThreshold = 350.0
	HazardousThreshold = 400.0
)

// StatusOf classifies an intensity value. Each band includes its lower bound.
// NaN is treated as the worst case.
func StatusOf(x float64) Status {
	switch {
	case math.IsNaN(x):
		return StatusHazardous
	case x >= HazardousThreshold:
		return StatusHazardous
	case x >= UnhealthyThreshold:
		return StatusUnhealthy
	case x >= ModerateThreshold:
		return StatusModerate
	default:
		return StatusSafe
	}
}

func (s Status) String() string {
	switch s {
	case StatusSafe:
		return "safe"
	case StatusModerate:
		return "moderate"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusHazardous:
		return "hazardous"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "safe":
		*s = StatusSafe
	case "moderate":
		*s = StatusModerate
	case "unhealthy":
		*s = StatusUnhealthy
	case "hazardous":
		*s = StatusHazardous
	default:
		return fmt.Errorf("unknown status %q", string(b))
	}
	return nil
}
