// Package geo maps geographic coordinates onto the fallback drawing surface.
//
// The projection is equirectangular: latitude and longitude are scaled linearly into the
// unit square of the current bounding region. That is a known approximation that is fine for a
// city-scale demonstration surface and wrong for navigation. Live tiled maps never go through
// this package; they use the tile provider's own Web-Mercator math (see internal/tiles).
package geo

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon is the smallest span, in degrees, a region may have on either axis.
const Epsilon = 1e-6

var (
	ErrDegenerateRegion = errors.New("degenerate bounding region")
	ErrInvalidPoint     = errors.New("invalid geographic point")
)

// GeoPoint is a latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: lat=%f lng=%f", ErrInvalidPoint, p.Lat, p.Lng)
	}
	return nil
}

// BoundingRegion is a lat/lng rectangle. It is always derived from data, never stored.
type BoundingRegion struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// DefaultRegion is the city-scale window shown when there is nothing to frame.
var DefaultRegion = BoundingRegion{MinLat: 28.59, MaxLat: 28.65, MinLng: 77.17, MaxLng: 77.25}

// DefaultCenter is the initial centre of the live tiled map.
var DefaultCenter = GeoPoint{Lat: 28.6139, Lng: 77.2090}

func (r BoundingRegion) LatSpan() float64 { return r.MaxLat - r.MinLat }
func (r BoundingRegion) LngSpan() float64 { return r.MaxLng - r.MinLng }

func (r BoundingRegion) Degenerate() bool {
	// NaN spans compare false, so test for "not greater than" rather than "less or equal".
	return !(r.LatSpan() > Epsilon) || !(r.LngSpan() > Epsilon)
}

// Pad widens any axis whose span is at or below Epsilon to twice Epsilon around its
// midpoint, so the result is never Degenerate. Inverted bounds are swapped first.
func (r BoundingRegion) Pad() BoundingRegion {
	if r.MinLat > r.MaxLat {
		r.MinLat, r.MaxLat = r.MaxLat, r.MinLat
	}
	if r.MinLng > r.MaxLng {
		r.MinLng, r.MaxLng = r.MaxLng, r.MinLng
	}
	if !(r.LatSpan() > Epsilon) {
		mid := (r.MinLat + r.MaxLat) / 2
		r.MinLat, r.MaxLat = mid-Epsilon, mid+Epsilon
	}
	if !(r.LngSpan() > Epsilon) {
		mid := (r.MinLng + r.MaxLng) / 2
		r.MinLng, r.MaxLng = mid-Epsilon, mid+Epsilon
	}
	return r
}

func (r BoundingRegion) Center() GeoPoint {
	return GeoPoint{Lat: (r.MinLat + r.MaxLat) / 2, Lng: (r.MinLng + r.MaxLng) / 2}
}

func (r BoundingRegion) Contains(p GeoPoint) bool {
	return p.Lat >= r.MinLat && p.Lat <= r.MaxLat && p.Lng >= r.MinLng && p.Lng <= r.MaxLng
}

func (r BoundingRegion) Union(o BoundingRegion) BoundingRegion {
	return BoundingRegion{
		MinLat: math.Min(r.MinLat, o.MinLat),
		MaxLat: math.Max(r.MaxLat, o.MaxLat),
		MinLng: math.Min(r.MinLng, o.MinLng),
		MaxLng: math.Max(r.MaxLng, o.MaxLng),
	}
}

func (r BoundingRegion) extend(p GeoPoint) BoundingRegion {
	return BoundingRegion{
		MinLat: math.Min(r.MinLat, p.Lat),
		MaxLat: math.Max(r.MaxLat, p.Lat),
		MinLng: math.Min(r.MinLng, p.Lng),
		MaxLng: math.Max(r.MaxLng, p.Lng),
	}
}

// Project returns the normalized surface coordinate of p inside r. u grows eastward and v
// grows southward, matching screen coordinates.
func Project(p GeoPoint, r BoundingRegion) (u, v float64, err error) {
	if r.Degenerate() {
		return 0, 0, fmt.Errorf("%w: lat span %g, lng span %g", ErrDegenerateRegion, r.LatSpan(), r.LngSpan())
	}
	u = (p.Lng - r.MinLng) / r.LngSpan()
	v = (r.MaxLat - p.Lat) / r.LatSpan()
	return u, v, nil
}

// Unproject converts a pixel offset inside a width x height surface back to a GeoPoint.
// Offsets outside the surface extrapolate linearly. A non-positive dimension is treated as 1,
// so callers may pass already-normalized offsets.
func Unproject(x, y float64, r BoundingRegion, width, height float64) GeoPoint {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	return GeoPoint{
		Lat: r.MaxLat - (y/height)*r.LatSpan(),
		Lng: r.MinLng + (x/width)*r.LngSpan(),
	}
}

// ComputeBoundingRegion returns the smallest region containing every point and fallback.
// The result is padded, so it is always safe to hand to Project.
func ComputeBoundingRegion(points []GeoPoint, fallback BoundingRegion) BoundingRegion {
	r := fallback
	for _, p := range points {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
			continue
		}
		r = r.extend(p)
	}
	return r.Pad()
}
