package tiles

import (
	"math"
	"strconv"
	"strings"

	"carbontwin/mapsurface/internal/geo"
)

const (
	TileSize = 256

	// MaxMercatorLat is where Web-Mercator tiles stop.
	MaxMercatorLat = 85.05112878
)

// worldPixel returns the Web-Mercator pixel of p at zoom, in a world of TileSize*2^zoom pixels.
func worldPixel(p geo.GeoPoint, zoom int) (float64, float64) {
	size := TileSize * math.Exp2(float64(zoom))
	lat := math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, p.Lat))
	latRad := lat * math.Pi / 180

	x := (p.Lng + 180) / 360 * size
	y := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * size
	return x, y
}

func worldPixelToGeoPoint(x, y float64, zoom int) geo.GeoPoint {
	size := TileSize * math.Exp2(float64(zoom))
	lng := x/size*360 - 180
	n := math.Pi - 2*math.Pi*y/size
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return geo.GeoPoint{Lat: lat, Lng: lng}
}

// TileFor returns the x/y index of the tile containing p at zoom.
func TileFor(p geo.GeoPoint, zoom int) (int, int) {
	px, py := worldPixel(p, zoom)
	last := int(math.Exp2(float64(zoom))) - 1
	return clampInt(int(math.Floor(px/TileSize)), 0, last), clampInt(int(math.Floor(py/TileSize)), 0, last)
}

// Unproject converts a pixel offset inside the viewport to a GeoPoint. The viewport centre
// sits on c.Center.
func (c Container) Unproject(x, y float64) geo.GeoPoint {
	cx, cy := worldPixel(c.Center, c.Zoom)
	return worldPixelToGeoPoint(cx+x-float64(c.Width)/2, cy+y-float64(c.Height)/2, c.Zoom)
}

// Project is the inverse of Unproject.
func (c Container) Project(p geo.GeoPoint) (float64, float64) {
	cx, cy := worldPixel(c.Center, c.Zoom)
	px, py := worldPixel(p, c.Zoom)
	return px - cx + float64(c.Width)/2, py - cy + float64(c.Height)/2
}

// TileURL fills {z}, {x}, {y} and {token} in a tile URL template.
func TileURL(template string, z, x, y int, token string) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
		"{token}", token,
	).Replace(template)
}

// StaticImageURL fills {lat}, {lng}, {z}, {w} and {h} in a static map image template.
func StaticImageURL(template string, center geo.GeoPoint, zoom, width, height int) string {
	if template == "" {
		return ""
	}
	return strings.NewReplacer(
		"{lat}", strconv.FormatFloat(center.Lat, 'f', 6, 64),
		"{lng}", strconv.FormatFloat(center.Lng, 'f', 6, 64),
		"{z}", strconv.Itoa(zoom),
		"{w}", strconv.Itoa(width),
		"{h}", strconv.Itoa(height),
	).Replace(template)
}

// ZoomToFit is the largest zoom at which lngSpan degrees fit into width pixels.
func ZoomToFit(lngSpan float64, width int) int {
	if lngSpan <= 0 || width <= 0 {
		return 0
	}
	z := math.Floor(math.Log2(float64(width) * 360 / (TileSize * lngSpan)))
	return clampInt(int(z), 0, 20)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
