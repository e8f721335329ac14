package geo

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var delhi = BoundingRegion{MinLat: 28.59, MaxLat: 28.65, MinLng: 77.17, MaxLng: 77.25}

func TestProject_ConnaughtPlace(t *testing.T) {
	u, v, err := Project(GeoPoint{Lat: 28.6139, Lng: 77.2090}, delhi)
	require.NoError(t, err)

	assert.InDelta(t, (77.2090-77.17)/0.08, u, 1e-3)
	assert.InDelta(t, (28.65-28.6139)/0.06, v, 1e-3)
}

func TestProject_Corners(t *testing.T) {
	u, v, err := Project(GeoPoint{Lat: delhi.MaxLat, Lng: delhi.MinLng}, delhi)
	require.NoError(t, err)
	assert.InDelta(t, 0, u, 1e-12)
	assert.InDelta(t, 0, v, 1e-12)

	u, v, err = Project(GeoPoint{Lat: delhi.MinLat, Lng: delhi.MaxLng}, delhi)
	require.NoError(t, err)
	assert.InDelta(t, 1, u, 1e-12)
	assert.InDelta(t, 1, v, 1e-12)
}

func TestProject_DegenerateRegion(t *testing.T) {
	flat := BoundingRegion{MinLat: 10, MaxLat: 10, MinLng: 20, MaxLng: 21}
	_, _, err := Project(GeoPoint{Lat: 10, Lng: 20.5}, flat)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateRegion))

	_, _, err = Project(GeoPoint{Lat: 10, Lng: 20.5}, flat.Pad())
	assert.NoError(t, err)
}

func TestProjectUnproject_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sizes := [][2]float64{{1, 1}, {640, 480}, {1920, 500}, {3, 9000}}

	for i := 0; i < 500; i++ {
		p := GeoPoint{
			Lat: delhi.MinLat + rng.Float64()*delhi.LatSpan(),
			Lng: delhi.MinLng + rng.Float64()*delhi.LngSpan(),
		}
		u, v, err := Project(p, delhi)
		require.NoError(t, err)

		for _, sz := range sizes {
			got := Unproject(u*sz[0], v*sz[1], delhi, sz[0], sz[1])
			assert.InDelta(t, p.Lat, got.Lat, 1e-9)
			assert.InDelta(t, p.Lng, got.Lng, 1e-9)
		}
	}
}

func TestUnproject_ExtrapolatesOutsideSurface(t *testing.T) {
	got := Unproject(-100, 600, delhi, 400, 300)
	assert.Less(t, got.Lng, delhi.MinLng)
	assert.Less(t, got.Lat, delhi.MinLat)
}

func TestComputeBoundingRegion_Containment(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		n := 1 + rng.Intn(20)
		points := make([]GeoPoint, n)
		for j := range points {
			points[j] = GeoPoint{Lat: rng.Float64()*180 - 90, Lng: rng.Float64()*360 - 180}
		}
		r := ComputeBoundingRegion(points, delhi)
		for _, p := range points {
			assert.LessOrEqual(t, r.MinLat, p.Lat)
			assert.GreaterOrEqual(t, r.MaxLat, p.Lat)
			assert.LessOrEqual(t, r.MinLng, p.Lng)
			assert.GreaterOrEqual(t, r.MaxLng, p.Lng)
		}
		assert.True(t, r.Contains(delhi.Center()))
	}
}

func TestComputeBoundingRegion_OrderIndependent(t *testing.T) {
	points := []GeoPoint{{Lat: 28.7, Lng: 77.1}, {Lat: 28.5, Lng: 77.3}, {Lat: 28.62, Lng: 77.2}}
	reversed := []GeoPoint{points[2], points[1], points[0]}
	assert.Equal(t, ComputeBoundingRegion(points, delhi), ComputeBoundingRegion(reversed, delhi))
}

func TestComputeBoundingRegion_EmptyUsesFallback(t *testing.T) {
	assert.Equal(t, delhi, ComputeBoundingRegion(nil, delhi))
}

func TestComputeBoundingRegion_PadsDegenerateFallback(t *testing.T) {
	single := GeoPoint{Lat: 51.5, Lng: -0.12}
	zero := BoundingRegion{MinLat: single.Lat, MaxLat: single.Lat, MinLng: single.Lng, MaxLng: single.Lng}

	r := ComputeBoundingRegion([]GeoPoint{single}, zero)
	assert.False(t, r.Degenerate())
	assert.True(t, r.Contains(single))

	u, v, err := Project(single, r)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, u, 1e-6)
	assert.InDelta(t, 0.5, v, 1e-6)
}

func TestPad_ZeroSpanNeverDegenerate(t *testing.T) {
	for _, p := range []GeoPoint{{Lat: 0, Lng: 0}, {Lat: 28.6, Lng: 77.2}, {Lat: -33.87, Lng: 151.21}, {Lat: 89.99, Lng: -179.99}} {
		zero := BoundingRegion{MinLat: p.Lat, MaxLat: p.Lat, MinLng: p.Lng, MaxLng: p.Lng}
		padded := zero.Pad()
		assert.False(t, padded.Degenerate(), "padded region around %+v", p)
		assert.True(t, padded.Contains(p))

		_, _, err := Project(p, padded)
		assert.NoError(t, err)

		_, _, err = Project(p, ComputeBoundingRegion([]GeoPoint{p}, zero))
		assert.NoError(t, err)
	}
}

func TestComputeBoundingRegion_SkipsNaN(t *testing.T) {
	r := ComputeBoundingRegion([]GeoPoint{{Lat: math.NaN(), Lng: 1}}, delhi)
	assert.Equal(t, delhi, r)
}

func TestGeoPoint_Validate(t *testing.T) {
	assert.NoError(t, GeoPoint{Lat: -90, Lng: 180}.Validate())
	assert.ErrorIs(t, GeoPoint{Lat: 91, Lng: 0}.Validate(), ErrInvalidPoint)
	assert.ErrorIs(t, GeoPoint{Lat: 0, Lng: -181}.Validate(), ErrInvalidPoint)
}
