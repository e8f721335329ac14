package tiles

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbontwin/mapsurface/internal/geo"
)

func TestTileFor_Delhi(t *testing.T) {
	x, y := TileFor(geo.DefaultCenter, 11)
	assert.Equal(t, 1463, x)
	assert.Equal(t, 853, y)
}

func TestTileFor_ClampsPoles(t *testing.T) {
	x, y := TileFor(geo.GeoPoint{Lat: 89.9, Lng: 180}, 3)
	assert.Equal(t, 7, x)
	assert.Equal(t, 0, y)
}

func TestContainer_ProjectUnprojectRoundTrip(t *testing.T) {
	c := DefaultContainer

	centre := c.Unproject(float64(c.Width)/2, float64(c.Height)/2)
	assert.InDelta(t, c.Center.Lat, centre.Lat, 1e-9)
	assert.InDelta(t, c.Center.Lng, centre.Lng, 1e-9)

	p := geo.GeoPoint{Lat: 28.63, Lng: 77.19}
	x, y := c.Project(p)
	got := c.Unproject(x, y)
	assert.InDelta(t, p.Lat, got.Lat, 1e-9)
	assert.InDelta(t, p.Lng, got.Lng, 1e-9)

	// North is up.
	north := c.Unproject(float64(c.Width)/2, 0)
	assert.Greater(t, north.Lat, c.Center.Lat)
}

func TestTileURL(t *testing.T) {
	got := TileURL("https://tiles.example/{z}/{x}/{y}.png?access_token={token}", 11, 1463, 853, "pk.abc")
	assert.Equal(t, "https://tiles.example/11/1463/853.png?access_token=pk.abc", got)
}

func TestStaticImageURL(t *testing.T) {
	got := StaticImageURL("https://static.example/map?center={lat},{lng}&zoom={z}&size={w}x{h}", geo.DefaultCenter, 11, 800, 500)
	assert.Equal(t, "https://static.example/map?center=28.613900,77.209000&zoom=11&size=800x500", got)
	assert.Empty(t, StaticImageURL("", geo.DefaultCenter, 11, 800, 500))
}

func TestHandle_ClickAndClose(t *testing.T) {
	var cancelled atomic.Bool
	h := NewHandle("h1", DefaultContainer, func() { cancelled.Store(true) })

	var got []geo.GeoPoint
	require.NoError(t, h.AddClickListener(func(p geo.GeoPoint) { got = append(got, p) }))

	m, err := h.AddMarker(geo.DefaultCenter, Style{Color: "#10b981"})
	require.NoError(t, err)
	assert.Equal(t, "h1/1", m.ID)
	assert.Len(t, h.Markers(), 1)

	assert.Equal(t, 1, h.Click(geo.GeoPoint{Lat: 1, Lng: 2}))
	require.Len(t, got, 1)

	h.Close()
	h.Close()
	assert.True(t, cancelled.Load())
	assert.True(t, h.Closed())
	assert.Equal(t, 0, h.Click(geo.GeoPoint{}))
	_, err = h.AddMarker(geo.DefaultCenter, Style{})
	assert.ErrorIs(t, err, ErrHandleClosed)
	assert.ErrorIs(t, h.AddClickListener(func(geo.GeoPoint) {}), ErrHandleClosed)
}

func newTestResource(srv *httptest.Server) *HTTPResource {
	return NewHTTPResource(zerolog.New(io.Discard), HTTPOptions{
		URLTemplate: srv.URL + "/{z}/{x}/{y}?access_token={token}",
		Client:      srv.Client(),
		Backoff:     BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
	})
}

func waitReadiness(t *testing.T, ch <-chan Readiness) Readiness {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for readiness")
		return Readiness{}
	}
}

func TestHTTPResource_ReadyOnSuccess(t *testing.T) {
	var gotPath, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	res := newTestResource(srv)
	ch := make(chan Readiness, 1)
	h, err := res.Initialize(context.Background(), DefaultContainer, "pk.good", func(r Readiness) { ch <- r })
	require.NoError(t, err)
	require.NotNil(t, h)

	r := waitReadiness(t, ch)
	assert.NoError(t, r.Err)
	assert.Equal(t, "/11/1463/853", gotPath)
	assert.Equal(t, "pk.good", gotToken)
}

func TestHTTPResource_FailsOnRejectedCredential(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	res := newTestResource(srv)
	ch := make(chan Readiness, 1)
	_, err := res.Initialize(context.Background(), DefaultContainer, "pk.bad", func(r Readiness) { ch <- r })
	require.NoError(t, err)

	r := waitReadiness(t, ch)
	require.Error(t, r.Err)
	assert.ErrorIs(t, r.Err, errUnexpected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPResource_RejectedCredentialsDoNotOpenCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "pk.good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	res := newTestResource(srv)
	ch := make(chan Readiness, 1)
	for i := 0; i < 10; i++ {
		_, err := res.Initialize(context.Background(), DefaultContainer, "pk.typo", func(r Readiness) { ch <- r })
		require.NoError(t, err)
		assert.ErrorIs(t, waitReadiness(t, ch).Err, errUnexpected)
	}

	_, err := res.Initialize(context.Background(), DefaultContainer, "pk.good", func(r Readiness) { ch <- r })
	require.NoError(t, err)
	assert.NoError(t, waitReadiness(t, ch).Err)
}

func TestHTTPResource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	res := newTestResource(srv)
	ch := make(chan Readiness, 1)
	_, err := res.Initialize(context.Background(), DefaultContainer, "pk", func(r Readiness) { ch <- r })
	require.NoError(t, err)

	assert.NoError(t, waitReadiness(t, ch).Err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPResource_TeardownSuppressesNotification(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	res := newTestResource(srv)
	var notified atomic.Bool
	h, err := res.Initialize(context.Background(), DefaultContainer, "pk", func(Readiness) { notified.Store(true) })
	require.NoError(t, err)

	res.Teardown(h)
	time.Sleep(50 * time.Millisecond)
	assert.False(t, notified.Load())
	assert.True(t, h.Closed())
}

func TestHTTPResource_NoTemplate(t *testing.T) {
	res := NewHTTPResource(zerolog.New(io.Discard), HTTPOptions{})
	_, err := res.Initialize(context.Background(), DefaultContainer, "pk", nil)
	assert.ErrorIs(t, err, errNoTemplate)
}
