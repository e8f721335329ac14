// Package tiles is the contract with the external tiled-map resource and an HTTP raster tile
// implementation of it.
//
// The core treats a resource as an opaque capability set: it initialises a handle with a
// credential, waits for an asynchronous readiness notification, pushes markers through the
// handle and receives clicks as geographic coordinates computed by the resource itself.
package tiles

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"carbontwin/mapsurface/internal/geo"
)

var ErrHandleClosed = errors.New("tile handle closed")

// Container describes the viewport the resource draws into.
type Container struct {
	Center geo.GeoPoint `json:"center"`
	Zoom   int          `json:"zoom"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
}

// DefaultContainer is the initial live viewport.
var DefaultContainer = Container{Center: geo.DefaultCenter, Zoom: 11, Width: 800, Height: 500}

// Style is how the resource should draw a marker.
type Style struct {
	Color string  `json:"color"`
	Scale float64 `json:"scale"`
	Label string  `json:"label,omitempty"`
}

// MarkerHandle identifies a marker placed through a handle.
type MarkerHandle struct {
	ID       string       `json:"id"`
	Position geo.GeoPoint `json:"position"`
	Style    Style        `json:"style"`
}

// Readiness is delivered once per Initialize. Err is nil when the initial tiles loaded.
type Readiness struct {
	Err     error
	Elapsed time.Duration
}

// Resource is the external tiled-map provider.
type Resource interface {
	Initialize(ctx context.Context, c Container, credential string, notify func(Readiness)) (*Handle, error)
	Teardown(h *Handle)
	AddMarker(h *Handle, p geo.GeoPoint, s Style) (MarkerHandle, error)
	AddClickListener(h *Handle, fn func(geo.GeoPoint)) error
}

// Handle is one initialised instance of a resource. Closing a handle cancels any
// initialisation still in flight.
type Handle struct {
	id        string
	container Container
	cancel    context.CancelFunc

	mu        sync.Mutex
	closed    bool
	seq       int
	markers   []MarkerHandle
	listeners []func(geo.GeoPoint)
}

func NewHandle(id string, c Container, cancel context.CancelFunc) *Handle {
	if cancel == nil {
		cancel = func() {}
	}
	return &Handle{id: id, container: c, cancel: cancel}
}

func (h *Handle) ID() string           { return h.id }
func (h *Handle) Container() Container { return h.container }

func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// AddMarker records a marker on the handle. Resource implementations delegate here.
func (h *Handle) AddMarker(p geo.GeoPoint, s Style) (MarkerHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return MarkerHandle{}, ErrHandleClosed
	}
	h.seq++
	m := MarkerHandle{ID: h.id + "/" + strconv.Itoa(h.seq), Position: p, Style: s}
	h.markers = append(h.markers, m)
	return m, nil
}

func (h *Handle) AddClickListener(fn func(geo.GeoPoint)) error {
	if fn == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	h.listeners = append(h.listeners, fn)
	return nil
}

// ClearMarkers drops every marker so a new set can be pushed.
func (h *Handle) ClearMarkers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.markers = nil
}

func (h *Handle) Markers() []MarkerHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]MarkerHandle, len(h.markers))
	copy(out, h.markers)
	return out
}

// Click delivers a map click to the registered listeners and returns how many were called.
// Listeners run without the handle lock held.
func (h *Handle) Click(p geo.GeoPoint) int {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0
	}
	listeners := append([]func(geo.GeoPoint){}, h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
	return len(listeners)
}

// ClickPixel is a click at a pixel offset inside the live viewport, inverse-projected with
// the resource's Web-Mercator math.
func (h *Handle) ClickPixel(x, y float64) (geo.GeoPoint, int) {
	p := h.container.Unproject(x, y)
	return p, h.Click(p)
}

// Close is idempotent.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.markers = nil
	h.listeners = nil
	h.mu.Unlock()

	h.cancel()
}
