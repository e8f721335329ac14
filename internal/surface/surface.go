// Package surface paints markers onto the map surface and turns clicks on it into
// coordinates or marker selections.
//
// In Live mode the external resource draws and projects; the surface only pushes markers to
// it and listens for the coordinates it reports. In Declined mode the surface is
// self-contained: markers are positioned with the equirectangular projector over the region
// that covers them, and clicks are inverse-projected the same way.
package surface

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"carbontwin/mapsurface/internal/geo"
	"carbontwin/mapsurface/internal/markers"
	"carbontwin/mapsurface/internal/metrics"
	"carbontwin/mapsurface/internal/mode"
	"carbontwin/mapsurface/internal/selection"
	"carbontwin/mapsurface/internal/tiles"
)

var (
	ErrUnknownMarker      = errors.New("unknown marker")
	ErrAwaitingCredential = errors.New("surface is waiting for a credential decision")
	ErrInvalidSurfaceSize = errors.New("surface width and height must be positive")
)

// PlacementHint is shown while placement mode is on.
const PlacementHint = "Click on the map to place interventions"

// CredentialPrompt is shown while the credential decision is pending.
const CredentialPrompt = "Enter a map access token to load live tiles, or continue with the offline map."

type Background string

const (
	BackgroundGrid   Background = "grid"
	BackgroundStatic Background = "static"
)

// DefaultHitRadius is how close, in pixels, a click must land to a glyph to select it. It
// matches the drawn glyph so only clicks inside the circle select.
const DefaultHitRadius = MarkerRadius

// Controller is the part of mode.Controller the surface drives.
type Controller interface {
	Snapshot() mode.Snapshot
	Container() tiles.Container
	PushMarkers(ps []mode.Placement) (int, error)
	ForwardClick(p geo.GeoPoint) error
	ForwardPixelClick(x, y float64) (geo.GeoPoint, error)
}

type Options struct {
	Fallback       geo.BoundingRegion
	Background     Background
	StaticImageURL string
	SeedSamples    bool
	HitRadius      float64
	// OnCoordinateChosen fires once per qualifying background click while placement is on.
	OnCoordinateChosen func(geo.GeoPoint)
	Metrics            *metrics.Metrics
}

type Surface struct {
	log  zerolog.Logger
	ctrl Controller
	opts Options

	mu        sync.Mutex
	inputs    markers.Inputs
	markers   []markers.Marker
	region    geo.BoundingRegion
	glyphs    *glyphIndex
	rev       uint64
	selection selection.State
	placement bool

	pushMu    sync.Mutex
	pushedRev uint64
	pushedGen uint64
}

func New(log zerolog.Logger, ctrl Controller, opts Options) *Surface {
	if opts.Fallback == (geo.BoundingRegion{}) {
		opts.Fallback = geo.DefaultRegion
	}
	if opts.Background == "" {
		opts.Background = BackgroundGrid
	}
	if opts.Background == BackgroundStatic && opts.StaticImageURL == "" {
		opts.Background = BackgroundGrid
	}
	if opts.HitRadius <= 0 {
		opts.HitRadius = DefaultHitRadius
	}
	s := &Surface{
		log:  log.With().Str("component", "surface").Logger(),
		ctrl: ctrl,
		opts: opts,
	}
	s.mu.Lock()
	s.rebuildLocked()
	s.mu.Unlock()
	return s
}

// SetInputs replaces all three collections.
func (s *Surface) SetInputs(in markers.Inputs) {
	s.mu.Lock()
	s.inputs = in.Clone()
	s.rebuildLocked()
	s.mu.Unlock()
	s.SyncLive()
}

// SetReadings replaces points of interest and measurements, keeping interventions.
func (s *Surface) SetReadings(pois []markers.PointOfInterest, ms []markers.Measurement) {
	s.mu.Lock()
	s.inputs.PointsOfInterest = append([]markers.PointOfInterest(nil), pois...)
	s.inputs.Measurements = append([]markers.Measurement(nil), ms...)
	s.rebuildLocked()
	s.mu.Unlock()
	s.SyncLive()
}

// SetInterventions replaces the intervention collection.
func (s *Surface) SetInterventions(ivs []markers.Intervention) {
	s.mu.Lock()
	s.inputs.Interventions = append([]markers.Intervention(nil), ivs...)
	s.rebuildLocked()
	s.mu.Unlock()
	s.SyncLive()
}

func (s *Surface) Inputs() markers.Inputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs.Clone()
}

func (s *Surface) Markers() []markers.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]markers.Marker(nil), s.markers...)
}

func (s *Surface) Region() geo.BoundingRegion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.region
}

func (s *Surface) rebuildLocked() {
	in := s.inputs
	if s.opts.SeedSamples && len(in.Measurements) == 0 {
		in.Measurements = markers.SampleMeasurements()
	}
	s.markers = markers.Build(in)
	s.region = geo.ComputeBoundingRegion(markers.Positions(s.markers), s.opts.Fallback)
	s.rev++

	if dups := markers.DuplicateIDs(s.markers); len(dups) > 0 {
		s.log.Warn().Strs("ids", dups).Msg("duplicate marker ids; selection resolves to the first")
	}

	counts := make(map[markers.Category]int, 3)
	glyphs := make([]*glyph, 0, len(s.markers))
	for i, m := range s.markers {
		counts[m.Category]++
		u, v, err := geo.Project(m.Position, s.region)
		if err != nil {
			s.log.Warn().Err(err).Str("id", m.ID).Msg("marker not positioned")
			continue
		}
		glyphs = append(glyphs, &glyph{index: i, u: u, v: v})
	}
	s.glyphs = newGlyphIndex(glyphs)

	for _, c := range markers.AllCategories() {
		s.opts.Metrics.SetMarkers(string(c), counts[c])
	}

	// Drop a selection whose marker is gone.
	s.selection.Current(s.markers)
}

// colorOf is markers.Color plus a warning for categories the palette does not know.
func (s *Surface) colorOf(m markers.Marker) string {
	if !markers.IsKnownCategory(m.Category) {
		s.log.Warn().Str("id", m.ID).Str("category", string(m.Category)).Msg("unknown marker category")
	}
	return markers.Color(m)
}

// SyncLive pushes the current marker set to the live handle, once per marker revision and
// handle generation.
func (s *Surface) SyncLive() {
	if s.ctrl == nil {
		return
	}
	snap := s.ctrl.Snapshot()
	if snap.Mode != mode.Live || !snap.Ready {
		return
	}

	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	rev := s.rev
	if rev == s.pushedRev && snap.Generation == s.pushedGen {
		s.mu.Unlock()
		return
	}
	ps := make([]mode.Placement, 0, len(s.markers))
	for _, m := range s.markers {
		ps = append(ps, mode.Placement{Position: m.Position, Style: tiles.Style{Color: s.colorOf(m), Scale: 0.8, Label: m.ID}})
	}
	s.mu.Unlock()

	n, err := s.ctrl.PushMarkers(ps)
	if err != nil {
		s.log.Warn().Err(err).Msg("pushing markers to live map failed")
		return
	}
	s.pushedRev, s.pushedGen = rev, snap.Generation
	s.log.Debug().Int("markers", n).Uint64("revision", rev).Msg("markers pushed to live map")
}

// SetPlacement turns placement mode on or off.
func (s *Surface) SetPlacement(on bool) {
	s.mu.Lock()
	s.placement = on
	s.mu.Unlock()
}

func (s *Surface) Placement() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placement
}

// SelectMarker is a click on a marker. It never reaches the background click handler.
func (s *Surface) SelectMarker(id string) (markers.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := markers.Find(s.markers, id)
	if !ok {
		return markers.Marker{}, ErrUnknownMarker
	}
	s.selection.Select(id)
	s.opts.Metrics.IncSurfaceClick(ClickMarker)
	return m, nil
}

func (s *Surface) Dismiss() {
	s.mu.Lock()
	s.selection.Dismiss()
	s.mu.Unlock()
}

// Selected resolves the selection against the current markers.
func (s *Surface) Selected() (markers.Marker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Current(s.markers)
}

const (
	ClickCoordinate = "coordinate"
	ClickMarker     = "marker"
	ClickIgnored    = "ignored"
)

// ClickResult reports how a surface click was resolved.
type ClickResult struct {
	Kind       string        `json:"kind"`
	Coordinate *geo.GeoPoint `json:"coordinate,omitempty"`
	MarkerID   string        `json:"marker_id,omitempty"`
	// Chosen is true when the coordinate was delivered to onCoordinateChosen.
	Chosen bool `json:"chosen"`
}

// Click handles a click at pixel (x, y) on a width x height surface. In Live mode the pixel is
// resolved by the resource against its own viewport and width/height are ignored.
func (s *Surface) Click(x, y, width, height float64) (ClickResult, error) {
	snap := s.snapshot()
	switch snap.Mode {
	case mode.AwaitingCredential:
		return ClickResult{}, ErrAwaitingCredential
	case mode.Live:
		// The handle's listener calls LiveClick, which applies the placement gate.
		p, err := s.ctrl.ForwardPixelClick(x, y)
		if err != nil {
			return ClickResult{}, err
		}
		return ClickResult{Kind: ClickCoordinate, Coordinate: &p, Chosen: s.Placement()}, nil
	}

	if width <= 0 || height <= 0 {
		return ClickResult{}, ErrInvalidSurfaceSize
	}

	s.mu.Lock()
	if idx, ok := s.glyphs.hit(x, y, width, height, s.opts.HitRadius); ok {
		m := s.markers[idx]
		s.selection.Select(m.ID)
		s.mu.Unlock()
		s.opts.Metrics.IncSurfaceClick(ClickMarker)
		return ClickResult{Kind: ClickMarker, MarkerID: m.ID}, nil
	}
	p := geo.Unproject(x, y, s.region, width, height)
	placing := s.placement
	s.mu.Unlock()

	return s.choose(p, placing), nil
}

// LiveClick receives a coordinate resolved by the live resource.
func (s *Surface) LiveClick(p geo.GeoPoint) {
	s.choose(p, s.Placement())
}

// ClickGeo handles a click the live map front-end already resolved to a coordinate.
func (s *Surface) ClickGeo(p geo.GeoPoint) (ClickResult, error) {
	snap := s.snapshot()
	if snap.Mode != mode.Live {
		return ClickResult{}, mode.ErrNotLive
	}
	if err := s.ctrl.ForwardClick(p); err != nil {
		return ClickResult{}, err
	}
	return ClickResult{Kind: ClickCoordinate, Coordinate: &p, Chosen: s.Placement()}, nil
}

func (s *Surface) choose(p geo.GeoPoint, placing bool) ClickResult {
	if !placing {
		s.opts.Metrics.IncSurfaceClick(ClickIgnored)
		return ClickResult{Kind: ClickCoordinate, Coordinate: &p}
	}
	s.opts.Metrics.IncSurfaceClick(ClickCoordinate)
	if fn := s.opts.OnCoordinateChosen; fn != nil {
		fn(p)
	}
	return ClickResult{Kind: ClickCoordinate, Coordinate: &p, Chosen: true}
}

func (s *Surface) snapshot() mode.Snapshot {
	if s.ctrl == nil {
		return mode.Snapshot{Mode: mode.Declined}
	}
	return s.ctrl.Snapshot()
}
