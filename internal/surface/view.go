package surface

import (
	"carbontwin/mapsurface/internal/geo"
	"carbontwin/mapsurface/internal/markers"
	"carbontwin/mapsurface/internal/mode"
	"carbontwin/mapsurface/internal/tiles"
)

// Offset is a marker position on the fallback surface, in percent of width and height.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PlacedMarker struct {
	markers.Marker
	Color  string  `json:"color"`
	Offset *Offset `json:"offset,omitempty"`
}

type SelectionView struct {
	Marker markers.Marker `json:"marker"`
	Detail markers.Detail `json:"detail"`
}

// View is one render pass of the surface. BackgroundURL is only set for the static
// background.
type View struct {
	Mode          mode.Mode          `json:"mode"`
	Ready         bool               `json:"ready"`
	Notice        string             `json:"notice,omitempty"`
	Prompt        string             `json:"prompt,omitempty"`
	Region        geo.BoundingRegion `json:"region"`
	Background    Background         `json:"background,omitempty"`
	BackgroundURL string             `json:"background_url,omitempty"`
	Container     *tiles.Container   `json:"container,omitempty"`
	Markers       []PlacedMarker     `json:"markers"`
	Selection     *SelectionView     `json:"selection,omitempty"`
	Placement     bool               `json:"placement"`
	Hint          string             `json:"hint,omitempty"`
	Duplicates    []string           `json:"duplicate_ids,omitempty"`
}

// Render builds the view for the current mode. Fallback offsets are always filled so a
// client can draw the offline surface.
func (s *Surface) Render() View {
	snap := s.snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Mode:       snap.Mode,
		Ready:      snap.Ready,
		Notice:     snap.Notice,
		Region:     s.region,
		Markers:    make([]PlacedMarker, 0, len(s.markers)),
		Placement:  s.placement,
		Duplicates: markers.DuplicateIDs(s.markers),
	}

	switch snap.Mode {
	case mode.AwaitingCredential:
		v.Prompt = CredentialPrompt
	case mode.Live:
		if s.ctrl != nil {
			c := s.ctrl.Container()
			v.Container = &c
		}
	default:
		v.Background = s.opts.Background
		if v.Background == BackgroundStatic {
			v.BackgroundURL = s.staticURLLocked()
		}
	}

	for _, m := range s.markers {
		pm := PlacedMarker{Marker: m, Color: s.colorOf(m)}
		if u, vv, err := geo.Project(m.Position, s.region); err == nil {
			pm.Offset = &Offset{X: u * 100, Y: vv * 100}
		}
		v.Markers = append(v.Markers, pm)
	}

	if m, ok := s.selection.Current(s.markers); ok {
		v.Selection = &SelectionView{Marker: m, Detail: markers.Describe(m)}
	}
	if s.placement && snap.Mode != mode.AwaitingCredential {
		v.Hint = PlacementHint
	}
	return v
}

// staticURLLocked addresses a static map image by the region centre. The zoom is the
// largest whose world width still fits the region's longitude span into the default
// container.
func (s *Surface) staticURLLocked() string {
	c := tiles.DefaultContainer
	return tiles.StaticImageURL(s.opts.StaticImageURL, s.region.Center(), tiles.ZoomToFit(s.region.LngSpan(), c.Width), c.Width, c.Height)
}
