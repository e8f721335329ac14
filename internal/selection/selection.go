// Package selection tracks the one marker currently open in the detail overlay.
package selection

import "carbontwin/mapsurface/internal/markers"

// State holds zero or one selected marker id. The zero value is empty.
type State struct {
	id  string
	set bool
}

// Select replaces any previous selection.
func (s *State) Select(id string) {
	s.id = id
	s.set = true
}

func (s *State) Dismiss() {
	s.id = ""
	s.set = false
}

// ID returns the raw selected id without checking it against a marker set.
func (s *State) ID() (string, bool) {
	return s.id, s.set
}

// Current resolves the selection against the current marker set. A selection whose marker
// is gone is cleared and reported as empty.
func (s *State) Current(ms []markers.Marker) (markers.Marker, bool) {
	if !s.set {
		return markers.Marker{}, false
	}
	m, ok := markers.Find(ms, s.id)
	if !ok {
		s.Dismiss()
		return markers.Marker{}, false
	}
	return m, true
}
