// Package planner turns chosen coordinates into placed interventions.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"carbontwin/mapsurface/internal/geo"
	"carbontwin/mapsurface/internal/markers"
)

var (
	ErrNoInterventionSelected = errors.New("no intervention selected")
	ErrUnknownType            = errors.New("unknown intervention type")
	ErrUnknownIntervention    = errors.New("unknown intervention")
)

// Store persists placements. A nil Store keeps them in memory only.
type Store interface {
	SaveIntervention(ctx context.Context, iv markers.Intervention) error
	DeleteIntervention(ctx context.Context, id string) error
}

type Options struct {
	Catalog []Type
	Store   Store
	// OnChange receives a fresh snapshot of the placed interventions after every change.
	OnChange func([]markers.Intervention)
	// OnPlaced and OnRemoved fire after the store accepted the change.
	OnPlaced  func(markers.Intervention)
	OnRemoved func(markers.Intervention)
	NewID     func() string
}

type Planner struct {
	log      zerolog.Logger
	catalog  []Type
	store    Store
	onChange func([]markers.Intervention)
	hooks    Options
	newID    func() string

	mu       sync.Mutex
	selected string
	placed   []markers.Intervention
}

func New(log zerolog.Logger, opts Options) *Planner {
	catalog := opts.Catalog
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	return &Planner{
		log:      log.With().Str("component", "planner").Logger(),
		catalog:  append([]Type(nil), catalog...),
		store:    opts.Store,
		onChange: opts.OnChange,
		hooks:    opts,
		newID:    newID,
	}
}

func (p *Planner) Catalog() []Type {
	return append([]Type(nil), p.catalog...)
}

func (p *Planner) lookup(id string) (Type, bool) {
	id = NormalizeTypeID(id)
	for _, t := range p.catalog {
		if t.ID == id {
			return t, true
		}
	}
	return Type{}, false
}

// SelectType chooses the type used by the next Place. An empty id clears the choice.
func (p *Planner) SelectType(id string) (Type, error) {
	if NormalizeTypeID(id) == "" {
		p.mu.Lock()
		p.selected = ""
		p.mu.Unlock()
		return Type{}, nil
	}
	t, ok := p.lookup(id)
	if !ok {
		return Type{}, fmt.Errorf("%w: %q", ErrUnknownType, id)
	}
	p.mu.Lock()
	p.selected = t.ID
	p.mu.Unlock()
	return t, nil
}

func (p *Planner) Selected() (Type, bool) {
	p.mu.Lock()
	id := p.selected
	p.mu.Unlock()
	if id == "" {
		return Type{}, false
	}
	return p.lookup(id)
}

// Place records an intervention of the selected type at pt.
func (p *Planner) Place(ctx context.Context, pt geo.GeoPoint) (markers.Intervention, error) {
	t, ok := p.Selected()
	if !ok {
		return markers.Intervention{}, ErrNoInterventionSelected
	}
	iv := markers.Intervention{
		ID:         t.ID + "-" + p.newID(),
		Type:       t.Name,
		Position:   pt,
		Efficiency: t.Efficiency,
	}
	if p.store != nil {
		if err := p.store.SaveIntervention(ctx, iv); err != nil {
			return markers.Intervention{}, fmt.Errorf("save intervention: %w", err)
		}
	}

	p.mu.Lock()
	p.placed = append(p.placed, iv)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.log.Info().Str("id", iv.ID).Float64("lat", pt.Lat).Float64("lng", pt.Lng).Msg("intervention placed")
	p.changed(snap)
	if p.hooks.OnPlaced != nil {
		p.hooks.OnPlaced(iv)
	}
	return iv, nil
}

func (p *Planner) Remove(ctx context.Context, id string) error {
	p.mu.Lock()
	var removed markers.Intervention
	idx := -1
	for i, iv := range p.placed {
		if iv.ID == id {
			idx = i
			removed = iv
			break
		}
	}
	p.mu.Unlock()
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownIntervention, id)
	}

	if p.store != nil {
		if err := p.store.DeleteIntervention(ctx, id); err != nil {
			return fmt.Errorf("delete intervention: %w", err)
		}
	}

	p.mu.Lock()
	out := p.placed[:0:0]
	for _, iv := range p.placed {
		if iv.ID != id {
			out = append(out, iv)
		}
	}
	p.placed = out
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.changed(snap)
	if p.hooks.OnRemoved != nil {
		p.hooks.OnRemoved(removed)
	}
	return nil
}

func (p *Planner) List() []markers.Intervention {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Restore replaces the placements, e.g. with what the store already holds, without writing
// them back.
func (p *Planner) Restore(ivs []markers.Intervention) {
	p.mu.Lock()
	p.placed = append([]markers.Intervention(nil), ivs...)
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.changed(snap)
}

func (p *Planner) snapshotLocked() []markers.Intervention {
	return append([]markers.Intervention(nil), p.placed...)
}

func (p *Planner) changed(snap []markers.Intervention) {
	if p.onChange != nil {
		p.onChange(snap)
	}
}
