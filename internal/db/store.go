package db

import (
	"context"
	"fmt"
	"time"

	"carbontwin/mapsurface/internal/geo"
	"carbontwin/mapsurface/internal/markers"
	"carbontwin/mapsurface/internal/sqlcgen"
)

// Querier is the subset of sqlcgen.Queries the store uses.
type Querier interface {
	ListPointsOfInterest(ctx context.Context) ([]sqlcgen.PointOfInterest, error)
	ListLatestMeasurements(ctx context.Context, since time.Time) ([]sqlcgen.Measurement, error)
	ListInterventions(ctx context.Context) ([]sqlcgen.Intervention, error)
	InsertIntervention(ctx context.Context, arg sqlcgen.InsertInterventionParams) (sqlcgen.Intervention, error)
	DeleteIntervention(ctx context.Context, id string) (int64, error)
}

// Store maps database rows to surface input collections.
type Store struct {
	q Querier
	// MaxReadingAge drops sensors whose newest reading is older than this.
	MaxReadingAge time.Duration
	now           func() time.Time
}

func NewStore(q Querier) *Store {
	return &Store{q: q, MaxReadingAge: 24 * time.Hour, now: time.Now}
}

// Readings returns points of interest and the latest measurement per sensor.
func (s *Store) Readings(ctx context.Context) ([]markers.PointOfInterest, []markers.Measurement, error) {
	pois, err := s.q.ListPointsOfInterest(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list points of interest: %w", err)
	}
	ms, err := s.q.ListLatestMeasurements(ctx, s.now().Add(-s.MaxReadingAge))
	if err != nil {
		return nil, nil, fmt.Errorf("list measurements: %w", err)
	}

	outP := make([]markers.PointOfInterest, 0, len(pois))
	for _, p := range pois {
		outP = append(outP, markers.PointOfInterest{
			ID:          p.ID,
			Name:        p.Name,
			Position:    geo.GeoPoint{Lat: p.Lat, Lng: p.Lng},
			Category:    deref(p.Category),
			Description: deref(p.Description),
		})
	}
	outM := make([]markers.Measurement, 0, len(ms))
	for _, m := range ms {
		outM = append(outM, markers.Measurement{Position: geo.GeoPoint{Lat: m.Lat, Lng: m.Lng}, Value: m.Value})
	}
	return outP, outM, nil
}

func (s *Store) Interventions(ctx context.Context) ([]markers.Intervention, error) {
	rows, err := s.q.ListInterventions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	out := make([]markers.Intervention, 0, len(rows))
	for _, r := range rows {
		out = append(out, markers.Intervention{
			ID:         r.ID,
			Type:       r.Type,
			Position:   geo.GeoPoint{Lat: r.Lat, Lng: r.Lng},
			Efficiency: r.Efficiency,
		})
	}
	return out, nil
}

func (s *Store) SaveIntervention(ctx context.Context, iv markers.Intervention) error {
	_, err := s.q.InsertIntervention(ctx, sqlcgen.InsertInterventionParams{
		ID:         iv.ID,
		Type:       iv.Type,
		Lat:        iv.Position.Lat,
		Lng:        iv.Position.Lng,
		Efficiency: iv.Efficiency,
	})
	return err
}

// DeleteIntervention does not treat a missing row as an error.
func (s *Store) DeleteIntervention(ctx context.Context, id string) error {
	_, err := s.q.DeleteIntervention(ctx, id)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
