package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbontwin/mapsurface/internal/geo"
	"carbontwin/mapsurface/internal/markers"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
	done   chan struct{}
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func TestAsync_Emit(t *testing.T) {
	rec := &recordingPublisher{done: make(chan struct{}, 1), err: errors.New("boom")}
	a := NewAsync(rec, zerolog.New(io.Discard), time.Second)

	a.Emit(CoordinateChosen(geo.DefaultCenter))

	select {
	case <-rec.done:
	case <-time.After(5 * time.Second):
		t.Fatal("event not published")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 1)
	assert.Equal(t, KindCoordinateChosen, rec.events[0].Kind)
	assert.Equal(t, geo.DefaultCenter, *rec.events[0].Position)
}

func TestNewAsync_NilPublisher(t *testing.T) {
	a := NewAsync(nil, zerolog.New(io.Discard), 0)
	assert.NoError(t, a.pub.Publish(context.Background(), Event{}))
}

func TestEvent_JSON(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw, err := json.Marshal(Event{Kind: KindInterventionPlaced, ID: "bio-walls-1", Type: "Bio Walls", Position: &geo.GeoPoint{Lat: 1, Lng: 2}, At: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"intervention_placed","id":"bio-walls-1","type":"Bio Walls","position":{"lat":1,"lng":2},"at":"2026-01-02T03:04:05Z"}`, string(raw))
}

func TestRedisPublisher_ReportsConnectionErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	p := NewRedisPublisherWithClient(rdb, "")
	defer p.Close()

	assert.Equal(t, "mapsurface.events", p.channel)
	err := p.Publish(context.Background(), CoordinateChosen(geo.DefaultCenter))
	assert.Error(t, err)
}

func TestInterventionEvents(t *testing.T) {
	iv := markers.Intervention{ID: "green-roofs-1", Type: "Green Roof Systems", Position: geo.DefaultCenter, Efficiency: 70}

	placed := InterventionPlaced(iv)
	assert.Equal(t, KindInterventionPlaced, placed.Kind)
	require.NotNil(t, placed.Position)
	assert.Equal(t, geo.DefaultCenter, *placed.Position)

	removed := InterventionRemoved(iv)
	assert.Equal(t, KindInterventionRemoved, removed.Kind)
	assert.Nil(t, removed.Position)
	assert.Equal(t, "green-roofs-1", removed.ID)
}
