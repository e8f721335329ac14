// Package events fans chosen coordinates and placements out to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"carbontwin/mapsurface/internal/geo"
	"carbontwin/mapsurface/internal/markers"
)

const (
	KindCoordinateChosen    = "coordinate_chosen"
	KindInterventionPlaced  = "intervention_placed"
	KindInterventionRemoved = "intervention_removed"
)

// Event is the JSON message published for every notable surface action.
type Event struct {
	Kind     string        `json:"kind"`
	Position *geo.GeoPoint `json:"position,omitempty"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	At       time.Time     `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	now     func() time.Time
}

// NewRedisPublisher connects to addr and checks it with a ping.
func NewRedisPublisher(ctx context.Context, addr, channel string) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisPublisherWithClient(rdb, channel), nil
}

func NewRedisPublisherWithClient(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = "mapsurface.events"
	}
	return &RedisPublisher{rdb: rdb, channel: channel, now: time.Now}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = p.now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// Async publishes without blocking the caller and logs failures. Each publish gets its own
// timeout.
type Async struct {
	pub     Publisher
	log     zerolog.Logger
	timeout time.Duration
}

func NewAsync(pub Publisher, log zerolog.Logger, timeout time.Duration) *Async {
	if pub == nil {
		pub = NopPublisher{}
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Async{pub: pub, log: log.With().Str("component", "events").Logger(), timeout: timeout}
}

func (a *Async) Emit(e Event) {
	go a.publish(e)
}

func (a *Async) publish(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.pub.Publish(ctx, e); err != nil {
		a.log.Warn().Err(err).Str("kind", e.Kind).Msg("event publish failed")
	}
}

// CoordinateChosen is the event for onCoordinateChosen.
func CoordinateChosen(p geo.GeoPoint) Event {
	return Event{Kind: KindCoordinateChosen, Position: &p}
}

func InterventionPlaced(iv markers.Intervention) Event {
	p := iv.Position
	return Event{Kind: KindInterventionPlaced, Position: &p, ID: iv.ID, Type: iv.Type}
}

func InterventionRemoved(iv markers.Intervention) Event {
	return Event{Kind: KindInterventionRemoved, ID: iv.ID, Type: iv.Type}
}
