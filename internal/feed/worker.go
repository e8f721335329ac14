// Package feed periodically refreshes the surface's input snapshots from the data store.
package feed

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"carbontwin/mapsurface/internal/markers"
	"carbontwin/mapsurface/internal/metrics"
)

// Source is where readings come from. *db.Store satisfies this.
type Source interface {
	Readings(ctx context.Context) ([]markers.PointOfInterest, []markers.Measurement, error)
}

// Sink receives each fresh snapshot. *surface.Surface satisfies this.
type Sink interface {
	SetReadings(pois []markers.PointOfInterest, ms []markers.Measurement)
}

type Worker struct {
	log        zerolog.Logger
	src        Source
	sink       Sink
	interval   time.Duration
	maxBackoff time.Duration
	timeout    time.Duration
	metrics    *metrics.Metrics
}

type Options struct {
	Interval   time.Duration
	MaxBackoff time.Duration
	// Timeout bounds a single refresh.
	Timeout time.Duration
}

func New(log zerolog.Logger, src Source, sink Sink, opts Options, m *metrics.Metrics) *Worker {
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	maxBackoff := opts.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Minute
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Worker{
		log:        log.With().Str("component", "feed").Logger(),
		src:        src,
		sink:       sink,
		interval:   interval,
		maxBackoff: maxBackoff,
		timeout:    timeout,
		metrics:    m,
	}
}

// Run refreshes immediately and then every interval until ctx is done. Failures back off
// exponentially and leave the previous snapshot in place.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.src == nil || w.sink == nil {
		return
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := w.RunOnce(ctx); err != nil {
			consecutiveFailures++
			if ctx.Err() == nil {
				w.log.Warn().Err(err).Int("failures", consecutiveFailures).Msg("feed refresh failed")
			}
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(backoffDuration(w.interval, w.maxBackoff, consecutiveFailures))
	}
}

// RunOnce performs a single refresh.
func (w *Worker) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	pois, ms, err := w.src.Readings(ctx)
	if err != nil {
		w.metrics.IncFeedRun(false)
		return err
	}
	w.sink.SetReadings(pois, ms)
	w.metrics.IncFeedRun(true)
	w.log.Debug().
		Int("points_of_interest", len(pois)).
		Int("measurements", len(ms)).
		Dur("elapsed", time.Since(start)).
		Msg("feed refreshed")
	return nil
}

func backoffDuration(base, limit time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	if failures <= 0 {
		return base
	}

	// base * 2^failures, capped.
	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
