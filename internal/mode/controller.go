// Package mode decides whether the surface draws on top of the external tiled-map resource
// or on the self-contained fallback, and owns the resource handle while it is live.
package mode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"carbontwin/mapsurface/internal/geo"
	"carbontwin/mapsurface/internal/tiles"
)

type Mode string

const (
	AwaitingCredential Mode = "awaiting_credential"
	Declined           Mode = "declined"
	Live               Mode = "live"
)

var (
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrIllegalTransition    = errors.New("illegal mode transition")
	ErrExternalResourceInit = errors.New("external resource initialisation failed")
	ErrNotLive              = errors.New("no live tile handle")
	ErrClosed               = errors.New("mode controller closed")
)

// InitFailureNotice is shown to the user after the tiled map fails to come up.
const InitFailureNotice = "Map tiles could not be loaded. Showing the offline map instead."

// Snapshot is a consistent read of the controller state.
type Snapshot struct {
	Mode       Mode   `json:"mode"`
	Ready      bool   `json:"ready"`
	Notice     string `json:"notice,omitempty"`
	Generation uint64 `json:"generation"`
}

// Placement is one marker pushed to the live handle.
type Placement struct {
	Position geo.GeoPoint
	Style    tiles.Style
}

// Hooks are called without the controller lock held.
type Hooks struct {
	OnTransition func(from, to Mode)
	OnReadiness  func(ok bool, elapsed time.Duration)
	// OnReady fires once per handle, when it is both stored and reported ready.
	OnReady func()
}

type Options struct {
	Container tiles.Container
	Initial   Mode
	Hooks     Hooks
	// OnClick is registered on every new handle.
	OnClick func(geo.GeoPoint)
}

type Controller struct {
	res  tiles.Resource
	log  zerolog.Logger
	opts Options

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	mode   Mode
	gen    uint64
	handle *tiles.Handle
	ready  bool
	notice string
	closed bool
}

func New(res tiles.Resource, log zerolog.Logger, opts Options) *Controller {
	if opts.Container == (tiles.Container{}) {
		opts.Container = tiles.DefaultContainer
	}
	if opts.Initial == "" {
		opts.Initial = AwaitingCredential
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		res:     res,
		log:     log.With().Str("component", "mode").Logger(),
		opts:    opts,
		baseCtx: ctx,
		cancel:  cancel,
		mode:    opts.Initial,
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{Mode: c.mode, Ready: c.mode == Live && c.ready && c.handle != nil, Notice: c.notice, Generation: c.gen}
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SubmitCredential enters Live and starts initialising the resource. It does not wait for
// readiness. Submitting while already Live replaces the current handle.
func (c *Controller) SubmitCredential(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidCredential
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	from := c.mode
	old := c.detachLocked()
	c.gen++
	gen := c.gen
	c.mode = Live
	c.notice = ""
	c.mu.Unlock()

	c.teardown(old)
	c.transitioned(from, Live)
	c.log.Info().Uint64("generation", gen).Str("from", string(from)).Msg("credential accepted, initialising tiles")

	started := time.Now()
	h, err := c.res.Initialize(c.baseCtx, c.opts.Container, token, func(r tiles.Readiness) {
		c.onReadiness(gen, r)
	})
	if err != nil {
		c.readinessHook(false, time.Since(started))
		c.fail(gen, err)
		return fmt.Errorf("%w: %v", ErrExternalResourceInit, err)
	}

	if c.opts.OnClick != nil {
		if err := c.res.AddClickListener(h, c.opts.OnClick); err != nil {
			c.log.Warn().Err(err).Uint64("generation", gen).Msg("click listener not registered")
		}
	}

	c.mu.Lock()
	if c.gen != gen || c.mode != Live {
		// Reverted, resubmitted or failed while Initialize was running.
		c.mu.Unlock()
		c.teardown(h)
		return nil
	}
	c.handle = h
	announce := c.ready
	c.mu.Unlock()

	if announce {
		c.readyHook()
	}
	return nil
}

// DeclineCredential moves AwaitingCredential to Declined. It is a no-op in Declined and
// rejected in Live.
func (c *Controller) DeclineCredential() error {
	c.mu.Lock()
	from := c.mode
	switch from {
	case Live:
		c.mu.Unlock()
		return fmt.Errorf("%w: decline while %s", ErrIllegalTransition, from)
	case Declined:
		c.mu.Unlock()
		return nil
	}
	c.mode = Declined
	c.mu.Unlock()

	c.transitioned(from, Declined)
	return nil
}

// RevertToFallback leaves Live for Declined and tears the handle down. Outside Live it does
// nothing.
func (c *Controller) RevertToFallback() {
	c.mu.Lock()
	if c.mode != Live {
		c.mu.Unlock()
		return
	}
	old := c.detachLocked()
	c.gen++
	c.mode = Declined
	c.mu.Unlock()

	c.teardown(old)
	c.transitioned(Live, Declined)
}

// Close tears down any live handle and cancels initialisation still in flight.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	old := c.detachLocked()
	c.gen++
	c.mu.Unlock()

	c.teardown(old)
	c.cancel()
}

// PushMarkers replaces the markers on the ready handle. Without one it returns 0 and no error;
// the caller is expected to push again from Hooks.OnReady.
func (c *Controller) PushMarkers(ps []Placement) (int, error) {
	h := c.readyHandle()
	if h == nil {
		return 0, nil
	}
	h.ClearMarkers()
	n := 0
	for _, p := range ps {
		if _, err := c.res.AddMarker(h, p.Position, p.Style); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ForwardClick delivers a click the live map already resolved to a coordinate.
func (c *Controller) ForwardClick(p geo.GeoPoint) error {
	h := c.readyHandle()
	if h == nil {
		return ErrNotLive
	}
	h.Click(p)
	return nil
}

// ForwardPixelClick resolves a pixel offset inside the live viewport with the resource's own
// projection and delivers it.
func (c *Controller) ForwardPixelClick(x, y float64) (geo.GeoPoint, error) {
	h := c.readyHandle()
	if h == nil {
		return geo.GeoPoint{}, ErrNotLive
	}
	p, _ := h.ClickPixel(x, y)
	return p, nil
}

func (c *Controller) Container() tiles.Container {
	return c.opts.Container
}

func (c *Controller) readyHandle() *tiles.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != Live || !c.ready || c.handle == nil {
		return nil
	}
	return c.handle
}

func (c *Controller) onReadiness(gen uint64, r tiles.Readiness) {
	c.mu.Lock()
	if gen != c.gen || c.mode != Live {
		c.mu.Unlock()
		c.log.Debug().Uint64("generation", gen).Msg("ignoring readiness for a discarded handle")
		return
	}
	if r.Err != nil {
		c.mu.Unlock()
		c.readinessHook(false, r.Elapsed)
		c.fail(gen, r.Err)
		return
	}
	c.ready = true
	announce := c.handle != nil
	c.mu.Unlock()

	c.readinessHook(true, r.Elapsed)
	c.log.Info().Uint64("generation", gen).Dur("elapsed", r.Elapsed).Msg("tiles ready")
	if announce {
		c.readyHook()
	}
}

// fail returns generation gen to Declined with a notice.
func (c *Controller) fail(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.mode != Live {
		c.mu.Unlock()
		return
	}
	old := c.detachLocked()
	c.gen++
	c.mode = Declined
	c.notice = InitFailureNotice
	c.mu.Unlock()

	c.log.Warn().Err(cause).Uint64("generation", gen).Msg("tile initialisation failed, falling back")
	c.teardown(old)
	c.transitioned(Live, Declined)
}

func (c *Controller) detachLocked() *tiles.Handle {
	h := c.handle
	c.handle = nil
	c.ready = false
	return h
}

func (c *Controller) teardown(h *tiles.Handle) {
	if h == nil {
		return
	}
	c.res.Teardown(h)
}

func (c *Controller) transitioned(from, to Mode) {
	if from == to {
		return
	}
	if fn := c.opts.Hooks.OnTransition; fn != nil {
		fn(from, to)
	}
}

func (c *Controller) readinessHook(ok bool, elapsed time.Duration) {
	if fn := c.opts.Hooks.OnReadiness; fn != nil {
		fn(ok, elapsed)
	}
}

func (c *Controller) readyHook() {
	if fn := c.opts.Hooks.OnReady; fn != nil {
		fn()
	}
}
