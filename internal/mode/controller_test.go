package mode

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"carbontwin/mapsurface/internal/geo"
	"carbontwin/mapsurface/internal/tiles"
)

type initCall struct {
	credential string
	handle     *tiles.Handle
	notify     func(tiles.Readiness)
}

type fakeResource struct {
	mu        sync.Mutex
	calls     []initCall
	torn      []*tiles.Handle
	initErr   error
	immediate *tiles.Readiness
}

func (f *fakeResource) Initialize(ctx context.Context, c tiles.Container, credential string, notify func(tiles.Readiness)) (*tiles.Handle, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	f.mu.Lock()
	h := tiles.NewHandle("h", c, nil)
	f.calls = append(f.calls, initCall{credential: credential, handle: h, notify: notify})
	immediate := f.immediate
	f.mu.Unlock()
	if immediate != nil {
		notify(*immediate)
	}
	return h, nil
}

func (f *fakeResource) Teardown(h *tiles.Handle) {
	f.mu.Lock()
	f.torn = append(f.torn, h)
	f.mu.Unlock()
	h.Close()
}

func (f *fakeResource) AddMarker(h *tiles.Handle, p geo.GeoPoint, s tiles.Style) (tiles.MarkerHandle, error) {
	return h.AddMarker(p, s)
}

func (f *fakeResource) AddClickListener(h *tiles.Handle, fn func(geo.GeoPoint)) error {
	return h.AddClickListener(fn)
}

func (f *fakeResource) last() initCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newController(res tiles.Resource, opts Options) *Controller {
	return New(res, zerolog.New(io.Discard), opts)
}

func TestController_StartsAwaitingCredential(t *testing.T) {
	c := newController(&fakeResource{}, Options{})
	if got := c.Mode(); got != AwaitingCredential {
		t.Fatalf("expected %s, got %s", AwaitingCredential, got)
	}
}

func TestSubmitCredential_RejectsBlank(t *testing.T) {
	res := &fakeResource{}
	c := newController(res, Options{})

	for _, tok := range []string{"", "   ", "\t\n"} {
		if err := c.SubmitCredential(tok); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("expected ErrInvalidCredential for %q, got %v", tok, err)
		}
	}
	if c.Mode() != AwaitingCredential {
		t.Fatalf("blank credential must not transition")
	}
	if len(res.calls) != 0 {
		t.Fatalf("blank credential must not initialise the resource")
	}
}

func TestSubmitCredential_EntersLiveBeforeReady(t *testing.T) {
	res := &fakeResource{}
	c := newController(res, Options{})

	if err := c.SubmitCredential("  pk.abc  "); err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap := c.Snapshot()
	if snap.Mode != Live || snap.Ready {
		t.Fatalf("expected live and not ready, got %+v", snap)
	}
	if res.last().credential != "pk.abc" {
		t.Fatalf("expected trimmed credential, got %q", res.last().credential)
	}

	res.last().notify(tiles.Readiness{Elapsed: time.Millisecond})
	if !c.Snapshot().Ready {
		t.Fatalf("expected ready after notification")
	}
}

func TestDeclineCredential(t *testing.T) {
	c := newController(&fakeResource{}, Options{})

	if err := c.DeclineCredential(); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if c.Mode() != Declined {
		t.Fatalf("expected declined")
	}
	if err := c.DeclineCredential(); err != nil {
		t.Fatalf("second decline should be a no-op, got %v", err)
	}

	if err := c.SubmitCredential("pk"); err != nil {
		t.Fatalf("submit from declined: %v", err)
	}
	if err := c.DeclineCredential(); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition in live, got %v", err)
	}
	if c.Mode() != Live {
		t.Fatalf("rejected decline must not transition")
	}
}

func TestRevertToFallback_IgnoresLateReadiness(t *testing.T) {
	res := &fakeResource{}
	readyCalls := 0
	c := newController(res, Options{Hooks: Hooks{OnReady: func() { readyCalls++ }}})

	if err := c.SubmitCredential("pk"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	call := res.last()

	c.RevertToFallback()
	if c.Mode() != Declined {
		t.Fatalf("expected declined after revert")
	}
	if !call.handle.Closed() {
		t.Fatalf("expected handle torn down on revert")
	}

	call.notify(tiles.Readiness{})
	snap := c.Snapshot()
	if snap.Mode != Declined || snap.Ready {
		t.Fatalf("late readiness must be ignored, got %+v", snap)
	}
	if readyCalls != 0 {
		t.Fatalf("expected no ready hook, got %d", readyCalls)
	}

	c.RevertToFallback()
	if c.Mode() != Declined {
		t.Fatalf("revert must be idempotent")
	}
}

func TestRevertToFallback_NoopWhileAwaiting(t *testing.T) {
	c := newController(&fakeResource{}, Options{})
	c.RevertToFallback()
	if c.Mode() != AwaitingCredential {
		t.Fatalf("expected awaiting credential, got %s", c.Mode())
	}
}

func TestReadinessFailure_FallsBackWithNotice(t *testing.T) {
	res := &fakeResource{}
	var transitions []string
	c := newController(res, Options{Hooks: Hooks{OnTransition: func(from, to Mode) {
		transitions = append(transitions, string(from)+">"+string(to))
	}}})

	if err := c.SubmitCredential("pk"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res.last().notify(tiles.Readiness{Err: errors.New("401")})

	snap := c.Snapshot()
	if snap.Mode != Declined {
		t.Fatalf("expected declined, got %s", snap.Mode)
	}
	if snap.Notice != InitFailureNotice {
		t.Fatalf("expected notice, got %q", snap.Notice)
	}
	if !res.last().handle.Closed() {
		t.Fatalf("expected failed handle torn down")
	}
	want := []string{"awaiting_credential>live", "live>declined"}
	if len(transitions) != len(want) || transitions[0] != want[0] || transitions[1] != want[1] {
		t.Fatalf("unexpected transitions %v", transitions)
	}

	// A fresh submit clears the notice.
	if err := c.SubmitCredential("pk2"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if c.Snapshot().Notice != "" {
		t.Fatalf("expected notice cleared")
	}
}

func TestSubmitCredential_SynchronousInitError(t *testing.T) {
	res := &fakeResource{initErr: errors.New("no template")}
	c := newController(res, Options{})

	err := c.SubmitCredential("pk")
	if !errors.Is(err, ErrExternalResourceInit) {
		t.Fatalf("expected ErrExternalResourceInit, got %v", err)
	}
	snap := c.Snapshot()
	if snap.Mode != Declined || snap.Notice == "" {
		t.Fatalf("expected declined with notice, got %+v", snap)
	}
}

func TestSubmitCredential_ImmediateReadinessAnnouncesOnce(t *testing.T) {
	res := &fakeResource{immediate: &tiles.Readiness{}}
	readyCalls := 0
	c := newController(res, Options{Hooks: Hooks{OnReady: func() { readyCalls++ }}})

	if err := c.SubmitCredential("pk"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !c.Snapshot().Ready {
		t.Fatalf("expected ready")
	}
	if readyCalls != 1 {
		t.Fatalf("expected one ready hook, got %d", readyCalls)
	}
}

func TestSubmitCredential_WhileLiveReplacesHandle(t *testing.T) {
	res := &fakeResource{}
	c := newController(res, Options{})

	_ = c.SubmitCredential("a")
	first := res.last()
	_ = c.SubmitCredential("b")
	second := res.last()

	if !first.handle.Closed() {
		t.Fatalf("expected first handle torn down")
	}
	first.notify(tiles.Readiness{})
	if c.Snapshot().Ready {
		t.Fatalf("readiness of the replaced handle must be ignored")
	}
	second.notify(tiles.Readiness{})
	if !c.Snapshot().Ready {
		t.Fatalf("expected ready from current handle")
	}
}

func TestPushMarkersAndClicks(t *testing.T) {
	res := &fakeResource{}
	var clicked []geo.GeoPoint
	c := newController(res, Options{OnClick: func(p geo.GeoPoint) { clicked = append(clicked, p) }})

	if n, err := c.PushMarkers([]Placement{{Position: geo.DefaultCenter}}); n != 0 || err != nil {
		t.Fatalf("expected nothing pushed before live, got %d %v", n, err)
	}
	if err := c.ForwardClick(geo.DefaultCenter); !errors.Is(err, ErrNotLive) {
		t.Fatalf("expected ErrNotLive, got %v", err)
	}

	_ = c.SubmitCredential("pk")
	res.last().notify(tiles.Readiness{})

	n, err := c.PushMarkers([]Placement{
		{Position: geo.DefaultCenter, Style: tiles.Style{Color: "#ef4444"}},
		{Position: geo.GeoPoint{Lat: 28.63, Lng: 77.19}},
	})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 markers pushed, got %d %v", n, err)
	}
	// Pushing again replaces rather than appends.
	_, _ = c.PushMarkers([]Placement{{Position: geo.DefaultCenter}})
	if got := len(res.last().handle.Markers()); got != 1 {
		t.Fatalf("expected 1 marker on handle, got %d", got)
	}

	if err := c.ForwardClick(geo.GeoPoint{Lat: 28.62, Lng: 77.21}); err != nil {
		t.Fatalf("forward click: %v", err)
	}
	if _, err := c.ForwardPixelClick(400, 250); err != nil {
		t.Fatalf("forward pixel click: %v", err)
	}
	if len(clicked) != 2 {
		t.Fatalf("expected 2 clicks delivered, got %d", len(clicked))
	}
	if d := clicked[1].Lat - tiles.DefaultContainer.Center.Lat; d > 1e-9 || d < -1e-9 {
		t.Fatalf("centre pixel should resolve to the container centre, got %+v", clicked[1])
	}
}

func TestClose_TearsDownAndRejectsSubmit(t *testing.T) {
	res := &fakeResource{}
	c := newController(res, Options{})
	_ = c.SubmitCredential("pk")
	h := res.last().handle

	c.Close()
	c.Close()
	if !h.Closed() {
		t.Fatalf("expected handle closed")
	}
	if err := c.SubmitCredential("pk"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
