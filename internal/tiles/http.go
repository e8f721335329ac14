package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"carbontwin/mapsurface/internal/geo"
)

// DefaultURLTemplate is a Mapbox raster tile endpoint; {token} is the user's credential.
const DefaultURLTemplate = "https://api.mapbox.com/styles/v1/mapbox/light-v11/tiles/256/{z}/{x}/{y}?access_token={token}"

// BackoffConfig controls exponential backoff between tile fetch attempts.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errInvalidConfig = errors.New("invalid backoff configuration")
	errNoTemplate    = errors.New("tile url template not configured")
)

type HTTPOptions struct {
	URLTemplate string
	Client      *http.Client
	Backoff     BackoffConfig
}

// HTTPResource is a raster tile provider reached over HTTP. A handle becomes ready once the
// tile under the viewport centre has been fetched.
type HTTPResource struct {
	log      zerolog.Logger
	template string
	client   *http.Client
	backoff  BackoffConfig
	circuit  *gobreaker.CircuitBreaker
	seq      atomic.Uint64
}

func NewHTTPResource(log zerolog.Logger, opts HTTPOptions) *HTTPResource {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	backoff := opts.Backoff
	if backoff.InitialInterval <= 0 {
		backoff.InitialInterval = 250 * time.Millisecond
	}
	if backoff.MaxInterval <= 0 {
		backoff.MaxInterval = 4 * time.Second
	}
	if backoff.MaxRetries < 0 {
		backoff.MaxRetries = 0
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         "tiles",
		MaxRequests:  3,
		Interval:     1 * time.Minute,
		Timeout:      30 * time.Second,
		IsSuccessful: breakerSuccess,
	})

	return &HTTPResource{
		log:      log.With().Str("component", "tiles").Logger(),
		template: strings.TrimSpace(opts.URLTemplate),
		client:   client,
		backoff:  backoff,
		circuit:  cb,
	}
}

// breakerSuccess keeps rejected credentials (4xx) from tripping the breaker; they say
// nothing about the provider's health.
func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, errUnexpected)
}

// Initialize returns immediately. The initial tile is fetched in the background and the
// outcome is reported through notify, unless the handle was torn down first.
func (r *HTTPResource) Initialize(ctx context.Context, c Container, credential string, notify func(Readiness)) (*Handle, error) {
	if r.template == "" {
		return nil, errNoTemplate
	}

	x, y := TileFor(c.Center, c.Zoom)
	url := TileURL(r.template, c.Zoom, x, y, credential)

	fetchCtx, cancel := context.WithCancel(ctx)
	h := NewHandle("tiles-"+strconv.FormatUint(r.seq.Add(1), 10), c, cancel)

	go func() {
		start := time.Now()
		err := r.fetch(fetchCtx, url)
		elapsed := time.Since(start)

		if fetchCtx.Err() != nil {
			r.log.Debug().Str("handle", h.ID()).Msg("tile initialisation abandoned")
			return
		}
		if err != nil {
			r.log.Warn().Err(err).Str("handle", h.ID()).Int("z", c.Zoom).Int("x", x).Int("y", y).Msg("tile initialisation failed")
		} else {
			r.log.Info().Str("handle", h.ID()).Int64("duration_ms", elapsed.Milliseconds()).Msg("tiles ready")
		}
		if notify != nil {
			notify(Readiness{Err: err, Elapsed: elapsed})
		}
	}()

	return h, nil
}

func (r *HTTPResource) Teardown(h *Handle) {
	if h == nil {
		return
	}
	h.Close()
}

func (r *HTTPResource) AddMarker(h *Handle, p geo.GeoPoint, s Style) (MarkerHandle, error) {
	if h == nil {
		return MarkerHandle{}, ErrHandleClosed
	}
	return h.AddMarker(p, s)
}

func (r *HTTPResource) AddClickListener(h *Handle, fn func(geo.GeoPoint)) error {
	if h == nil {
		return ErrHandleClosed
	}
	return h.AddClickListener(fn)
}

func (r *HTTPResource) fetch(ctx context.Context, url string) error {
	resp, err := r.doRequestWithResilience(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// doRequestWithResilience retries with exponential backoff behind a circuit breaker.
func (r *HTTPResource) doRequestWithResilience(ctx context.Context, buildRequest func() (*http.Request, error)) (*http.Response, error) {
	if r.backoff.MaxRetries < 0 || r.backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := r.circuit.Execute(func() (interface{}, error) {
			resp, execErr := r.client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
			return resp, nil
		})
		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		// A rejected credential will not get better by retrying.
		if errors.Is(err, errUnexpected) {
			return nil, err
		}
		if attempt >= r.backoff.MaxRetries {
			return nil, err
		}

		delay := r.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > r.backoff.MaxInterval && r.backoff.MaxInterval > 0 {
			delay = r.backoff.MaxInterval
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}
