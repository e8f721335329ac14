package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"carbontwin/mapsurface/internal/db"
	"carbontwin/mapsurface/internal/metrics"
	"carbontwin/mapsurface/internal/mode"
	"carbontwin/mapsurface/internal/planner"
	"carbontwin/mapsurface/internal/surface"
)

// Deps are the components the API drives. Pool and Metrics may be nil.
type Deps struct {
	Pool       *db.Pool
	Surface    *surface.Surface
	Controller *mode.Controller
	Planner    *planner.Planner
	Metrics    *metrics.Metrics
}

type Handler struct {
	log      zerolog.Logger
	pool     *db.Pool
	surface  *surface.Surface
	ctrl     *mode.Controller
	planner  *planner.Planner
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func NewHandler(log zerolog.Logger, deps Deps) *Handler {
	return &Handler{
		log:      log,
		pool:     deps.Pool,
		surface:  deps.Surface,
		ctrl:     deps.Controller,
		planner:  deps.Planner,
		metrics:  deps.Metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestIDHeader)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Use(h.ensureCore)

			r.Get("/surface", h.handleGetSurface)
			r.Get("/surface.svg", h.handleGetSurfaceSVG)
			r.Put("/surface/inputs", h.handlePutInputs)
			r.Post("/surface/click", h.handleSurfaceClick)
			r.Put("/surface/placement", h.handlePutPlacement)

			r.Post("/credential", h.handleSubmitCredential)
			r.Post("/credential/decline", h.handleDeclineCredential)
			r.Get("/mode", h.handleGetMode)
			r.Post("/mode/fallback", h.handleRevertToFallback)

			r.Post("/markers/{id}/select", h.handleSelectMarker)
			r.Get("/selection", h.handleGetSelection)
			r.Delete("/selection", h.handleDismissSelection)

			r.Route("/interventions", func(r chi.Router) {
				r.Get("/", h.handleListInterventions)
				r.Get("/catalog", h.handleGetCatalog)
				r.Put("/selected", h.handleSelectInterventionType)
				r.Delete("/{id}", h.handleRemoveIntervention)
			})
		})
	})

	return r
}

func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Label metrics by route pattern so ids do not explode cardinality.
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

// ensureCore answers 503 when the handler was built without its core components.
func (h *Handler) ensureCore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.surface == nil || h.ctrl == nil || h.planner == nil {
			h.writeError(w, http.StatusServiceUnavailable, "unavailable", "surface not configured", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

// decodeAndValidate writes a validation_failed response and returns false on a bad body.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSONStrict(r, dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "request failed validation", map[string]any{"fields": validationDetails(err)})
		return false
	}
	return true
}

func validationDetails(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["body"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[fe.Namespace()] = fe.Tag()
	}
	return out
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleReadyZ reports ready without a database, since the store is optional.
func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.pool == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "database": "disabled"})
		return
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "database": "ok"})
}
