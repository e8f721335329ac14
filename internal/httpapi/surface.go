package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"carbontwin/mapsurface/internal/geo"
	"carbontwin/mapsurface/internal/markers"
	"carbontwin/mapsurface/internal/mode"
	"carbontwin/mapsurface/internal/surface"
	"carbontwin/mapsurface/internal/tiles"
)

const maxSurfaceDimension = 4096

type clickRequest struct {
	X      *float64 `json:"x" validate:"required_without=Position"`
	Y      *float64 `json:"y" validate:"required_without=Position"`
	Width  float64  `json:"width" validate:"gte=0"`
	Height float64  `json:"height" validate:"gte=0"`
	// Position is a click the live map already resolved to a coordinate.
	Position *geo.GeoPoint `json:"position" validate:"omitempty"`
}

type placementRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (h *Handler) handleGetSurface(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.surface.Render())
}

func (h *Handler) handleGetSurfaceSVG(w http.ResponseWriter, r *http.Request) {
	width, err := dimensionParam(r, "width", tiles.DefaultContainer.Width)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid width", map[string]any{"width": r.URL.Query().Get("width")})
		return
	}
	height, err := dimensionParam(r, "height", tiles.DefaultContainer.Height)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid height", map[string]any{"height": r.URL.Query().Get("height")})
		return
	}

	var buf bytes.Buffer
	if err := h.surface.SVG(&buf, width, height); err != nil {
		h.log.Error().Err(err).Msg("render surface svg")
		h.writeError(w, http.StatusInternalServerError, "render_failed", "failed to render surface", nil)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func dimensionParam(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 || n > maxSurfaceDimension {
		return 0, surface.ErrInvalidSurfaceSize
	}
	return n, nil
}

// handlePutInputs replaces all three collections. The planner adopts the supplied
// interventions so later placements append to them.
func (h *Handler) handlePutInputs(w http.ResponseWriter, r *http.Request) {
	var in markers.Inputs
	if !h.decodeAndValidate(w, r, &in) {
		return
	}

	h.surface.SetInputs(in)
	h.planner.Restore(in.Interventions)

	h.writeJSON(w, http.StatusOK, h.surface.Render())
}

func (h *Handler) handleSurfaceClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	var (
		res surface.ClickResult
		err error
	)
	if req.Position != nil {
		res, err = h.surface.ClickGeo(*req.Position)
	} else {
		res, err = h.surface.Click(*req.X, *req.Y, req.Width, req.Height)
	}
	if err != nil {
		switch {
		case errors.Is(err, surface.ErrAwaitingCredential):
			h.writeError(w, http.StatusConflict, "awaiting_credential", "choose a map credential or the offline map first", nil)
		case errors.Is(err, mode.ErrNotLive):
			h.writeError(w, http.StatusConflict, "not_ready", "live map is not ready", nil)
		case errors.Is(err, surface.ErrInvalidSurfaceSize):
			h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		default:
			h.log.Error().Err(err).Msg("surface click")
			h.writeError(w, http.StatusInternalServerError, "internal", "failed to handle click", nil)
		}
		return
	}

	if res.Chosen {
		if _, ok := h.planner.Selected(); !ok {
			h.writeError(w, http.StatusConflict, "no_intervention_selected", "No Intervention Selected", map[string]any{"coordinate": res.Coordinate})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handlePutPlacement(w http.ResponseWriter, r *http.Request) {
	var req placementRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.surface.SetPlacement(*req.Enabled)
	resp := map[string]any{"placement": *req.Enabled}
	if *req.Enabled {
		resp["hint"] = surface.PlacementHint
	}
	h.writeJSON(w, http.StatusOK, resp)
}
