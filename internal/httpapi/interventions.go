package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carbontwin/mapsurface/internal/markers"
	"carbontwin/mapsurface/internal/planner"
	"carbontwin/mapsurface/internal/surface"
)

type selectTypeRequest struct {
	Type string `json:"type" validate:"max=64"`
}

func (h *Handler) handleSelectMarker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := h.surface.SelectMarker(id)
	if err != nil {
		if errors.Is(err, surface.ErrUnknownMarker) {
			h.writeError(w, http.StatusNotFound, "not_found", "marker not found", map[string]any{"id": id})
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("select marker")
		h.writeError(w, http.StatusInternalServerError, "internal", "failed to select marker", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, surface.SelectionView{Marker: m, Detail: markers.Describe(m)})
}

func (h *Handler) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	m, ok := h.surface.Selected()
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]any{"selection": nil})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"selection": surface.SelectionView{Marker: m, Detail: markers.Describe(m)},
	})
}

func (h *Handler) handleDismissSelection(w http.ResponseWriter, r *http.Request) {
	h.surface.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"types": h.planner.Catalog()}
	if t, ok := h.planner.Selected(); ok {
		resp["selected"] = t.ID
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleSelectInterventionType chooses the type used by the next placement. An empty type
// clears the choice.
func (h *Handler) handleSelectInterventionType(w http.ResponseWriter, r *http.Request) {
	var req selectTypeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	t, err := h.planner.SelectType(req.Type)
	if err != nil {
		if errors.Is(err, planner.ErrUnknownType) {
			h.writeError(w, http.StatusNotFound, "unknown_intervention_type", "intervention type not found", map[string]any{"type": req.Type})
			return
		}
		h.log.Error().Err(err).Msg("select intervention type")
		h.writeError(w, http.StatusInternalServerError, "internal", "failed to select intervention type", nil)
		return
	}
	if t.ID == "" {
		h.writeJSON(w, http.StatusOK, map[string]any{"selected": nil})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"selected": t})
}

func (h *Handler) handleListInterventions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"interventions": h.planner.List()})
}

func (h *Handler) handleRemoveIntervention(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.planner.Remove(r.Context(), id); err != nil {
		if errors.Is(err, planner.ErrUnknownIntervention) {
			h.writeError(w, http.StatusNotFound, "not_found", "intervention not found", map[string]any{"id": id})
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("remove intervention")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to remove intervention", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
