package httpapi

import (
	"errors"
	"net/http"

	"carbontwin/mapsurface/internal/mode"
	"carbontwin/mapsurface/internal/surface"
)

type credentialRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleGetMode(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.modeView())
}

// handleSubmitCredential answers 202: the tiles initialise in the background and readiness
// shows up on GET /mode.
func (h *Handler) handleSubmitCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.ctrl.SubmitCredential(req.Token); err != nil {
		switch {
		case errors.Is(err, mode.ErrInvalidCredential):
			h.writeError(w, http.StatusBadRequest, "invalid_credential", "credential must not be empty", nil)
		case errors.Is(err, mode.ErrExternalResourceInit):
			h.writeError(w, http.StatusBadGateway, "resource_init_failed", mode.InitFailureNotice, map[string]any{"mode": h.ctrl.Mode()})
		case errors.Is(err, mode.ErrClosed):
			h.writeError(w, http.StatusServiceUnavailable, "unavailable", "service is shutting down", nil)
		default:
			h.log.Error().Err(err).Msg("submit credential")
			h.writeError(w, http.StatusInternalServerError, "internal", "failed to submit credential", nil)
		}
		return
	}

	h.writeJSON(w, http.StatusAccepted, h.modeView())
}

func (h *Handler) handleDeclineCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.DeclineCredential(); err != nil {
		if errors.Is(err, mode.ErrIllegalTransition) {
			h.writeError(w, http.StatusConflict, "illegal_transition", "use /mode/fallback to leave the live map", map[string]any{"mode": h.ctrl.Mode()})
			return
		}
		h.log.Error().Err(err).Msg("decline credential")
		h.writeError(w, http.StatusInternalServerError, "internal", "failed to decline credential", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.modeView())
}

func (h *Handler) handleRevertToFallback(w http.ResponseWriter, r *http.Request) {
	h.ctrl.RevertToFallback()
	h.writeJSON(w, http.StatusOK, h.modeView())
}

type modeView struct {
	mode.Snapshot
	Prompt string `json:"prompt,omitempty"`
}

func (h *Handler) modeView() modeView {
	v := modeView{Snapshot: h.ctrl.Snapshot()}
	if v.Mode == mode.AwaitingCredential {
		v.Prompt = surface.CredentialPrompt
	}
	return v
}
