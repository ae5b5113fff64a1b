package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/latchkeyhq/latchkey-core/internal/actuator"
	"github.com/latchkeyhq/latchkey-core/internal/mode"
	"github.com/latchkeyhq/latchkey-core/internal/registry"
)

// handleStatus returns a controller snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.controller.Status(r.Context())
	if err != nil {
		writeInternalError(w, "status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleListCards returns the registry listing.
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.controller.Cards(r.Context())
	if err != nil {
		writeInternalError(w, "registry unavailable")
		return
	}
	if cards == nil {
		cards = []registry.Card{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cards": cards,
		"count": len(cards),
	})
}

// enrollRequest is the body for POST /cards.
type enrollRequest struct {
	UID  string `json:"uid"`
	Mask uint8  `json:"mask"`
}

// handleEnrollCard adds a card administratively.
func (s *Server) handleEnrollCard(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	uid := registry.NormalizeUID(req.UID)
	if !registry.ValidUID(uid) {
		writeBadRequest(w, "uid must be 8-20 hexadecimal characters")
		return
	}

	err := s.controller.Enroll(r.Context(), uid, registry.Mask(req.Mask))
	switch {
	case errors.Is(err, registry.ErrRegistryFull):
		writeError(w, http.StatusConflict, ErrCodeConflict, "registry is at capacity")
	case errors.Is(err, registry.ErrInvalidUID):
		writeBadRequest(w, "uid must be 8-20 hexadecimal characters")
	case err != nil:
		writeInternalError(w, "enrollment failed")
	default:
		writeJSON(w, http.StatusCreated, map[string]any{
			"uid":  uid,
			"mask": req.Mask,
		})
	}
}

// handleUnenrollCard removes a card.
func (s *Server) handleUnenrollCard(w http.ResponseWriter, r *http.Request) {
	uid := registry.NormalizeUID(chi.URLParam(r, "uid"))

	err := s.controller.Unenroll(r.Context(), uid)
	switch {
	case errors.Is(err, registry.ErrCardNotFound):
		writeNotFound(w, "card not enrolled")
	case err != nil:
		writeInternalError(w, "removal failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleListEvents returns the audit history, most recent first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.controller.Events(r.Context())
	if err != nil {
		writeInternalError(w, "audit log unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// modeRequest is the body for PUT /mode.
type modeRequest struct {
	Mode string `json:"mode"`
}

// handleSetMode switches the controller mode.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	target, ok := mode.Parse(req.Mode)
	if !ok {
		writeBadRequest(w, `mode must be "normal", "enroll" or "unenroll"`)
		return
	}

	if err := s.controller.RequestMode(r.Context(), target); err != nil {
		writeInternalError(w, "mode request failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": target.String()})
}

// markRequest is the body for PUT /marks/{channel}.
type markRequest struct {
	Selected bool `json:"selected"`
}

// handleSetMark stages an enrollment channel selection.
func (s *Server) handleSetMark(w http.ResponseWriter, r *http.Request) {
	channel, err := strconv.Atoi(chi.URLParam(r, "channel"))
	if err != nil {
		writeBadRequest(w, "channel must be an integer")
		return
	}

	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	switch err := s.controller.SetMark(r.Context(), channel, req.Selected); {
	case errors.Is(err, actuator.ErrUnknownChannel):
		writeNotFound(w, "unknown channel")
	case err != nil:
		writeInternalError(w, "mark request failed")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"channel":  channel,
			"selected": req.Selected,
		})
	}
}

// channelRequest is the body for PUT /channels/{channel}.
type channelRequest struct {
	On bool `json:"on"`
}

// handleSetChannel toggles an output directly, bypassing access logic.
func (s *Server) handleSetChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := strconv.Atoi(chi.URLParam(r, "channel"))
	if err != nil {
		writeBadRequest(w, "channel must be an integer")
		return
	}

	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	switch err := s.controller.SetChannel(r.Context(), channel, req.On); {
	case errors.Is(err, actuator.ErrUnknownChannel):
		writeNotFound(w, "unknown channel")
	case err != nil:
		writeInternalError(w, "channel request failed")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"channel": channel,
			"on":      req.On,
		})
	}
}

// scanRequest is the body for POST /scan.
type scanRequest struct {
	UID string `json:"uid"`
}

// handleScan injects a card scan, for readers that push over HTTP.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	uid := registry.NormalizeUID(req.UID)
	if !registry.ValidUID(uid) {
		writeBadRequest(w, "uid must be 8-20 hexadecimal characters")
		return
	}

	if err := s.controller.Scan(r.Context(), uid); err != nil {
		writeInternalError(w, "scan injection failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"uid": uid})
}
