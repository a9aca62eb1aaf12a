package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/hotas-relay-core/internal/rebind"
)

// maxURLParamLen limits URL parameter length to prevent DoS via oversized params.
const maxURLParamLen = 100

// handleListMaps returns all stored rebind maps.
func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := s.repo.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list rebind maps")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"maps": maps, "count": len(maps)})
}

// handleCreateMap stores a new rebind map.
func (s *Server) handleCreateMap(w http.ResponseWriter, r *http.Request) {
	var m rebind.RebindMap
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if m.ID == "" {
		m.ID = rebind.GenerateID()
	}

	if err := rebind.ValidateMap(&m); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := s.repo.Create(r.Context(), &m); err != nil {
		if errors.Is(err, rebind.ErrDuplicateSlug) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create rebind map")
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// handleGetMap returns a single rebind map by ID.
//
// When the requested map is the active one, the in-memory copy is
// returned instead of the stored row so live transform state (trim
// bias, toggle latches) is visible without waiting for a save.
func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid map ID")
		return
	}

	if live, err := s.registry.Snapshot(); err == nil && live.ID == id {
		writeJSON(w, http.StatusOK, live)
		return
	}

	m, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, rebind.ErrNotFound) {
			writeNotFound(w, "rebind map not found")
			return
		}
		writeInternalError(w, "failed to get rebind map")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// handleUpdateMap replaces a rebind map wholesale.
//
// Edits are whole-map replacements rather than per-field patches so a
// reorder, mask change, and transform edit land as one atomic unit. If
// the edited map is currently active it is staged for the next tick
// boundary; the tick loop never sees a half-applied edit.
func (s *Server) handleUpdateMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid map ID")
		return
	}

	var m rebind.RebindMap
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	m.ID = id // the URL wins; the ID cannot be changed

	if err := rebind.ValidateMap(&m); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := s.repo.Update(r.Context(), &m); err != nil {
		if errors.Is(err, rebind.ErrNotFound) {
			writeNotFound(w, "rebind map not found")
			return
		}
		if errors.Is(err, rebind.ErrDuplicateSlug) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update rebind map")
		return
	}

	if active, err := s.registry.Snapshot(); err == nil && active.ID == id {
		if err := s.registry.Stage(&m); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
	}

	s.broadcastMapChanged(&m, "updated")
	writeJSON(w, http.StatusOK, m)
}

// handleDeleteMap removes a stored rebind map. The active map cannot be
// deleted while it is driving the tick loop.
func (s *Server) handleDeleteMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid map ID")
		return
	}

	if active, err := s.registry.Snapshot(); err == nil && active.ID == id {
		writeConflict(w, "cannot delete the active map; activate another map first")
		return
	}

	if err := s.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, rebind.ErrNotFound) {
			writeNotFound(w, "rebind map not found")
			return
		}
		writeInternalError(w, "failed to delete rebind map")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleActivateMap makes a stored map the active one. The swap happens
// at the next tick boundary.
func (s *Server) handleActivateMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid map ID")
		return
	}

	m, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, rebind.ErrNotFound) {
			writeNotFound(w, "rebind map not found")
			return
		}
		writeInternalError(w, "failed to get rebind map")
		return
	}

	if err := rebind.ValidateMap(m); err != nil {
		// Stored before validation tightened, or hand-edited DB.
		writeError(w, http.StatusConflict, ErrCodeValidation, "stored map fails validation: "+err.Error())
		return
	}

	if err := s.repo.SetActive(r.Context(), id); err != nil {
		writeInternalError(w, "failed to mark map active")
		return
	}
	if err := s.registry.Stage(m); err != nil {
		writeInternalError(w, "failed to stage map for the tick loop")
		return
	}

	s.broadcastMapChanged(m, "activated")
	writeJSON(w, http.StatusOK, map[string]any{
		"activated": m.ID,
		"slug":      m.Slug,
	})
}

// shiftModeResponse is the read shape for GET /shift-mode.
type shiftModeResponse struct {
	ShiftMode     uint8                 `json:"shift_mode"`
	ShiftControls []rebind.ShiftControl `json:"shift_controls"`
	MapID         string                `json:"map_id"`
	MapSlug       string                `json:"map_slug"`
}

// handleGetShiftMode returns the active map's base shift mask and its
// momentary shift controls.
func (s *Server) handleGetShiftMode(w http.ResponseWriter, r *http.Request) {
	m, err := s.registry.Snapshot()
	if err != nil {
		writeNotFound(w, "no active rebind map")
		return
	}
	writeJSON(w, http.StatusOK, shiftModeResponse{
		ShiftMode:     uint8(m.ShiftMode),
		ShiftControls: m.ShiftControls,
		MapID:         m.ID,
		MapSlug:       m.Slug,
	})
}

// shiftModeRequest is the write shape for PUT /shift-mode.
type shiftModeRequest struct {
	ShiftMode uint8 `json:"shift_mode"`
}

// handleSetShiftMode updates the active map's base shift mask.
//
// The edit goes through the same stage-and-persist path as a full map
// update, so the new mask applies at a tick boundary and survives a
// restart.
func (s *Server) handleSetShiftMode(w http.ResponseWriter, r *http.Request) {
	var req shiftModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	m, err := s.registry.Snapshot()
	if err != nil {
		writeNotFound(w, "no active rebind map")
		return
	}

	m.ShiftMode = rebind.ShiftMask(req.ShiftMode)
	if err := rebind.ValidateMap(m); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	// Persist first: if the write fails, the live engine keeps running
	// the mask the database still holds.
	if err := s.repo.Update(r.Context(), m); err != nil {
		writeInternalError(w, "failed to persist shift mode")
		return
	}
	if err := s.registry.Stage(m); err != nil {
		writeInternalError(w, "failed to stage shift mode")
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(ChannelShift, map[string]any{
			"shift_mode": req.ShiftMode,
			"map_slug":   m.Slug,
		})
	}
	writeJSON(w, http.StatusOK, shiftModeResponse{
		ShiftMode:     uint8(m.ShiftMode),
		ShiftControls: m.ShiftControls,
		MapID:         m.ID,
		MapSlug:       m.Slug,
	})
}

// handleStatus reports engine activity for dashboards and debugging.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if m, err := s.registry.Snapshot(); err == nil {
		resp["active_map"] = map[string]any{
			"id":      m.ID,
			"slug":    m.Slug,
			"name":    m.Name,
			"rebinds": m.RebindCount(),
		}
	} else {
		resp["active_map"] = nil
	}

	if s.status != nil {
		resp["ticks"] = s.status.Ticks()
		resp["faulted_rebinds"] = s.status.FaultedRebinds()
	}
	if s.hub != nil {
		resp["ws_clients"] = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, resp)
}

// broadcastMapChanged notifies WebSocket clients that a map was edited
// or activated.
func (s *Server) broadcastMapChanged(m *rebind.RebindMap, action string) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ChannelMap, map[string]any{
		"action": action,
		"id":     m.ID,
		"slug":   m.Slug,
	})
}
