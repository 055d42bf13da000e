package api

import (
	"net/http"
)

// scoreRequest carries the raw text of a score cell. An empty value is a
// valid change: it clears the cell's text.
type scoreRequest struct {
	Value  string `json:"value" validate:"max=64"`
	Commit bool   `json:"commit"`
}

// handleOpenSession handles POST /events/{id}/sessions.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_open"
	view, err := s.deps.OpenSession(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/sessions/"+view.ID)
	writeJSON(w, http.StatusCreated, view)
}

// handleViewSession handles GET /sessions/{id}.
func (s *Server) handleViewSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_view"
	view, err := s.deps.View(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleDiscardSession handles DELETE /sessions/{id}.
func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_discard"
	if err := s.deps.Discard(r.Context(), principal(r), r.PathValue("id")); err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetScore handles PUT /sessions/{id}/scores/{team}/{criterion}.
func (s *Server) handleSetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_score"
	var req scoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	upd, err := s.deps.SetScore(r.Context(), principal(r),
		r.PathValue("id"), r.PathValue("team"), r.PathValue("criterion"), req.Value, req.Commit)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, upd)
}

// handleSaveSession handles POST /sessions/{id}/save.
func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_save"
	res, err := s.deps.Save(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
