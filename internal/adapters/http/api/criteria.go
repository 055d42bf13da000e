package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/ecell/internal/domain/model"
)

type criteriaResponse struct {
	EventID  string            `json:"eventId"`
	Criteria []model.Criterion `json:"criteria"`
	Default  bool              `json:"default"`
}

// criteriaRequest keeps the list loosely typed so numbers sent as strings
// decode the same way stored documents do.
type criteriaRequest struct {
	Criteria []any `json:"criteria" validate:"required"`
}

// handleGetCriteria handles GET /events/{id}/criteria.
func (s *Server) handleGetCriteria(w http.ResponseWriter, r *http.Request) {
	const op = "api.criteria"
	id := r.PathValue("id")
	crit, isDefault, err := s.deps.Criteria(r.Context(), principal(r), id)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, criteriaResponse{EventID: id, Criteria: crit, Default: isDefault})
}

// handlePutCriteria handles PUT /events/{id}/criteria.
func (s *Server) handlePutCriteria(w http.ResponseWriter, r *http.Request) {
	const op = "api.criteria_save"
	var req criteriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErr(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	crit, err := model.DecodeCriteria(req.Criteria)
	if err != nil {
		writeErr(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	id := r.PathValue("id")
	saved, err := s.deps.SaveCriteria(r.Context(), principal(r), id, crit)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, criteriaResponse{EventID: id, Criteria: saved})
}
