package api

import (
	"bytes"
	"net/http"

	"github.com/okian/ecell/internal/adapters/export"
	"github.com/okian/ecell/internal/domain/model"
)

// registrationView adds the document id, which the stored shape omits.
type registrationView struct {
	ID string `json:"id"`
	model.Registration
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
}

func viewRegistrations(regs []model.Registration) []registrationView {
	out := make([]registrationView, len(regs))
	for i, r := range regs {
		out[i] = registrationView{ID: r.ID, Registration: r}
	}
	return out
}

// handleRegistrations handles GET /events/{id}/registrations?status=.
func (s *Server) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	const op = "api.registrations"
	regs, err := s.deps.Registrations(r.Context(), principal(r), r.PathValue("id"), r.URL.Query().Get("status"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, viewRegistrations(regs))
}

// handleRegistrationsExport handles GET /events/{id}/registrations.xlsx.
func (s *Server) handleRegistrationsExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.registrations_export"
	id := r.PathValue("id")
	regs, err := s.deps.Registrations(r.Context(), principal(r), id, r.URL.Query().Get("status"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	var buf bytes.Buffer
	if err := export.Registrations(&buf, regs); err != nil {
		writeErr(w, WrapKind(op, ErrExport, err))
		return
	}
	writeSpreadsheet(w, "registrations_"+id, buf.Bytes())
}

// handlePatchRegistration handles PATCH /registrations/{id}.
func (s *Server) handlePatchRegistration(w http.ResponseWriter, r *http.Request) {
	const op = "api.registration_status"
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	reg, err := s.deps.UpdateRegistrationStatus(r.Context(), principal(r), r.PathValue("id"), req.Status)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, registrationView{ID: reg.ID, Registration: reg})
}
