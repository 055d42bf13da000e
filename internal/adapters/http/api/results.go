package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/ecell/internal/adapters/export"
	"github.com/okian/ecell/internal/domain/auth"
	"github.com/okian/ecell/internal/domain/types"
)

// handleResults handles GET /events/{id}/results.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.results"
	res, err := s.deps.Results(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleResultsStream handles GET /events/{id}/results/stream as server-sent
// events. Every change to the event produces one "results" event; bursts
// may be collapsed into the latest snapshot.
func (s *Server) handleResultsStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.results_stream"
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, NewKind(op, ErrBadRequest))
		return
	}
	ctx := r.Context()

	updates := make(chan types.Results, 1)
	cancel, err := s.deps.WatchResults(ctx, principal(r), r.PathValue("id"), func(res types.Results) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- res:
		default:
		}
	})
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-updates:
			b, err := json.Marshal(res)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: results\ndata: %s\n\n", b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleResultsExport handles GET /events/{id}/results.xlsx.
func (s *Server) handleResultsExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.results_export"
	p := principal(r)
	if err := auth.RequireAdmin(p); err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	res, err := s.deps.Results(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	var buf bytes.Buffer
	if err := export.Results(&buf, res); err != nil {
		writeErr(w, WrapKind(op, ErrExport, err))
		return
	}
	writeSpreadsheet(w, "results_"+res.EventID, buf.Bytes())
}

func writeSpreadsheet(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(name)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
