// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/okian/ecell/internal/domain/auth"
	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/internal/domain/types"
)

// Dependencies required by HTTP handlers. The judging engine satisfies it;
// handlers pass the request principal explicitly on every call.
type Dependencies interface {
	OpenSession(ctx context.Context, p auth.Principal, eventID string) (types.SessionView, error)
	SetScore(ctx context.Context, p auth.Principal, sessionID, teamID, criterionID, text string, commit bool) (types.ScoreUpdate, error)
	View(ctx context.Context, p auth.Principal, sessionID string) (types.SessionView, error)
	Save(ctx context.Context, p auth.Principal, sessionID string) (types.Results, error)
	Discard(ctx context.Context, p auth.Principal, sessionID string) error

	Results(ctx context.Context, p auth.Principal, eventID string) (types.Results, error)
	WatchResults(ctx context.Context, p auth.Principal, eventID string, fn func(types.Results)) (func(), error)

	Criteria(ctx context.Context, p auth.Principal, eventID string) ([]model.Criterion, bool, error)
	SaveCriteria(ctx context.Context, p auth.Principal, eventID string, criteria []model.Criterion) ([]model.Criterion, error)

	Registrations(ctx context.Context, p auth.Principal, eventID, status string) ([]model.Registration, error)
	UpdateRegistrationStatus(ctx context.Context, p auth.Principal, registrationID, status string) (model.Registration, error)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRateLimit caps the request rate across all routes. A non-positive
// rps disables limiting.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Server wires HTTP routes for the judging API.
type Server struct {
	deps    Dependencies
	authn   Authenticator
	limiter *rate.Limiter

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, authn Authenticator, opts ...ServerOption) *Server {
	s := &Server{
		deps:          deps,
		authn:         authn,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	s.public(mux, "GET /healthz", "healthz", s.healthHandler.HandleHealth)
	s.public(mux, "GET /metrics", "metrics", s.healthHandler.HandleMetrics)
	s.private(mux, "GET /stats", "stats", s.statsHandler.HandleStats)

	s.private(mux, "GET /events/{id}/results", "results", s.handleResults)
	s.private(mux, "GET /events/{id}/results/stream", "results_stream", s.handleResultsStream)
	s.private(mux, "GET /events/{id}/results.xlsx", "results_export", s.handleResultsExport)
	s.private(mux, "GET /events/{id}/criteria", "criteria", s.handleGetCriteria)
	s.private(mux, "PUT /events/{id}/criteria", "criteria_save", s.handlePutCriteria)
	s.private(mux, "GET /events/{id}/registrations", "registrations", s.handleRegistrations)
	s.private(mux, "GET /events/{id}/registrations.xlsx", "registrations_export", s.handleRegistrationsExport)
	s.private(mux, "PATCH /registrations/{id}", "registration_status", s.handlePatchRegistration)

	s.private(mux, "POST /events/{id}/sessions", "session_open", s.handleOpenSession)
	s.private(mux, "GET /sessions/{id}", "session_view", s.handleViewSession)
	s.private(mux, "DELETE /sessions/{id}", "session_discard", s.handleDiscardSession)
	s.private(mux, "PUT /sessions/{id}/scores/{team}/{criterion}", "session_score", s.handleSetScore)
	s.private(mux, "POST /sessions/{id}/save", "session_save", s.handleSaveSession)
}

func (s *Server) public(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, MetricsMiddleware(RateLimitMiddleware(h, s.limiter), endpoint))
}

func (s *Server) private(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	s.public(mux, pattern, endpoint, AuthMiddleware(h, s.authn))
}

// principal returns the caller resolved by AuthMiddleware. A zero
// principal is refused by the engine.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

var validate = validator.New()

// decodeBody decodes and validates a JSON request body.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeErr picks the status from the error's kind.
func writeErr(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
