package api

import (
	"errors"
	"net/http"

	"github.com/okian/ecell/internal/adapters/repository"
	"github.com/okian/ecell/internal/domain/auth"
	"github.com/okian/ecell/internal/domain/judging"
	"github.com/okian/ecell/internal/domain/scoring"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limited")
	ErrExport      = errors.New("export failed")
)

// Error tags an underlying error with the handler operation that saw it.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Kind != nil:
		return e.Op + ": " + e.Kind.Error()
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of the given kind.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap tags err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

type statusMapping struct {
	kind   error
	status int
	code   string
}

// statusMappings is checked in order; the first match wins.
var statusMappings = []statusMapping{
	{auth.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrForbidden, http.StatusForbidden, "forbidden"},
	{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{judging.ErrConflict, http.StatusConflict, "conflict"},
	{judging.ErrPersistence, http.StatusBadGateway, "store_unavailable"},
	{judging.ErrSessionNotFound, http.StatusNotFound, "not_found"},
	{judging.ErrEventNotFound, http.StatusNotFound, "not_found"},
	{judging.ErrRegistrationNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrNotFound, http.StatusNotFound, "not_found"},
	{scoring.ErrInvalidCriteria, http.StatusUnprocessableEntity, "invalid_criteria"},
	{judging.ErrUnknownTeam, http.StatusBadRequest, "bad_request"},
	{judging.ErrUnknownCriterion, http.StatusBadRequest, "bad_request"},
	{judging.ErrInvalidStatus, http.StatusBadRequest, "bad_request"},
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
}

// statusFor maps an error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	for _, m := range statusMappings {
		if errors.Is(err, m.kind) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
