// Package judging runs judging sessions over events: loading teams and
// criteria, collecting scores, saving the results array and serving ranked
// results. It also owns criteria authoring and registration review.
//
// Store failures never escape as raw errors: they are reported to the user
// through the Notifier and returned wrapped in ErrPersistence.
package judging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/ecell/internal/adapters/repository"
	"github.com/okian/ecell/internal/domain/auth"
	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/internal/domain/scoring"
	"github.com/okian/ecell/internal/domain/types"
	"github.com/okian/ecell/pkg/logger"
	"github.com/okian/ecell/pkg/metrics"
)

const sweepInterval = time.Minute

// Store is the part of the document store the engine uses.
type Store interface {
	Fetch(ctx context.Context, collection string, filters ...repository.Filter) ([]repository.Document, error)
	Get(ctx context.Context, collection, id string) (repository.Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]any, opts ...repository.UpdateOption) (repository.Document, error)
	Subscribe(ctx context.Context, collection string, filters []repository.Filter, fn func([]repository.Document)) (func(), error)
}

// Notifier delivers fire-and-forget user notifications.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, model.Notification) {}

// Engine is the judging service.
type Engine struct {
	store    Store
	notifier Notifier
	sessions *Registry
	log      logger.Logger

	defaults      []model.Criterion
	tolerance     float64
	lastWriteWins bool
	ttl           time.Duration
	now           func() time.Time
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		notifier:  discardNotifier{},
		log:       logger.Get().Named("judging"),
		tolerance: scoring.DefaultWeightTolerance,
		ttl:       4 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sessions = NewRegistry(e.ttl)
	return e
}

// Sessions exposes the session registry.
func (e *Engine) Sessions() *Registry { return e.sessions }

// RunSweeper discards idle sessions until ctx ends.
func (e *Engine) RunSweeper(ctx context.Context) {
	e.sessions.Run(ctx, sweepInterval, e.now, func(ids []string) {
		metrics.UpdateActiveSessions(e.sessions.Len())
		e.log.Info(ctx, "expired idle judging sessions", logger.Int("count", len(ids)))
	})
}

func (e *Engine) notify(ctx context.Context, p auth.Principal, eventID, level, msg string) {
	e.notifier.Notify(ctx, model.Notification{
		UserID:  p.UID,
		Level:   level,
		Message: msg,
		EventID: eventID,
	})
}

// persistence converts a store failure into a notification and ErrPersistence.
func (e *Engine) persistence(ctx context.Context, p auth.Principal, eventID, msg, op string, err error) error {
	metrics.RecordErrorByComponent("judging", op)
	e.log.Error(ctx, msg, logger.String("event", eventID), logger.String("op", op), logger.Error(err))
	e.notify(ctx, p, eventID, model.LevelError, msg)
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func requireUser(p auth.Principal) error {
	if p.UID == "" {
		return fmt.Errorf("%w: no principal", auth.ErrUnauthenticated)
	}
	return nil
}

func (e *Engine) criteriaFor(ev *model.Event) ([]model.Criterion, bool) {
	if ev.HasCriteria() {
		return ev.JudgingCriteria, false
	}
	return append([]model.Criterion(nil), e.defaults...), true
}

func (e *Engine) loadEvent(ctx context.Context, eventID string) (model.Event, error) {
	doc, err := e.store.Get(ctx, model.CollectionEvents, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
		}
		return model.Event{}, err
	}
	return model.DecodeEvent(doc.ID, doc.Version, doc.Data)
}

// loadTeams returns the registrations of an event in registration order.
// Rejected teams are not judged; malformed documents are skipped.
func (e *Engine) loadTeams(ctx context.Context, eventID string) ([]model.Registration, error) {
	docs, err := e.store.Fetch(ctx, model.CollectionRegistrations, repository.Where("eventId", eventID))
	if err != nil {
		return nil, err
	}
	teams := make([]model.Registration, 0, len(docs))
	for _, d := range docs {
		r, err := model.DecodeRegistration(d.ID, d.Data)
		if err != nil {
			e.log.Warn(ctx, "skipping malformed registration", logger.String("id", d.ID), logger.Error(err))
			continue
		}
		if r.Status == model.StatusRejected {
			continue
		}
		teams = append(teams, r)
	}
	return teams, nil
}

// load reads an event and its teams concurrently.
func (e *Engine) load(ctx context.Context, eventID string) (model.Event, []model.Registration, error) {
	var (
		ev    model.Event
		teams []model.Registration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ev, err = e.loadEvent(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = e.loadTeams(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Event{}, nil, err
	}
	return ev, teams, nil
}

// isStoreFailure separates transport failures from missing or malformed data.
func isStoreFailure(err error) bool {
	return !errors.Is(err, ErrEventNotFound) &&
		!errors.Is(err, model.ErrDecode) &&
		!errors.Is(err, model.ErrInvalidRecord)
}

// OpenSession starts a judging pass over an event. The session is seeded
// with every judged team and the raw scores already persisted for them.
func (e *Engine) OpenSession(ctx context.Context, p auth.Principal, eventID string) (types.SessionView, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return types.SessionView{}, err
	}
	ev, teams, err := e.load(ctx, eventID)
	if err != nil {
		if isStoreFailure(err) {
			return types.SessionView{}, e.persistence(ctx, p, eventID, msgLoadFailed, "open_session", err)
		}
		return types.SessionView{}, err
	}

	criteria, _ := e.criteriaFor(&ev)
	s := newSession(uuid.NewString(), p, &ev, criteria, teams, e.now())
	e.sessions.add(s)

	metrics.RecordSessionOpened()
	metrics.UpdateActiveSessions(e.sessions.Len())
	e.log.Info(ctx, "judging session opened",
		logger.String("session", s.id),
		logger.String("event", eventID),
		logger.String("judge", p.UID),
		logger.Int("teams", len(teams)),
		logger.Int64("version", ev.Version))
	return s.View(), nil
}

func (e *Engine) session(p auth.Principal, sessionID string) (*Session, error) {
	s, ok := e.sessions.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err := s.checkOwner(p); err != nil {
		return nil, err
	}
	return s, nil
}

// SetScore applies a change (commit unset) or a commit to one score cell.
func (e *Engine) SetScore(ctx context.Context, p auth.Principal, sessionID, teamID, criterionID, text string, commit bool) (types.ScoreUpdate, error) {
	s, err := e.session(p, sessionID)
	if err != nil {
		return types.ScoreUpdate{}, err
	}
	upd, err := s.SetScore(teamID, criterionID, text, commit, e.now())
	if err != nil {
		return types.ScoreUpdate{}, err
	}
	kind := "change"
	if commit {
		kind = "commit"
	}
	metrics.RecordScoreInput(kind, upd.Accepted)
	return upd, nil
}

// View returns a snapshot of a session.
func (e *Engine) View(ctx context.Context, p auth.Principal, sessionID string) (types.SessionView, error) {
	s, err := e.session(p, sessionID)
	if err != nil {
		return types.SessionView{}, err
	}
	s.touch(e.now())
	return s.View(), nil
}

// Save writes one result row per session team as a single replacement of
// the event's results array. Unless last-write-wins is configured, the
// write only succeeds if the event is still at the version the session
// was opened against. A successful save discards the session; a failed
// one keeps it for retry.
func (e *Engine) Save(ctx context.Context, p auth.Principal, sessionID string) (types.Results, error) {
	s, err := e.session(p, sessionID)
	if err != nil {
		return types.Results{}, err
	}
	start := time.Now()
	s.touch(e.now())

	rows := s.Results()
	value, err := model.Value(rows)
	if err != nil {
		return types.Results{}, err
	}
	var opts []repository.UpdateOption
	if !e.lastWriteWins {
		opts = append(opts, repository.IfVersion(s.baseVersion))
	}

	doc, err := e.store.Update(ctx, model.CollectionEvents, s.eventID, map[string]any{model.FieldScores: value}, opts...)
	elapsed := float64(time.Since(start).Milliseconds())
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		metrics.RecordSave(metrics.OutcomeConflict, len(rows), elapsed)
		e.log.Warn(ctx, "stale judging session save rejected",
			logger.String("session", s.id), logger.String("event", s.eventID), logger.Int64("base_version", s.baseVersion))
		e.notify(ctx, p, s.eventID, model.LevelError, msgScoresConflict)
		return types.Results{}, fmt.Errorf("%w: session %s opened at version %d", ErrConflict, s.id, s.baseVersion)
	case errors.Is(err, repository.ErrNotFound):
		metrics.RecordSave(metrics.OutcomeFailed, len(rows), elapsed)
		e.notify(ctx, p, s.eventID, model.LevelError, msgScoresSaveFailed)
		return types.Results{}, fmt.Errorf("%w: %s", ErrEventNotFound, s.eventID)
	case err != nil:
		metrics.RecordSave(metrics.OutcomeFailed, len(rows), elapsed)
		return types.Results{}, e.persistence(ctx, p, s.eventID, msgScoresSaveFailed, "save_scores", err)
	}

	e.sessions.remove(s.id)
	metrics.RecordSave(metrics.OutcomeSaved, len(rows), elapsed)
	metrics.UpdateActiveSessions(e.sessions.Len())
	e.notify(ctx, p, s.eventID, model.LevelSuccess, msgScoresSaved)
	e.log.Info(ctx, "scores saved",
		logger.String("session", s.id), logger.String("event", s.eventID),
		logger.Int("teams", len(rows)), logger.Int64("version", doc.Version))

	names := make(map[string]string, len(s.teams))
	for _, t := range s.teams {
		names[t.ID] = t.TeamName
	}
	return types.Results{
		EventID:   s.eventID,
		EventName: s.eventName,
		Version:   doc.Version,
		Criteria:  s.criteria,
		MaxTotal:  scoring.MaxTotal(s.criteria),
		Standings: standings(rows, names),
	}, nil
}

// Discard drops a session without persisting anything.
func (e *Engine) Discard(ctx context.Context, p auth.Principal, sessionID string) error {
	s, err := e.session(p, sessionID)
	if err != nil {
		return err
	}
	if !e.sessions.remove(s.id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	metrics.UpdateActiveSessions(e.sessions.Len())
	e.log.Debug(ctx, "judging session discarded", logger.String("session", s.id))
	return nil
}

func (e *Engine) results(ev *model.Event, teams []model.Registration) types.Results {
	names := make(map[string]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.TeamName
	}
	criteria, isDefault := e.criteriaFor(ev)
	return types.Results{
		EventID:         ev.ID,
		EventName:       ev.Name,
		Version:         ev.Version,
		Criteria:        criteria,
		DefaultCriteria: isDefault,
		MaxTotal:        scoring.MaxTotal(criteria),
		Standings:       standings(ev.Scores, names),
	}
}

// Results ranks the persisted results array of an event. Ranks are derived
// from the stored totals on every call.
func (e *Engine) Results(ctx context.Context, p auth.Principal, eventID string) (types.Results, error) {
	if err := requireUser(p); err != nil {
		return types.Results{}, err
	}
	ev, teams, err := e.load(ctx, eventID)
	if err != nil {
		if isStoreFailure(err) {
			return types.Results{}, e.persistence(ctx, p, eventID, msgLoadFailed, "results", err)
		}
		return types.Results{}, err
	}
	return e.results(&ev, teams), nil
}

// WatchResults calls fn with the ranked results now and after every change
// to the event. Team names are resolved once, when the watch starts; an
// unknown event fails with ErrEventNotFound.
func (e *Engine) WatchResults(ctx context.Context, p auth.Principal, eventID string, fn func(types.Results)) (func(), error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	_, teams, err := e.load(ctx, eventID)
	if err != nil {
		if isStoreFailure(err) {
			return nil, e.persistence(ctx, p, eventID, msgLoadFailed, "watch_results", err)
		}
		return nil, err
	}
	var lastVersion int64 = -1
	// Filters match document fields, so the event is picked out by id here.
	cancel, err := e.store.Subscribe(ctx, model.CollectionEvents, nil, func(docs []repository.Document) {
		for _, d := range docs {
			if d.ID != eventID || d.Version == lastVersion {
				continue
			}
			ev, err := model.DecodeEvent(d.ID, d.Version, d.Data)
			if err != nil {
				e.log.Warn(ctx, "skipping malformed event update", logger.String("event", d.ID), logger.Error(err))
				return
			}
			lastVersion = d.Version
			fn(e.results(&ev, teams))
			return
		}
	})
	if err != nil {
		return nil, e.persistence(ctx, p, eventID, msgLoadFailed, "watch_results", err)
	}
	return cancel, nil
}

// Criteria returns the criteria of an event, or the defaults when it has
// none; the flag reports which.
func (e *Engine) Criteria(ctx context.Context, p auth.Principal, eventID string) ([]model.Criterion, bool, error) {
	if err := requireUser(p); err != nil {
		return nil, false, err
	}
	ev, err := e.loadEvent(ctx, eventID)
	if err != nil {
		if isStoreFailure(err) {
			return nil, false, e.persistence(ctx, p, eventID, msgLoadFailed, "criteria", err)
		}
		return nil, false, err
	}
	c, isDefault := e.criteriaFor(&ev)
	return c, isDefault, nil
}

// SaveCriteria validates and stores an event's criteria list. A rejected
// list commits nothing. Sessions already open keep the criteria they were
// opened with; their next save conflicts because the event version moved.
func (e *Engine) SaveCriteria(ctx context.Context, p auth.Principal, eventID string, criteria []model.Criterion) ([]model.Criterion, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	criteria = model.NormalizeCriteria(criteria)
	if err := scoring.ValidateCriteria(criteria, e.tolerance); err != nil {
		metrics.RecordCriteriaRejected()
		e.notify(ctx, p, eventID, model.LevelError, criteriaMessage(criteria, e.tolerance))
		return nil, err
	}

	value, err := model.Value(criteria)
	if err != nil {
		return nil, err
	}
	_, err = e.store.Update(ctx, model.CollectionEvents, eventID, map[string]any{model.FieldJudgingCriteria: value})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		e.notify(ctx, p, eventID, model.LevelError, msgCriteriaSaveFailed)
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	case err != nil:
		return nil, e.persistence(ctx, p, eventID, msgCriteriaSaveFailed, "save_criteria", err)
	}

	metrics.RecordCriteriaSaved()
	e.notify(ctx, p, eventID, model.LevelSuccess, msgCriteriaSaved)
	e.log.Info(ctx, "judging criteria saved", logger.String("event", eventID), logger.Int("criteria", len(criteria)))
	return criteria, nil
}

// criteriaMessage picks the user-facing text for a rejected criteria list.
func criteriaMessage(criteria []model.Criterion, tolerance float64) string {
	for _, c := range criteria {
		if c.Name == "" {
			return msgCriteriaNames
		}
	}
	if len(criteria) > 0 && !scoring.WeightsSumToOne(criteria, tolerance) {
		return msgCriteriaWeights
	}
	return msgCriteriaInvalid
}

// Registrations lists the registrations of an event, optionally only those
// with the given status.
func (e *Engine) Registrations(ctx context.Context, p auth.Principal, eventID, status string) ([]model.Registration, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	filters := []repository.Filter{repository.Where("eventId", eventID)}
	if status != "" {
		if !model.ValidStatus(status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		filters = append(filters, repository.Where("status", status))
	}
	docs, err := e.store.Fetch(ctx, model.CollectionRegistrations, filters...)
	if err != nil {
		return nil, e.persistence(ctx, p, eventID, msgLoadFailed, "registrations", err)
	}
	out := make([]model.Registration, 0, len(docs))
	for _, d := range docs {
		r, err := model.DecodeRegistration(d.ID, d.Data)
		if err != nil {
			e.log.Warn(ctx, "skipping malformed registration", logger.String("id", d.ID), logger.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// UpdateRegistrationStatus moves a registration to pending, approved or rejected.
func (e *Engine) UpdateRegistrationStatus(ctx context.Context, p auth.Principal, registrationID, status string) (model.Registration, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return model.Registration{}, err
	}
	if !model.ValidStatus(status) {
		return model.Registration{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	doc, err := e.store.Update(ctx, model.CollectionRegistrations, registrationID, map[string]any{"status": status})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		e.notify(ctx, p, "", model.LevelError, msgStatusFailed)
		return model.Registration{}, fmt.Errorf("%w: %s", ErrRegistrationNotFound, registrationID)
	case err != nil:
		return model.Registration{}, e.persistence(ctx, p, "", msgStatusFailed, "update_registration", err)
	}
	r, err := model.DecodeRegistration(doc.ID, doc.Data)
	if err != nil {
		return model.Registration{}, err
	}
	e.notify(ctx, p, r.EventID, model.LevelSuccess, msgStatusUpdated(status))
	return r, nil
}
