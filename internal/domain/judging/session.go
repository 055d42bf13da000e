package judging

import (
	"fmt"
	"sync"
	"time"

	"github.com/okian/ecell/internal/domain/auth"
	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/internal/domain/scoring"
	"github.com/okian/ecell/internal/domain/types"
)

// Session is the in-memory score mapping of one judging pass over an event.
// It belongs to the principal that opened it; HTTP handlers may still call
// it from several goroutines, so the mapping is guarded by mu.
type Session struct {
	id          string
	eventID     string
	eventName   string
	owner       auth.Principal
	baseVersion int64
	openedAt    time.Time

	criteria []model.Criterion
	byID     map[string]model.Criterion
	teams    []model.Registration
	teamIdx  map[string]int

	mu          sync.Mutex
	inputs      map[string]map[string]*scoring.ScoreInput
	lastTouched time.Time
}

// newSession seeds the mapping with raw scores already persisted for the
// session's teams. Persisted scores for unknown criteria are ignored.
func newSession(id string, owner auth.Principal, ev *model.Event, criteria []model.Criterion, teams []model.Registration, now time.Time) *Session {
	s := &Session{
		id:          id,
		eventID:     ev.ID,
		eventName:   ev.Name,
		owner:       owner,
		baseVersion: ev.Version,
		openedAt:    now,
		criteria:    criteria,
		byID:        make(map[string]model.Criterion, len(criteria)),
		teams:       teams,
		teamIdx:     make(map[string]int, len(teams)),
		inputs:      make(map[string]map[string]*scoring.ScoreInput, len(teams)),
		lastTouched: now,
	}
	for _, c := range criteria {
		s.byID[c.ID] = c
	}
	for i, t := range teams {
		s.teamIdx[t.ID] = i
		cells := make(map[string]*scoring.ScoreInput)
		if prev, ok := ev.ResultFor(t.ID); ok {
			for cid, v := range prev.Scores {
				if c, ok := s.byID[cid]; ok {
					cells[cid] = scoring.NewScoreInput(v, c.MaxScore)
				}
			}
		}
		s.inputs[t.ID] = cells
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// EventID returns the judged event.
func (s *Session) EventID() string { return s.eventID }

// Owner returns the principal that opened the session.
func (s *Session) Owner() auth.Principal { return s.owner }

// BaseVersion is the event version observed when the session was opened.
func (s *Session) BaseVersion() int64 { return s.baseVersion }

func (s *Session) checkOwner(p auth.Principal) error {
	if p.UID != s.owner.UID {
		return fmt.Errorf("%w: session %s belongs to %s", auth.ErrForbidden, s.id, s.owner.UID)
	}
	return nil
}

// SetScore applies one edit to a score cell. With commit unset the text is
// accepted only when in range; with commit set it is finalized and clamped.
// Later edits to the same cell overwrite earlier ones.
func (s *Session) SetScore(teamID, criterionID, text string, commit bool, now time.Time) (types.ScoreUpdate, error) {
	if _, ok := s.teamIdx[teamID]; !ok {
		return types.ScoreUpdate{}, fmt.Errorf("%w: %s", ErrUnknownTeam, teamID)
	}
	c, ok := s.byID[criterionID]
	if !ok {
		return types.ScoreUpdate{}, fmt.Errorf("%w: %s", ErrUnknownCriterion, criterionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = now

	cell, ok := s.inputs[teamID][criterionID]
	if !ok {
		cell = scoring.NewScoreInput(0, c.MaxScore)
		s.inputs[teamID][criterionID] = cell
	}
	accepted := cell.Change(text)
	if commit {
		cell.Commit()
		accepted = true
	}
	return types.ScoreUpdate{
		TeamID:      teamID,
		CriterionID: criterionID,
		Accepted:    accepted,
		Input:       inputView(cell),
		TotalScore:  scoring.Total(s.criteria, s.scoresLocked(teamID)),
	}, nil
}

// Results computes one row per session team from the accepted values.
func (s *Session) Results() []model.TeamResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultsLocked()
}

func (s *Session) resultsLocked() []model.TeamResult {
	rows := make([]model.TeamResult, len(s.teams))
	for i, t := range s.teams {
		rows[i] = scoring.Result(t.ID, s.criteria, s.scoresLocked(t.ID))
	}
	return rows
}

func (s *Session) scoresLocked(teamID string) map[string]float64 {
	cells := s.inputs[teamID]
	out := make(map[string]float64, len(cells))
	for cid, cell := range cells {
		out[cid] = cell.Value()
	}
	return out
}

// View snapshots the session with live totals and standings.
func (s *Session) View() types.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make(map[string]string, len(s.teams))
	teams := make([]types.SessionTeam, len(s.teams))
	for i, t := range s.teams {
		names[t.ID] = t.TeamName
		inputs := make(map[string]types.Input, len(s.inputs[t.ID]))
		for cid, cell := range s.inputs[t.ID] {
			inputs[cid] = inputView(cell)
		}
		teams[i] = types.SessionTeam{
			TeamID:     t.ID,
			TeamName:   t.TeamName,
			Inputs:     inputs,
			TotalScore: scoring.Total(s.criteria, s.scoresLocked(t.ID)),
		}
	}

	return types.SessionView{
		ID:          s.id,
		EventID:     s.eventID,
		EventName:   s.eventName,
		Owner:       s.owner.UID,
		BaseVersion: s.baseVersion,
		OpenedAt:    s.openedAt,
		Criteria:    append([]model.Criterion(nil), s.criteria...),
		Teams:       teams,
		Standings:   standings(s.resultsLocked(), names),
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastTouched = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTouched
}

func inputView(cell *scoring.ScoreInput) types.Input {
	return types.Input{Text: cell.Text(), Value: cell.Value(), MaxScore: cell.MaxScore()}
}

// standings ranks rows; names may be nil.
func standings(rows []model.TeamResult, names map[string]string) []types.Standing {
	ranked := scoring.Rank(rows)
	out := make([]types.Standing, len(ranked))
	for i, r := range ranked {
		scores := r.Scores
		if scores == nil {
			scores = map[string]float64{}
		}
		out[i] = types.Standing{
			Rank:       r.Rank,
			TeamID:     r.TeamID,
			TeamName:   names[r.TeamID],
			Scores:     scores,
			TotalScore: r.TotalScore,
		}
	}
	return out
}
