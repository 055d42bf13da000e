package judgesim

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/internal/domain/scoring"
	"github.com/okian/ecell/internal/domain/types"
)

// ErrMismatch is returned when the service's ranking disagrees with the
// locally computed one.
var ErrMismatch = errors.New("results mismatch")

// expectedRanking recomputes totals from the submitted cells and ranks
// them. Team order follows the session, which is the persisted order.
func expectedRanking(teams []types.SessionTeam, criteria []model.Criterion, cells []Cell) []model.RankedResult {
	scores := make(map[string]map[string]float64, len(teams))
	for _, t := range teams {
		scores[t.TeamID] = map[string]float64{}
	}
	for _, c := range cells {
		scores[c.TeamID][c.CriterionID] = c.Value
	}
	rows := make([]model.TeamResult, len(teams))
	for i, t := range teams {
		rows[i] = scoring.Result(t.TeamID, criteria, scores[t.TeamID])
	}
	return scoring.Rank(rows)
}

// verifyResults checks that got ranks the same teams in the same order
// with the same totals.
func verifyResults(expected []model.RankedResult, got []types.Standing) error {
	if len(expected) != len(got) {
		return fmt.Errorf("%w: expected %d standings, got %d", ErrMismatch, len(expected), len(got))
	}
	for i, want := range expected {
		have := got[i]
		if have.Rank != want.Rank {
			return fmt.Errorf("%w: position %d has rank %d, want %d", ErrMismatch, i, have.Rank, want.Rank)
		}
		if math.Abs(have.TotalScore-want.TotalScore) > totalTolerance {
			return fmt.Errorf("%w: rank %d total %.4f, want %.4f", ErrMismatch, want.Rank, have.TotalScore, want.TotalScore)
		}
		if have.TeamID != want.TeamID {
			return fmt.Errorf("%w: rank %d is %s, want %s", ErrMismatch, want.Rank, have.TeamID, want.TeamID)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].TotalScore > got[i-1].TotalScore {
			return fmt.Errorf("%w: standings not sorted at rank %d", ErrMismatch, got[i].Rank)
		}
	}
	return nil
}
