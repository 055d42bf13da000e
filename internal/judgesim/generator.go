package judgesim

import (
	"crypto/rand"
	"math"
	"math/big"
	"strconv"

	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/internal/domain/types"
)

const randomFloatDivisor = 1000000

// getRandomFloat returns a random float64 in [0, 1) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// generateScores returns one cell per team and criterion, in team order.
// Values have one decimal and stay within each criterion's max score.
func generateScores(teams []types.SessionTeam, criteria []model.Criterion) []Cell {
	cells := make([]Cell, 0, len(teams)*len(criteria))
	for _, t := range teams {
		for _, c := range criteria {
			cells = append(cells, Cell{
				TeamID:      t.TeamID,
				CriterionID: c.ID,
				Value:       randomScore(c.MaxScore),
			})
		}
	}
	return cells
}

func randomScore(maxScore float64) float64 {
	return math.Round(getRandomFloat()*maxScore*scoreDecimals) / scoreDecimals
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
