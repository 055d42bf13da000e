// Package scoring holds the judging arithmetic: score input clamping,
// weighted totals, ordinal ranking and criteria authoring validation.
//
// Everything here is synchronous and free of I/O.
package scoring

import (
	"github.com/okian/ecell/internal/domain/model"
)

// Total computes Σ (scores[c.ID] or 0) * c.Weight over criteria.
// Weights are not re-normalized against MaxScore, so the natural scale of
// the total is Σ MaxScore*Weight. The value is returned unrounded.
func Total(criteria []model.Criterion, scores map[string]float64) float64 {
	total := 0.0
	for _, c := range criteria {
		total += scores[c.ID] * c.Weight
	}
	return total
}

// MaxTotal is the largest total the criteria can produce.
func MaxTotal(criteria []model.Criterion) float64 {
	total := 0.0
	for _, c := range criteria {
		total += c.MaxScore * c.Weight
	}
	return total
}

// Result builds the persisted row for one team. The scores map is copied.
func Result(teamID string, criteria []model.Criterion, scores map[string]float64) model.TeamResult {
	cp := make(map[string]float64, len(scores))
	for k, v := range scores {
		cp[k] = v
	}
	return model.TeamResult{
		TeamID:     teamID,
		Scores:     cp,
		TotalScore: Total(criteria, cp),
	}
}
