package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/ecell/internal/domain/model"
)

// DefaultWeightTolerance is how far a weight sum may drift from 1.0.
const DefaultWeightTolerance = 0.01

// sumEpsilon absorbs float error so a sum of exactly 1±tolerance is accepted.
const sumEpsilon = 1e-9

// ValidateCriteria is the authoring gate for a criteria list. It rejects
// empty names and weight sums further than tolerance from 1.0, plus the
// data model invariants: positive max scores, non-negative weights and
// unique ids. Every problem is reported in one *ValidationError.
func ValidateCriteria(criteria []model.Criterion, tolerance float64) error {
	if tolerance <= 0 {
		tolerance = DefaultWeightTolerance
	}
	var problems []string
	if len(criteria) == 0 {
		problems = append(problems, "at least one criterion is required")
	}

	seen := make(map[string]bool, len(criteria))
	sum := 0.0
	for i, c := range criteria {
		label := fmt.Sprintf("criterion %d", i+1)
		if strings.TrimSpace(c.Name) == "" {
			problems = append(problems, label+": name must not be empty")
		}
		if c.ID != "" {
			if seen[c.ID] {
				problems = append(problems, fmt.Sprintf("%s: duplicate id %q", label, c.ID))
			}
			seen[c.ID] = true
		}
		if !(c.MaxScore > 0) || math.IsInf(c.MaxScore, 0) {
			problems = append(problems, label+": maxScore must be a positive number")
		}
		if !(c.Weight >= 0) || math.IsInf(c.Weight, 0) {
			problems = append(problems, label+": weight must be a non-negative number")
		}
		sum += c.Weight
	}
	if len(criteria) > 0 && !weightSumOK(sum, tolerance) {
		problems = append(problems, fmt.Sprintf("weights must sum to 1.0 (got %.4g)", sum))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// WeightsSumToOne reports whether the weights of criteria sum to 1.0
// within tolerance.
func WeightsSumToOne(criteria []model.Criterion, tolerance float64) bool {
	if tolerance <= 0 {
		tolerance = DefaultWeightTolerance
	}
	sum := 0.0
	for _, c := range criteria {
		sum += c.Weight
	}
	return weightSumOK(sum, tolerance)
}

func weightSumOK(sum, tolerance float64) bool {
	return math.Abs(sum-1) <= tolerance+sumEpsilon
}
