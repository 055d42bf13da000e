package scoring

import (
	"sort"

	"github.com/okian/ecell/internal/domain/model"
)

// Rank orders results by TotalScore descending and numbers them 1..N.
// Equal totals never share a rank: the stable sort keeps them in their input
// order, which for persisted results is the order of the results array.
// The input slice is not modified.
func Rank(results []model.TeamResult) []model.RankedResult {
	ranked := make([]model.RankedResult, len(results))
	for i, r := range results {
		ranked[i] = model.RankedResult{TeamResult: r}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
