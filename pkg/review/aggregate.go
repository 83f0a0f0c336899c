package review

import (
	"sort"

	"github.com/synod-ai/synod/pkg/models"
)

// Aggregate computes each model's mean received rank across the valid
// reviews. Reviews with ParseOK false contribute nothing. The result is
// ordered best first: ascending mean rank, ties broken by model id.
func Aggregate(reviews []models.ReviewResult) []models.AggregateRank {
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, rev := range reviews {
		if !rev.ParseOK {
			continue
		}
		for _, rk := range rev.Rankings {
			sums[rk.ModelID] += rk.Rank
			counts[rk.ModelID]++
		}
	}

	out := make([]models.AggregateRank, 0, len(sums))
	for id, sum := range sums {
		out = append(out, models.AggregateRank{
			ModelID:       id,
			MeanRank:      float64(sum) / float64(counts[id]),
			ReviewerCount: counts[id],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanRank != out[j].MeanRank {
			return out[i].MeanRank < out[j].MeanRank
		}
		return out[i].ModelID < out[j].ModelID
	})
	return out
}
