// ABOUTME: Mean-position aggregation over peer rankings.
// ABOUTME: Labels never mentioned in any evaluation receive no entry.

package council

import (
	"math"
	"sort"
)

// CalculateAggregateRankings computes per-model mean ranking positions across
// all parsed peer evaluations. Positions are 1-based; labels absent from an
// evaluation contribute no vote there. The result is sorted best-first: mean
// ascending, then vote count descending, then model name ascending.
func CalculateAggregateRankings(stage2 []RankingRecord, labelToModel map[string]string) []AggregateEntry {
	positions := make(map[string][]int)

	for _, record := range stage2 {
		for i, label := range record.ParsedRanking {
			if model, ok := labelToModel[label]; ok {
				positions[model] = append(positions[model], i+1)
			}
		}
	}

	aggregate := make([]AggregateEntry, 0, len(positions))
	for model, ranks := range positions {
		sum := 0
		for _, rank := range ranks {
			sum += rank
		}
		mean := float64(sum) / float64(len(ranks))
		aggregate = append(aggregate, AggregateEntry{
			Model:       model,
			AverageRank: math.Round(mean*100) / 100,
			VoteCount:   len(ranks),
		})
	}

	sort.Slice(aggregate, func(i, j int) bool {
		if aggregate[i].AverageRank != aggregate[j].AverageRank {
			return aggregate[i].AverageRank < aggregate[j].AverageRank
		}
		if aggregate[i].VoteCount != aggregate[j].VoteCount {
			return aggregate[i].VoteCount > aggregate[j].VoteCount
		}
		return aggregate[i].Model < aggregate[j].Model
	})

	return aggregate
}
