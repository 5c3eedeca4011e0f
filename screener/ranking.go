// Package screener orders and classifies normalized FII records.
package screener

import (
	"slices"

	"fii-monitor/models"
)

// Ranking holds the day's movers
type Ranking struct {
	// Gainers have a positive day change, largest first
	Gainers []models.NormalizedRecord `json:"gainers"`
	// Losers have a negative day change, most negative first
	Losers []models.NormalizedRecord `json:"losers"`
}

// Rank splits records into gainers and losers. Flat records appear in neither.
// Ties keep input order.
func Rank(records []models.NormalizedRecord) Ranking {
	ranking := Ranking{
		Gainers: []models.NormalizedRecord{},
		Losers:  []models.NormalizedRecord{},
	}

	for _, r := range records {
		switch {
		case r.IsUp():
			ranking.Gainers = append(ranking.Gainers, r)
		case r.IsDown():
			ranking.Losers = append(ranking.Losers, r)
		}
	}

	slices.SortStableFunc(ranking.Gainers, func(a, b models.NormalizedRecord) int {
		return b.DayChange.Cmp(a.DayChange)
	})
	slices.SortStableFunc(ranking.Losers, func(a, b models.NormalizedRecord) int {
		return a.DayChange.Cmp(b.DayChange)
	})

	return ranking
}

// Top returns at most n records from the head of the slice
func Top(records []models.NormalizedRecord, n int) []models.NormalizedRecord {
	if n >= 0 && n < len(records) {
		return records[:n]
	}
	return records
}
