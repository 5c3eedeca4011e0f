package screener

import (
	"fii-monitor/models"

	"gonum.org/v1/gonum/stat"
)

// MarketStats is the headline breadth of a set of records
type MarketStats struct {
	Total         int     `json:"total"`
	Up            int     `json:"up"`
	Down          int     `json:"down"`
	Flat          int     `json:"flat"`
	MeanChangePct float64 `json:"mean_change_pct"`
}

// Breadth counts advancing, declining and flat records and averages their day change
func Breadth(records []models.NormalizedRecord) MarketStats {
	stats := MarketStats{Total: len(records)}
	if len(records) == 0 {
		return stats
	}

	changes := make([]float64, len(records))
	for i, r := range records {
		changes[i] = r.DayChangePct()
		switch {
		case r.IsUp():
			stats.Up++
		case r.IsDown():
			stats.Down++
		default:
			stats.Flat++
		}
	}
	stats.MeanChangePct = stat.Mean(changes, nil)
	return stats
}

// Share returns n as a percentage of the total, zero for an empty set
func (s MarketStats) Share(n int) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(n) / float64(s.Total) * 100
}
