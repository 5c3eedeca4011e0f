// Package aggregator reduces bar series into window, hour-of-day and
// dividend statistics.
package aggregator

import (
	"fmt"
	"math"
	"slices"
	"time"

	"fii-monitor/models"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

var hundred = decimal.NewFromInt(100)

// Aggregate computes WindowStatistics for an ordered bar series. The math is the
// same for every window kind; only the granularity of the input differs.
func Aggregate(bars []models.Bar, kind models.WindowKind) (models.WindowStatistics, error) {
	if len(bars) == 0 {
		return models.WindowStatistics{}, fmt.Errorf("aggregate %s window: %w", kind, models.ErrNoData)
	}

	first := bars[0].Close
	last := bars[len(bars)-1].Close
	minLow := bars[0].Low
	maxHigh := bars[0].High
	volumes := make([]float64, len(bars))

	for i, b := range bars {
		if b.Low.LessThan(minLow) {
			minLow = b.Low
		}
		if b.High.GreaterThan(maxHigh) {
			maxHigh = b.High
		}
		volumes[i] = float64(b.Volume)
	}

	return models.WindowStatistics{
		FirstClose:    first,
		LastClose:     last,
		MinLow:        minLow,
		MaxHigh:       maxHigh,
		MeanVolume:    stat.Mean(volumes, nil),
		PercentChange: PercentChange(first, last, len(bars)),
		Count:         len(bars),
	}, nil
}

// PercentChange returns (last - first) / first * 100, or zero when there are
// fewer than two bars or first is zero.
func PercentChange(first, last decimal.Decimal, count int) decimal.Decimal {
	if count < 2 || first.IsZero() {
		return decimal.Zero
	}
	return last.Sub(first).Div(first).Mul(hundred)
}

// AggregateByHour buckets bars by local hour of day, ignoring the date.
// Hours without observations are omitted. Prices and volumes are rounded to
// two places.
func AggregateByHour(bars []models.Bar, loc *time.Location) []models.HourBucketStatistics {
	if loc == nil {
		loc = models.MarketLocation()
	}

	var byHour [24][]models.Bar
	for _, b := range bars {
		h := b.Time.In(loc).Hour()
		byHour[h] = append(byHour[h], b)
	}

	buckets := make([]models.HourBucketStatistics, 0, 24)
	for hour, group := range byHour {
		if len(group) == 0 {
			continue
		}

		closes := make([]decimal.Decimal, len(group))
		volumes := make([]float64, len(group))
		for i, b := range group {
			closes[i] = b.Close
			volumes[i] = float64(b.Volume)
		}

		buckets = append(buckets, models.HourBucketStatistics{
			Hour:       hour,
			MeanClose:  decimal.Avg(closes[0], closes[1:]...).Round(2),
			MinClose:   decimal.Min(closes[0], closes[1:]...).Round(2),
			MaxClose:   decimal.Max(closes[0], closes[1:]...).Round(2),
			Count:      len(group),
			MeanVolume: round2(stat.Mean(volumes, nil)),
		})
	}
	return buckets
}

// BestHours ranks buckets by mean close: buy holds the n cheapest hours
// ascending, sell the n most expensive descending.
func BestHours(buckets []models.HourBucketStatistics, n int) (buy, sell []models.HourBucketStatistics) {
	sorted := slices.Clone(buckets)
	slices.SortStableFunc(sorted, func(a, b models.HourBucketStatistics) int {
		return a.MeanClose.Cmp(b.MeanClose)
	})

	k := min(n, len(sorted))
	buy = slices.Clone(sorted[:k])
	sell = slices.Clone(sorted[len(sorted)-k:])
	slices.Reverse(sell)
	return buy, sell
}

// Spread is the percent difference between the best sell and best buy hour,
// rounded to two places.
func Spread(buy, sell []models.HourBucketStatistics) decimal.Decimal {
	if len(buy) == 0 || len(sell) == 0 || buy[0].MeanClose.IsZero() {
		return decimal.Zero
	}
	return sell[0].MeanClose.Sub(buy[0].MeanClose).Div(buy[0].MeanClose).Mul(hundred).Round(2)
}

// OverallMean averages the per-hour mean closes
func OverallMean(buckets []models.HourBucketStatistics) decimal.Decimal {
	if len(buckets) == 0 {
		return decimal.Zero
	}
	means := make([]decimal.Decimal, len(buckets))
	for i, b := range buckets {
		means[i] = b.MeanClose
	}
	return decimal.Avg(means[0], means[1:]...).Round(2)
}

// MergeBars unions two series keyed by bar time. On collision the bar from base
// wins. The result is sorted by time and shares no backing array with the inputs.
func MergeBars(base, extra []models.Bar) []models.Bar {
	seen := make(map[int64]struct{}, len(base))
	merged := make([]models.Bar, 0, len(base)+len(extra))

	for _, b := range base {
		key := b.Time.UnixNano()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, b)
	}
	for _, b := range extra {
		if _, dup := seen[b.Time.UnixNano()]; dup {
			continue
		}
		seen[b.Time.UnixNano()] = struct{}{}
		merged = append(merged, b)
	}

	slices.SortStableFunc(merged, func(a, b models.Bar) int {
		return a.Time.Compare(b.Time)
	})
	return merged
}

// IsStale reports whether the series' last bar falls on an earlier calendar day
// than now, both taken in loc. An empty series is not stale.
func IsStale(bars []models.Bar, now time.Time, loc *time.Location) bool {
	if len(bars) == 0 {
		return false
	}
	if loc == nil {
		loc = models.MarketLocation()
	}
	ly, lm, ld := bars[len(bars)-1].Time.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	return time.Date(ly, lm, ld, 0, 0, 0, 0, loc).Before(time.Date(ny, nm, nd, 0, 0, 0, 0, loc))
}

// SummarizeDividends computes totals over the whole history and over the 365
// days preceding now.
func SummarizeDividends(divs []models.Dividend, now time.Time) models.DividendStatistics {
	stats := models.DividendStatistics{}
	if len(divs) == 0 {
		return stats
	}

	cutoff := now.AddDate(0, 0, -365)
	amounts := make([]decimal.Decimal, len(divs))
	var recent []decimal.Decimal
	last := divs[0]

	for i, d := range divs {
		amounts[i] = d.Amount
		if !d.Date.Before(cutoff) {
			recent = append(recent, d.Amount)
		}
		if d.Date.After(last.Date) {
			last = d
		}
	}

	stats.Total = decimal.Sum(amounts[0], amounts[1:]...)
	stats.Mean = decimal.Avg(amounts[0], amounts[1:]...)
	stats.Max = decimal.Max(amounts[0], amounts[1:]...)
	stats.Min = decimal.Min(amounts[0], amounts[1:]...)
	stats.Count = len(divs)
	stats.LastAmount = last.Amount
	stats.LastDate = last.Date

	if len(recent) > 0 {
		stats.Total12M = decimal.Sum(recent[0], recent[1:]...)
		stats.Mean12M = decimal.Avg(recent[0], recent[1:]...)
		stats.Count12M = len(recent)
	}
	return stats
}

// TrailingYield returns total12m / price as a fraction, or zero without a price
func TrailingYield(total12m, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return total12m.Div(price)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
