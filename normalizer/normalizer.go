// Package normalizer turns raw provider quotes into NormalizedRecord values.
//
// The provider is inconsistent for FIIs: dividend yield arrives as a fraction,
// a percentage or inflated 100x depending on the ticker, price-to-book is often
// missing or absurd, and the reported percent change is unreliable. Every
// function here is pure and never mutates its input.
package normalizer

import (
	"math"
	"slices"
	"strings"
	"time"

	"fii-monitor/models"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Dividend yield and price-to-book plausibility bounds for FIIs
const (
	MaxDividendYieldPct = 30.0
	MinPriceToBook      = 0.3
	MaxPriceToBook      = 3.0
)

var hundred = decimal.NewFromInt(100)

// CanonicalTicker upper-cases the ticker and appends the market suffix when absent.
// It is idempotent.
func CanonicalTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" || strings.HasSuffix(t, models.TickerSuffix) {
		return t
	}
	return t + models.TickerSuffix
}

// DisplayName returns the provider's long name, or the bare ticker when there is none
func DisplayName(raw *models.RawQuote) string {
	if raw.LongName.Valid {
		if name := strings.TrimSpace(raw.LongName.String); name != "" {
			return name
		}
	}
	return strings.TrimSuffix(CanonicalTicker(raw.Ticker), models.TickerSuffix)
}

// NormalizeDividendYield applies the staged scale correction:
//  1. above 100: divide by 100
//  2. above 1: already a percentage
//  3. in (0.01, 1]: a fraction, multiply by 100
//  4. outside [0, 30]: implausible, 0
func NormalizeDividendYield(raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}

	v := decimal.NewFromFloat(raw)
	if v.GreaterThan(hundred) {
		v = v.Div(hundred)
	}
	if !v.GreaterThan(decimal.NewFromInt(1)) && v.GreaterThan(decimal.RequireFromString("0.01")) {
		v = v.Mul(hundred)
	}

	out := v.InexactFloat64()
	if out < 0 || out > MaxDividendYieldPct {
		return 0
	}
	return out
}

// NormalizePriceToBook derives P/VP from book value when the provider omits it or
// reports zero, and discards values outside [0.3, 3.0].
func NormalizePriceToBook(reported null.Float, price decimal.Decimal, bookValue null.Float) null.Float {
	pvp := reported
	if !pvp.Valid || pvp.Float64 == 0 {
		pvp = null.Float{}
		if bookValue.Valid && bookValue.Float64 > 0 && !math.IsInf(bookValue.Float64, 0) {
			pvp = null.FloatFrom(price.Div(decimal.NewFromFloat(bookValue.Float64)).InexactFloat64())
		}
	}

	if !pvp.Valid || math.IsNaN(pvp.Float64) || pvp.Float64 < MinPriceToBook || pvp.Float64 > MaxPriceToBook {
		return null.Float{}
	}
	return pvp
}

// CurrentPrice walks the fallback chain: current price, regular market price,
// most recent close. ok is false only when none exists.
func CurrentPrice(raw *models.RawQuote) (price decimal.Decimal, ok bool) {
	for _, candidate := range []null.Float{raw.CurrentPrice, raw.RegularMarketPrice} {
		if candidate.Valid && candidate.Float64 > 0 && !math.IsInf(candidate.Float64, 0) {
			return decimal.NewFromFloat(candidate.Float64), true
		}
	}
	if bar, exists := raw.LastBar(); exists {
		return bar.Close, true
	}
	return decimal.Zero, false
}

// DayChange computes the fraction between the two most recent closes.
// Zero with fewer than two bars or a zero previous close.
func DayChange(bars []models.Bar) decimal.Decimal {
	if len(bars) < 2 {
		return decimal.Zero
	}
	today := bars[len(bars)-1].Close
	yesterday := bars[len(bars)-2].Close
	if yesterday.IsZero() {
		return decimal.Zero
	}
	return today.Sub(yesterday).Div(yesterday)
}

// LatestVolume scans newest-first and returns the first non-zero volume with its
// calendar date in loc, and whether that date is today in loc.
func LatestVolume(bars []models.Bar, now time.Time, loc *time.Location) (volume int64, date time.Time, today bool) {
	if loc == nil {
		loc = models.MarketLocation()
	}
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Volume <= 0 {
			continue
		}
		date = calendarDate(bars[i].Time, loc)
		return bars[i].Volume, date, date.Equal(calendarDate(now, loc))
	}
	return 0, time.Time{}, false
}

// Normalize builds a NormalizedRecord from a raw quote. It returns an error
// matching models.ErrNoData only when the quote has neither bars nor a price.
func Normalize(raw *models.RawQuote, now time.Time) (models.NormalizedRecord, error) {
	if raw == nil {
		return models.NormalizedRecord{}, models.ErrNoData
	}

	ticker := CanonicalTicker(raw.Ticker)
	price, ok := CurrentPrice(raw)
	if !ok {
		return models.NormalizedRecord{}, models.NewUpstreamError(models.ErrNoData, ticker, "normalize", nil)
	}

	history := slices.Clone(raw.Bars)
	if history == nil {
		history = []models.Bar{}
	}

	volume, volumeDate, volumeToday := LatestVolume(history, now, raw.Loc())
	high, low := fiftyTwoWeekRange(raw, history)

	dy := 0.0
	if raw.DividendYield.Valid {
		dy = NormalizeDividendYield(raw.DividendYield.Float64)
	}

	return models.NormalizedRecord{
		Ticker:           ticker,
		DisplayName:      DisplayName(raw),
		CurrentPrice:     price,
		DayChange:        DayChange(history),
		DividendYieldPct: dy,
		PriceToBook:      NormalizePriceToBook(raw.PriceToBook, price, raw.BookValue),
		Volume:           volume,
		VolumeDate:       volumeDate,
		VolumeToday:      volumeToday,
		FiftyTwoWeekHigh: high,
		FiftyTwoWeekLow:  low,
		History:          history,
	}, nil
}

func fiftyTwoWeekRange(raw *models.RawQuote, bars []models.Bar) (high, low decimal.Decimal) {
	if raw.FiftyTwoWeekHigh.Valid {
		high = decimal.NewFromFloat(raw.FiftyTwoWeekHigh.Float64)
	}
	if raw.FiftyTwoWeekLow.Valid {
		low = decimal.NewFromFloat(raw.FiftyTwoWeekLow.Float64)
	}
	for i, bar := range bars {
		if !raw.FiftyTwoWeekHigh.Valid && (i == 0 || bar.High.GreaterThan(high)) {
			high = bar.High
		}
		if !raw.FiftyTwoWeekLow.Valid && (i == 0 || bar.Low.LessThan(low)) {
			low = bar.Low
		}
	}
	return high, low
}

func calendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
