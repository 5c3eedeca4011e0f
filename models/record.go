package models

import (
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// TickerSuffix is the B3 market suffix used by the data provider
const TickerSuffix = ".SA"

// NormalizedRecord is the cleaned, per-ticker view built from a RawQuote.
// It is a value type and is never modified after construction.
type NormalizedRecord struct {
	Ticker       string          `json:"ticker"`
	DisplayName  string          `json:"display_name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	// DayChange is (close_today - close_yesterday) / close_yesterday.
	DayChange        decimal.Decimal `json:"day_change_fraction"`
	DividendYieldPct float64         `json:"dividend_yield_pct"`
	PriceToBook      null.Float      `json:"price_to_book"`
	Volume           int64           `json:"volume"`
	// VolumeDate is the calendar date of Volume in the exchange timezone; zero when no bar traded.
	VolumeDate       time.Time       `json:"volume_date"`
	VolumeToday      bool            `json:"volume_today"`
	FiftyTwoWeekHigh decimal.Decimal `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  decimal.Decimal `json:"fifty_two_week_low"`
	History          []Bar           `json:"history"`
}

// Symbol returns the ticker without the market suffix
func (r NormalizedRecord) Symbol() string {
	return strings.TrimSuffix(r.Ticker, TickerSuffix)
}

// DayChangePct returns the day change as a percentage
func (r NormalizedRecord) DayChangePct() float64 {
	return r.DayChange.Shift(2).InexactFloat64()
}

// IsUp reports a positive day change
func (r NormalizedRecord) IsUp() bool {
	return r.DayChange.IsPositive()
}

// IsDown reports a negative day change
func (r NormalizedRecord) IsDown() bool {
	return r.DayChange.IsNegative()
}

// DiscountPct returns how far below book value the fund trades, in percent.
// Zero when P/VP is absent or at/above 1.
func (r NormalizedRecord) DiscountPct() float64 {
	if !r.PriceToBook.Valid || r.PriceToBook.Float64 >= 1 {
		return 0
	}
	return (1 - r.PriceToBook.Float64) * 100
}

// VolumeLabel renders the volume date as "today", dd/mm/yyyy or "no data"
func (r NormalizedRecord) VolumeLabel() string {
	switch {
	case r.VolumeToday:
		return "today"
	case r.VolumeDate.IsZero():
		return "no data"
	default:
		return r.VolumeDate.Format("02/01/2006")
	}
}
