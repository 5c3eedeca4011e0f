package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WindowStatistics summarizes a bar series over a requested window
type WindowStatistics struct {
	FirstClose decimal.Decimal `json:"first_close"`
	LastClose  decimal.Decimal `json:"last_close"`
	MinLow     decimal.Decimal `json:"min_low"`
	MaxHigh    decimal.Decimal `json:"max_high"`
	MeanVolume float64         `json:"mean_volume"`
	// PercentChange is (last - first) / first * 100; zero with fewer than two bars.
	PercentChange decimal.Decimal `json:"percent_change"`
	Count         int             `json:"count"`
}

// HourBucketStatistics aggregates every bar that closed within one local hour of day
type HourBucketStatistics struct {
	Hour       int             `json:"hour"`
	MeanClose  decimal.Decimal `json:"mean_close"`
	MinClose   decimal.Decimal `json:"min_close"`
	MaxClose   decimal.Decimal `json:"max_close"`
	Count      int             `json:"count"`
	MeanVolume float64         `json:"mean_volume"`
}

// Label renders the bucket hour as HH:00
func (h HourBucketStatistics) Label() string {
	return fmt.Sprintf("%02d:00", h.Hour)
}

// DividendStatistics summarizes a fund's distribution history
type DividendStatistics struct {
	Total      decimal.Decimal `json:"total"`
	Mean       decimal.Decimal `json:"mean"`
	Max        decimal.Decimal `json:"max"`
	Min        decimal.Decimal `json:"min"`
	Count      int             `json:"count"`
	Total12M   decimal.Decimal `json:"total_12m"`
	Count12M   int             `json:"count_12m"`
	Mean12M    decimal.Decimal `json:"mean_12m"`
	LastAmount decimal.Decimal `json:"last_amount"`
	// LastDate is zero when the fund never paid
	LastDate time.Time `json:"last_date"`
}
