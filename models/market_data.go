package models

import (
	"time"
	_ "time/tzdata"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Bar represents OHLCV price data for a time period
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Dividend is a single cash distribution paid by a fund
type Dividend struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// RawQuote is the per-ticker payload as delivered by the market-data provider.
// Every optional attribute is an explicit nullable; consumers decide the
// fallback order instead of probing types at the call site.
type RawQuote struct {
	Ticker             string
	LongName           null.String
	CurrentPrice       null.Float
	RegularMarketPrice null.Float
	PreviousClose      null.Float
	// ChangePercent is carried as reported but never used for day change.
	ChangePercent    null.Float
	DividendYield    null.Float
	PriceToBook      null.Float
	BookValue        null.Float
	FiftyTwoWeekHigh null.Float
	FiftyTwoWeekLow  null.Float
	Bars             []Bar
	Dividends        []Dividend
	// Location is the exchange timezone the bars were produced in.
	Location *time.Location
}

// Loc returns the quote's exchange timezone, defaulting to B3's.
func (q *RawQuote) Loc() *time.Location {
	if q.Location != nil {
		return q.Location
	}
	return MarketLocation()
}

// LastBar returns the most recent bar and whether one exists
func (q *RawQuote) LastBar() (Bar, bool) {
	if len(q.Bars) == 0 {
		return Bar{}, false
	}
	return q.Bars[len(q.Bars)-1], true
}

// MarketTimezone is the B3 exchange timezone
const MarketTimezone = "America/Sao_Paulo"

// MarketLocation loads the B3 timezone, falling back to a fixed UTC-3 zone
// when the tz database is unavailable.
func MarketLocation() *time.Location {
	loc, err := time.LoadLocation(MarketTimezone)
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// Period is a requested historical span
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1Mo Period = "1mo"
	Period3Mo Period = "3mo"
	Period6Mo Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	Period10Y Period = "10y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"
)

// DefaultPeriod is used when the caller does not choose one
const DefaultPeriod = Period1Y

// Periods lists every accepted period in ascending span order
var Periods = []Period{
	Period1D, Period5D, Period1Mo, Period3Mo, Period6Mo,
	Period1Y, Period2Y, Period5Y, Period10Y, PeriodYTD, PeriodMax,
}

// IsValid reports whether p is one of the accepted periods
func (p Period) IsValid() bool {
	for _, candidate := range Periods {
		if p == candidate {
			return true
		}
	}
	return false
}

// IsIntraday reports whether the period is served with sub-daily bars
func (p Period) IsIntraday() bool {
	return p == Period1D
}

// IsShort reports whether a stale series for this period gets today's bar merged in
func (p Period) IsShort() bool {
	return p == Period5D || p == Period1Mo || p == Period3Mo
}

// Interval is the bar granularity requested from the provider
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
	Interval1mo Interval = "1mo"
)

// ChartQuery selects the window, granularity and timeout of a provider call
type ChartQuery struct {
	Range    Period
	Interval Interval
	Timeout  time.Duration
}

// WindowKind tells the aggregator which kind of series it receives
type WindowKind string

const (
	WindowIntraday WindowKind = "intraday"
	WindowDaily    WindowKind = "daily"
	WindowHourly   WindowKind = "hourly"
)
