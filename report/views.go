// Package report renders normalized and aggregated FII data into API payloads
// and Telegram notification text.
package report

import (
	"time"

	"fii-monitor/aggregator"
	"fii-monitor/models"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// BarView is a single OHLCV bar in API responses
type BarView struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// RecordView is the API shape of a NormalizedRecord
type RecordView struct {
	Ticker            string     `json:"ticker"`
	Symbol            string     `json:"symbol"`
	DisplayName       string     `json:"display_name"`
	CurrentPrice      float64    `json:"current_price"`
	DayChangeFraction float64    `json:"day_change_fraction"`
	DayChangePct      float64    `json:"day_change_pct"`
	DividendYieldPct  float64    `json:"dividend_yield_pct"`
	PriceToBook       null.Float `json:"price_to_book"`
	DiscountPct       float64    `json:"discount_pct"`
	Volume            int64      `json:"volume"`
	VolumeDate        string     `json:"volume_date"`
	VolumeToday       bool       `json:"volume_today"`
	FiftyTwoWeekHigh  float64    `json:"fifty_two_week_high"`
	FiftyTwoWeekLow   float64    `json:"fifty_two_week_low"`
	History           []BarView  `json:"history"`
}

// BatchView is the response of the multi-ticker endpoint
type BatchView struct {
	FIIs      []RecordView `json:"fiis"`
	UpdatedAt time.Time    `json:"updated_at"`
	Total     int          `json:"total"`
}

// SearchView is the response of the existence check
type SearchView struct {
	Ticker      string `json:"ticker"`
	DisplayName string `json:"display_name"`
	Exists      bool   `json:"exists"`
}

// StatisticsView is the API shape of WindowStatistics
type StatisticsView struct {
	FirstClose    float64 `json:"first_close"`
	LastClose     float64 `json:"last_close"`
	MinLow        float64 `json:"min_low"`
	MaxHigh       float64 `json:"max_high"`
	MeanVolume    float64 `json:"mean_volume"`
	PercentChange float64 `json:"percent_change"`
	Count         int     `json:"count"`
}

// QuotesView is the response of the window quotes endpoint
type QuotesView struct {
	Ticker     string         `json:"ticker"`
	Period     models.Period  `json:"period"`
	Interval   string         `json:"interval"`
	Intraday   bool           `json:"intraday"`
	Degraded   bool           `json:"degraded"`
	Bars       []BarView      `json:"bars"`
	Statistics StatisticsView `json:"statistics"`
}

// HourView is the API shape of one hour bucket
type HourView struct {
	Hour       int     `json:"hour"`
	Label      string  `json:"label"`
	MeanClose  float64 `json:"mean_close"`
	MinClose   float64 `json:"min_close"`
	MaxClose   float64 `json:"max_close"`
	Count      int     `json:"count"`
	MeanVolume float64 `json:"mean_volume"`
}

// RecommendationView names the best buy and sell hour and their spread
type RecommendationView struct {
	BuyHour   *HourView `json:"buy_hour"`
	SellHour  *HourView `json:"sell_hour"`
	SpreadPct float64   `json:"spread_pct"`
}

// HourAnalysisView is the response of the hour-of-day analysis endpoint
type HourAnalysisView struct {
	Ticker           string             `json:"ticker"`
	Lookback         string             `json:"lookback"`
	TotalHours       int                `json:"total_hours"`
	TotalBars        int                `json:"total_bars"`
	OverallMeanPrice float64            `json:"overall_mean_price"`
	Hours            []HourView         `json:"hours"`
	BestBuyHours     []HourView         `json:"best_buy_hours"`
	BestSellHours    []HourView         `json:"best_sell_hours"`
	Recommendation   RecommendationView `json:"recommendation"`
	Statistics       StatisticsView     `json:"statistics"`
}

// DividendView is one distribution in API responses
type DividendView struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Kind   string  `json:"kind"`
}

// DividendStatisticsView is the API shape of DividendStatistics
type DividendStatisticsView struct {
	Total            float64 `json:"total"`
	Mean             float64 `json:"mean"`
	Max              float64 `json:"max"`
	Min              float64 `json:"min"`
	Count            int     `json:"count"`
	Total12M         float64 `json:"total_12m"`
	DividendYield12M float64 `json:"dividend_yield_12m"`
	CurrentPrice     float64 `json:"current_price"`
}

// DividendsView is the response of the distribution history endpoint
type DividendsView struct {
	Ticker           string                 `json:"ticker"`
	Dividends        []DividendView         `json:"dividends"`
	DividendYield12M float64                `json:"dividend_yield_12m"`
	Statistics       DividendStatisticsView `json:"statistics"`
	Message          string                 `json:"message,omitempty"`
}

// WindowSummaryView condenses one window inside the combined snapshot
type WindowSummaryView struct {
	PercentChange float64 `json:"percent_change"`
	Open          float64 `json:"open"`
	MaxHigh       float64 `json:"max_high"`
	MinLow        float64 `json:"min_low"`
	MeanVolume    float64 `json:"mean_volume"`
	Count         int     `json:"count"`
}

// DividendSummaryView condenses the trailing twelve months of distributions
type DividendSummaryView struct {
	Total12M         float64 `json:"total_12m"`
	Count12M         int     `json:"count_12m"`
	MonthlyMean      float64 `json:"monthly_mean"`
	DividendYieldPct float64 `json:"dividend_yield_pct"`
	LastAmount       float64 `json:"last_amount"`
	LastDate         *string `json:"last_date"`
}

// SummaryView is the combined snapshot of one fund
type SummaryView struct {
	Ticker           string              `json:"ticker"`
	DisplayName      string              `json:"display_name"`
	CurrentPrice     float64             `json:"current_price"`
	FiftyTwoWeekHigh float64             `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  float64             `json:"fifty_two_week_low"`
	Daily            WindowSummaryView   `json:"daily"`
	Monthly          WindowSummaryView   `json:"monthly"`
	Annual           WindowSummaryView   `json:"annual"`
	Dividends        DividendSummaryView `json:"dividends"`
}

// AnalysisView is the narrator's answer
type AnalysisView struct {
	Analysis  string    `json:"analysis"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
}

func f64(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// NewBarViews converts bars, never returning nil
func NewBarViews(bars []models.Bar) []BarView {
	views := make([]BarView, len(bars))
	for i, b := range bars {
		views[i] = BarView{
			Time:   b.Time,
			Open:   f64(b.Open),
			High:   f64(b.High),
			Low:    f64(b.Low),
			Close:  f64(b.Close),
			Volume: b.Volume,
		}
	}
	return views
}

// NewRecordView converts a record. History is included only when withHistory is set;
// otherwise it is an empty list.
func NewRecordView(r models.NormalizedRecord, withHistory bool) RecordView {
	history := []BarView{}
	if withHistory {
		history = NewBarViews(r.History)
	}
	return RecordView{
		Ticker:            r.Ticker,
		Symbol:            r.Symbol(),
		DisplayName:       r.DisplayName,
		CurrentPrice:      f64(r.CurrentPrice),
		DayChangeFraction: f64(r.DayChange),
		DayChangePct:      r.DayChangePct(),
		DividendYieldPct:  r.DividendYieldPct,
		PriceToBook:       r.PriceToBook,
		DiscountPct:       r.DiscountPct(),
		Volume:            r.Volume,
		VolumeDate:        r.VolumeLabel(),
		VolumeToday:       r.VolumeToday,
		FiftyTwoWeekHigh:  f64(r.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:   f64(r.FiftyTwoWeekLow),
		History:           history,
	}
}

// NewRecordViews converts records without history
func NewRecordViews(records []models.NormalizedRecord) []RecordView {
	views := make([]RecordView, len(records))
	for i, r := range records {
		views[i] = NewRecordView(r, false)
	}
	return views
}

// NewBatchView wraps the successfully normalized records of a batch request
func NewBatchView(records []models.NormalizedRecord, now time.Time) BatchView {
	return BatchView{
		FIIs:      NewRecordViews(records),
		UpdatedAt: now,
		Total:     len(records),
	}
}

// NewStatisticsView converts window statistics
func NewStatisticsView(s models.WindowStatistics) StatisticsView {
	return StatisticsView{
		FirstClose:    f64(s.FirstClose),
		LastClose:     f64(s.LastClose),
		MinLow:        f64(s.MinLow),
		MaxHigh:       f64(s.MaxHigh),
		MeanVolume:    s.MeanVolume,
		PercentChange: f64(s.PercentChange),
		Count:         s.Count,
	}
}

// NewQuotesView assembles a price-history answer. intraday reflects the
// requested period; degraded marks a fallback series.
func NewQuotesView(ticker string, period models.Period, interval models.Interval, intraday, degraded bool, bars []models.Bar, stats models.WindowStatistics) QuotesView {
	return QuotesView{
		Ticker:     ticker,
		Period:     period,
		Interval:   string(interval),
		Intraday:   intraday,
		Degraded:   degraded,
		Bars:       NewBarViews(bars),
		Statistics: NewStatisticsView(stats),
	}
}

// NewHourViews converts hour buckets, never returning nil
func NewHourViews(buckets []models.HourBucketStatistics) []HourView {
	views := make([]HourView, len(buckets))
	for i, b := range buckets {
		views[i] = HourView{
			Hour:       b.Hour,
			Label:      b.Label(),
			MeanClose:  f64(b.MeanClose),
			MinClose:   f64(b.MinClose),
			MaxClose:   f64(b.MaxClose),
			Count:      b.Count,
			MeanVolume: b.MeanVolume,
		}
	}
	return views
}

// NewHourAnalysisView assembles the hour-of-day report from the buckets of a
// lookback series holding totalBars bars.
func NewHourAnalysisView(ticker, lookback string, buckets []models.HourBucketStatistics, totalBars, top int) HourAnalysisView {
	buy, sell := aggregator.BestHours(buckets, top)
	view := HourAnalysisView{
		Ticker:           ticker,
		Lookback:         lookback,
		TotalHours:       len(buckets),
		TotalBars:        totalBars,
		OverallMeanPrice: f64(aggregator.OverallMean(buckets)),
		Hours:            NewHourViews(buckets),
		BestBuyHours:     NewHourViews(buy),
		BestSellHours:    NewHourViews(sell),
	}
	if len(view.BestBuyHours) > 0 {
		view.Recommendation.BuyHour = &view.BestBuyHours[0]
		view.Recommendation.SellHour = &view.BestSellHours[0]
		view.Recommendation.SpreadPct = f64(aggregator.Spread(buy, sell))
	}
	return view
}

// NewDividendsView assembles the distribution history of a fund priced at price
func NewDividendsView(ticker string, divs []models.Dividend, price decimal.Decimal, now time.Time) DividendsView {
	view := DividendsView{
		Ticker:    ticker,
		Dividends: make([]DividendView, len(divs)),
	}
	if len(divs) == 0 {
		view.Message = "no distributions found for this fund"
		return view
	}

	for i, d := range divs {
		view.Dividends[i] = DividendView{
			Date:   d.Date.Format(time.DateOnly),
			Amount: f64(d.Amount),
			Kind:   "income",
		}
	}

	stats := aggregator.SummarizeDividends(divs, now)
	yield := f64(aggregator.TrailingYield(stats.Total12M, price))
	view.DividendYield12M = yield
	view.Statistics = DividendStatisticsView{
		Total:            f64(stats.Total),
		Mean:             f64(stats.Mean),
		Max:              f64(stats.Max),
		Min:              f64(stats.Min),
		Count:            stats.Count,
		Total12M:         f64(stats.Total12M),
		DividendYield12M: yield,
		CurrentPrice:     f64(price),
	}
	return view
}

// NewWindowSummaryView condenses a window series and its statistics
func NewWindowSummaryView(bars []models.Bar, stats models.WindowStatistics) WindowSummaryView {
	view := WindowSummaryView{
		PercentChange: f64(stats.PercentChange),
		MaxHigh:       f64(stats.MaxHigh),
		MinLow:        f64(stats.MinLow),
		MeanVolume:    stats.MeanVolume,
		Count:         stats.Count,
	}
	if len(bars) > 0 {
		view.Open = f64(bars[0].Open)
	}
	return view
}

// NewDividendSummaryView condenses distribution statistics for the combined snapshot
func NewDividendSummaryView(stats models.DividendStatistics, dividendYieldPct float64) DividendSummaryView {
	view := DividendSummaryView{
		Total12M:         f64(stats.Total12M),
		Count12M:         stats.Count12M,
		MonthlyMean:      f64(stats.Mean12M),
		DividendYieldPct: dividendYieldPct,
		LastAmount:       f64(stats.LastAmount),
	}
	if !stats.LastDate.IsZero() {
		d := stats.LastDate.Format(time.DateOnly)
		view.LastDate = &d
	}
	return view
}
