package app

import (
	"context"
	"errors"
	"fmt"

	"fii-monitor/aggregator"
	"fii-monitor/models"
	"fii-monitor/normalizer"
	"fii-monitor/observability"
	"fii-monitor/report"
)

const (
	hourLookbackLabel = "30 days"
	hourTop           = 5
)

// intradayChain is tried in order for the one-day window; the last step is a
// multi-day daily series and marks the answer degraded.
var intradayChain = []models.ChartQuery{
	{Range: models.Period1D, Interval: models.Interval5m, Timeout: quotesTimeout},
	{Range: models.Period1D, Interval: models.Interval1m, Timeout: quotesTimeout},
	{Range: models.Period1D, Interval: models.Interval1d, Timeout: quotesTimeout},
	{Range: models.Period5D, Interval: models.Interval1d, Timeout: quotesTimeout},
}

// series is a fetched bar series plus how it was obtained
type series struct {
	raw      *models.RawQuote
	query    models.ChartQuery
	degraded bool
}

// GetQuotes returns the bars and statistics of one window. An empty period
// means the default one year.
func (a *App) GetQuotes(ctx context.Context, ticker string, period models.Period) (report.QuotesView, error) {
	if period == "" {
		period = models.DefaultPeriod
	}
	if !period.IsValid() {
		return report.QuotesView{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	ticker = normalizer.CanonicalTicker(ticker)

	s, err := a.fetchWindow(ctx, ticker, period)
	if err != nil {
		return report.QuotesView{}, err
	}

	kind := models.WindowDaily
	if period.IsIntraday() && !s.degraded {
		kind = models.WindowIntraday
	}
	stats, err := aggregator.Aggregate(s.raw.Bars, kind)
	if err != nil {
		return report.QuotesView{}, models.NewUpstreamError(models.ErrNoData, ticker, describe(s.query), err)
	}

	return report.NewQuotesView(ticker, period, s.query.Interval, period.IsIntraday(), s.degraded, s.raw.Bars, stats), nil
}

func (a *App) fetchWindow(ctx context.Context, ticker string, period models.Period) (series, error) {
	if period.IsIntraday() {
		return a.fetchIntraday(ctx, ticker)
	}

	q := models.ChartQuery{Range: period, Interval: intervalFor(period), Timeout: quotesTimeout}
	raw, err := a.market.FetchChart(ctx, ticker, q)
	if err != nil {
		observability.WithTicker(ticker).Warn("quotes fetch failed", "params", describe(q), "error", err)
		return series{}, err
	}

	if period.IsShort() && aggregator.IsStale(raw.Bars, a.now(), raw.Loc()) {
		raw = a.mergeToday(ctx, ticker, raw)
	}
	return series{raw: raw, query: q}, nil
}

// fetchIntraday walks intradayChain until a step yields bars. Only an empty
// answer moves on to the next step.
func (a *App) fetchIntraday(ctx context.Context, ticker string) (series, error) {
	log := observability.WithTicker(ticker)
	metrics := observability.GetMetrics()

	var lastErr error
	for i, q := range intradayChain {
		raw, err := a.market.FetchChart(ctx, ticker, q)
		if err == nil && len(raw.Bars) > 0 {
			degraded := i == len(intradayChain)-1
			metrics.RecordFallback(string(q.Interval), degraded)
			if i > 0 {
				log.Info("intraday fallback used", "params", describe(q), "degraded", degraded)
			}
			return series{raw: raw, query: q, degraded: degraded}, nil
		}
		if err == nil {
			err = models.NewUpstreamError(models.ErrUpstreamUnavailable, ticker, describe(q), nil)
		}
		log.Debug("intraday step failed", "params", describe(q), "error", err)
		lastErr = err
		if !errors.Is(err, models.ErrUpstreamUnavailable) {
			break
		}
	}
	log.Warn("intraday chain exhausted", "error", lastErr)
	return series{}, lastErr
}

// mergeToday adds today's daily bar to a stale short window. Failures leave
// the base series untouched.
func (a *App) mergeToday(ctx context.Context, ticker string, base *models.RawQuote) *models.RawQuote {
	q := models.ChartQuery{Range: models.Period1D, Interval: models.Interval1d, Timeout: todayTimeout}
	today, err := a.market.FetchChart(ctx, ticker, q)
	if err != nil {
		observability.WithTicker(ticker).Warn("today merge failed", "params", describe(q), "error", err)
		return base
	}
	merged := *base
	merged.Bars = aggregator.MergeBars(base.Bars, today.Bars)
	return &merged
}

// intervalFor picks the bar granularity of a non-intraday period
func intervalFor(p models.Period) models.Interval {
	switch p {
	case models.Period5Y, models.Period10Y, models.PeriodMax:
		return models.Interval1mo
	default:
		return models.Interval1d
	}
}

// GetHourAnalysis groups a month of hourly bars by local hour of day
func (a *App) GetHourAnalysis(ctx context.Context, ticker string) (report.HourAnalysisView, error) {
	ticker = normalizer.CanonicalTicker(ticker)
	q := models.ChartQuery{Range: models.Period1Mo, Interval: models.Interval1h, Timeout: hourTimeout}

	raw, err := a.market.FetchChart(ctx, ticker, q)
	if err != nil {
		observability.WithTicker(ticker).Warn("hour analysis fetch failed", "params", describe(q), "error", err)
		return report.HourAnalysisView{}, err
	}

	buckets := aggregator.AggregateByHour(raw.Bars, raw.Loc())
	if len(buckets) == 0 {
		return report.HourAnalysisView{}, models.NewUpstreamError(models.ErrNoData, ticker, describe(q), nil)
	}
	view := report.NewHourAnalysisView(ticker, hourLookbackLabel, buckets, len(raw.Bars), hourTop)
	if stats, err := aggregator.Aggregate(raw.Bars, models.WindowHourly); err == nil {
		view.Statistics = report.NewStatisticsView(stats)
	}
	return view, nil
}
