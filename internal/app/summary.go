package app

import (
	"context"

	"fii-monitor/aggregator"
	"fii-monitor/models"
	"fii-monitor/normalizer"
	"fii-monitor/observability"
	"fii-monitor/report"

	"golang.org/x/sync/errgroup"
)

// GetDividends returns the full distribution history with trailing-year yield
func (a *App) GetDividends(ctx context.Context, ticker string) (report.DividendsView, error) {
	ticker = normalizer.CanonicalTicker(ticker)
	q := models.ChartQuery{Range: models.PeriodMax, Interval: models.Interval1mo, Timeout: quotesTimeout}

	raw, err := a.market.FetchChart(ctx, ticker, q)
	if err != nil {
		observability.WithTicker(ticker).Warn("dividends fetch failed", "params", describe(q), "error", err)
		return report.DividendsView{}, err
	}

	price, _ := normalizer.CurrentPrice(raw)
	return report.NewDividendsView(ticker, raw.Dividends, price, a.Now()), nil
}

// GetSummary combines the daily, monthly and annual windows with the
// trailing-year distributions. The three fetches run concurrently; any
// failure fails the snapshot.
func (a *App) GetSummary(ctx context.Context, ticker string) (report.SummaryView, error) {
	ticker = normalizer.CanonicalTicker(ticker)
	log := observability.WithTicker(ticker)

	var (
		annual  *models.RawQuote
		monthly *models.RawQuote
		daily   series
	)
	annualQuery := models.ChartQuery{Range: models.Period1Y, Interval: models.Interval1d, Timeout: quotesTimeout}
	monthlyQuery := models.ChartQuery{Range: models.Period1Mo, Interval: models.Interval1d, Timeout: quotesTimeout}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := a.market.FetchQuote(gctx, ticker, annualQuery)
		annual = raw
		return err
	})
	g.Go(func() error {
		raw, err := a.market.FetchChart(gctx, ticker, monthlyQuery)
		monthly = raw
		return err
	})
	g.Go(func() error {
		s, err := a.fetchIntraday(gctx, ticker)
		daily = s
		return err
	})
	if err := g.Wait(); err != nil {
		log.Warn("summary fetch failed", "error", err)
		return report.SummaryView{}, err
	}

	now := a.Now()
	record, err := normalizer.Normalize(annual, now)
	if err != nil {
		return report.SummaryView{}, err
	}

	annualStats, err := aggregator.Aggregate(annual.Bars, models.WindowDaily)
	if err != nil {
		return report.SummaryView{}, models.NewUpstreamError(models.ErrNoData, ticker, describe(annualQuery), err)
	}
	monthlyStats, err := aggregator.Aggregate(monthly.Bars, models.WindowDaily)
	if err != nil {
		return report.SummaryView{}, models.NewUpstreamError(models.ErrNoData, ticker, describe(monthlyQuery), err)
	}
	dailyKind := models.WindowIntraday
	if daily.degraded {
		dailyKind = models.WindowDaily
	}
	dailyStats, err := aggregator.Aggregate(daily.raw.Bars, dailyKind)
	if err != nil {
		return report.SummaryView{}, models.NewUpstreamError(models.ErrNoData, ticker, describe(daily.query), err)
	}

	// the day's move comes from the last two daily closes
	dailyView := report.NewWindowSummaryView(daily.raw.Bars, dailyStats)
	dailyView.PercentChange = record.DayChangePct()

	divStats := aggregator.SummarizeDividends(annual.Dividends, now)
	yieldPct := record.DividendYieldPct
	if divStats.Total12M.IsPositive() {
		yieldPct = aggregator.TrailingYield(divStats.Total12M, record.CurrentPrice).Shift(2).Round(2).InexactFloat64()
	}

	return report.SummaryView{
		Ticker:           ticker,
		DisplayName:      record.DisplayName,
		CurrentPrice:     record.CurrentPrice.InexactFloat64(),
		FiftyTwoWeekHigh: record.FiftyTwoWeekHigh.InexactFloat64(),
		FiftyTwoWeekLow:  record.FiftyTwoWeekLow.InexactFloat64(),
		Daily:            dailyView,
		Monthly:          report.NewWindowSummaryView(monthly.Bars, monthlyStats),
		Annual:           report.NewWindowSummaryView(annual.Bars, annualStats),
		Dividends:        report.NewDividendSummaryView(divStats, yieldPct),
	}, nil
}
