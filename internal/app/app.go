package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fii-monitor/config"
	"fii-monitor/models"
	"fii-monitor/normalizer"
	"fii-monitor/observability"
	"fii-monitor/report"
	"fii-monitor/services"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrNarratorUnavailable is returned by Analyze when no AI credentials are configured
	ErrNarratorUnavailable = errors.New("AI narrator not configured")
	// ErrAnalysisBusy is returned when too many narrations are already in flight
	ErrAnalysisBusy = errors.New("analysis queue full, too many concurrent requests - try again later")
	// ErrInvalidPeriod is returned for a quotes period outside models.Periods
	ErrInvalidPeriod = errors.New("invalid period")
)

const (
	recordHistory      = models.Period3Mo
	batchHistory       = models.Period5D
	quotesTimeout      = 15 * time.Second
	todayTimeout       = 10 * time.Second
	hourTimeout        = 20 * time.Second
	searchRetryTimeout = 15 * time.Second
	analysisLimit      = 2
)

// App holds the collaborators every use case draws on
type App struct {
	cfg         *config.Config
	market      services.MarketDataSource
	narrator    services.Narrator
	researcher  services.Researcher
	now         func() time.Time
	analysisSem chan struct{}
}

// Option customizes an App
type Option func(*App)

// WithNarrator enables the AI market commentary
func WithNarrator(n services.Narrator) Option {
	return func(a *App) { a.narrator = n }
}

// WithResearcher enables public research lookups in the commentary prompt
func WithResearcher(r services.Researcher) Option {
	return func(a *App) { a.researcher = r }
}

// WithClock replaces time.Now (for testing)
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New creates a new App
func New(cfg *config.Config, market services.MarketDataSource, opts ...Option) *App {
	a := &App{
		cfg:         cfg,
		market:      market,
		now:         time.Now,
		analysisSem: make(chan struct{}, analysisLimit),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the configuration the app was built with
func (a *App) Config() *config.Config {
	return a.cfg
}

// HasNarrator reports whether Analyze can run
func (a *App) HasNarrator() bool {
	return a.narrator != nil
}

// Now returns the app clock's current time in the exchange timezone
func (a *App) Now() time.Time {
	return a.now().In(a.cfg.Market.Location())
}

// GetRecord fetches and normalizes one fund with three months of daily history
func (a *App) GetRecord(ctx context.Context, ticker string) (models.NormalizedRecord, error) {
	return a.fetchRecord(ctx, normalizer.CanonicalTicker(ticker), recordHistory)
}

// GetRecords normalizes each ticker with five days of history. Failed tickers
// are logged and skipped; the output keeps input order. Only cancellation of
// ctx is reported as an error.
func (a *App) GetRecords(ctx context.Context, tickers []string) ([]models.NormalizedRecord, error) {
	results := make([]*models.NormalizedRecord, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.cfg.Yahoo.Concurrency, 1))
	for i, t := range tickers {
		g.Go(func() error {
			rec, err := a.fetchRecord(gctx, normalizer.CanonicalTicker(t), batchHistory)
			if err != nil {
				return nil
			}
			results[i] = &rec
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]models.NormalizedRecord, 0, len(tickers))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}

// GetBatch is GetRecords wrapped for the batch endpoint
func (a *App) GetBatch(ctx context.Context, tickers []string) (report.BatchView, error) {
	records, err := a.GetRecords(ctx, tickers)
	if err != nil {
		return report.BatchView{}, err
	}
	return report.NewBatchView(records, a.Now()), nil
}

func (a *App) fetchRecord(ctx context.Context, ticker string, period models.Period) (models.NormalizedRecord, error) {
	metrics := observability.GetMetrics()
	log := observability.WithTicker(ticker)

	raw, err := a.market.FetchQuote(ctx, ticker, models.ChartQuery{Range: period, Interval: models.Interval1d})
	if err != nil {
		metrics.RecordNormalize("fetch_error")
		log.Warn("fetch failed", "params", string(period)+"/1d", "error", err)
		return models.NormalizedRecord{}, err
	}

	rec, err := normalizer.Normalize(raw, a.Now())
	if err != nil {
		metrics.RecordNormalize("no_data")
		log.Warn("normalize failed", "error", err)
		return models.NormalizedRecord{}, err
	}
	metrics.RecordNormalize("ok")
	return rec, nil
}

// Search checks that a ticker has data, widening the window 5d, 1mo, 3mo.
// Any failure other than an empty answer earns one retry over the full history
// with a longer timeout after a short pause.
func (a *App) Search(ctx context.Context, query string) (report.SearchView, error) {
	ticker := normalizer.CanonicalTicker(query)
	log := observability.WithTicker(ticker)

	var found *models.RawQuote
	retry := services.SearchRetryConfig
	retry.Retryable = func(err error) bool { return !errors.Is(err, models.ErrUpstreamUnavailable) }

	err := services.WithRetryAttempt(ctx, retry, func(attempt int) error {
		if attempt > 0 {
			log.Info("search retry over full history")
			raw, err := a.market.FetchChart(ctx, ticker, models.ChartQuery{
				Range: models.PeriodMax, Interval: models.Interval1d, Timeout: searchRetryTimeout,
			})
			if err != nil {
				return err
			}
			found = raw
			return nil
		}

		for _, p := range []models.Period{models.Period5D, models.Period1Mo, models.Period3Mo} {
			raw, err := a.market.FetchChart(ctx, ticker, models.ChartQuery{Range: p, Interval: models.Interval1d})
			switch {
			case err == nil:
				found = raw
				return nil
			case errors.Is(err, models.ErrUpstreamUnavailable):
				log.Debug("no data in window, widening", "period", p)
				continue
			default:
				return err
			}
		}
		return models.NewUpstreamError(models.ErrUpstreamUnavailable, ticker, "5d,1mo,3mo", nil)
	})
	if err != nil {
		log.Warn("search failed", "error", err)
		if errors.Is(err, models.ErrUpstreamUnavailable) || errors.Is(err, models.ErrUpstreamTimeout) ||
			errors.Is(err, context.Canceled) {
			return report.SearchView{}, err
		}
		return report.SearchView{}, models.NewUpstreamError(models.ErrUpstreamUnavailable, ticker, "max", err)
	}

	return report.SearchView{
		Ticker:      ticker,
		DisplayName: normalizer.DisplayName(found),
		Exists:      true,
	}, nil
}

func describe(q models.ChartQuery) string {
	return fmt.Sprintf("%s/%s", q.Range, q.Interval)
}
