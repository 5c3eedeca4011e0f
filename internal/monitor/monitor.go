// Package monitor runs the periodic watchlist summary: fetch, normalize,
// rank and push to the chat, gated by trading hours.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"fii-monitor/config"
	"fii-monitor/models"
	"fii-monitor/normalizer"
	"fii-monitor/observability"
	"fii-monitor/report"
	"fii-monitor/screener"
	"fii-monitor/services"
)

// Skip reasons recorded on a MonitorRun
const (
	SkipOutsideHours = "outside trading hours"
	SkipBusy         = "previous run still in progress"
)

// ErrNoRecords fails a run in which no ticker could be normalized
var ErrNoRecords = errors.New("no fund could be normalized")

// RecordSource normalizes a list of tickers, skipping failures
type RecordSource interface {
	GetRecords(ctx context.Context, tickers []string) ([]models.NormalizedRecord, error)
}

// Monitor pushes market summaries for the watchlist
type Monitor struct {
	cfg       *config.Config
	records   RecordSource
	notifier  services.Notifier
	hours     TradingHours
	now       func() time.Time
	skipHours bool

	running sync.Mutex
	mu      sync.RWMutex
	lastRun *models.MonitorRun
}

// Option customizes a Monitor
type Option func(*Monitor)

// WithClock replaces time.Now (for testing)
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithSkipHours disables the trading-hours gate
func WithSkipHours(skip bool) Option {
	return func(m *Monitor) { m.skipHours = skip }
}

// New creates a new Monitor
func New(cfg *config.Config, records RecordSource, notifier services.Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		records:  records,
		notifier: notifier,
		hours:    NewTradingHours(cfg.Market),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LastRun returns the most recent run, or nil before the first tick
func (m *Monitor) LastRun() *models.MonitorRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRun
}

// Announce checks the bot token and sends the start-up greeting
func (m *Monitor) Announce(ctx context.Context) error {
	info, err := m.notifier.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram connection test failed: %w", err)
	}
	observability.Info("telegram bot connected", "username", info.Username, "bot_id", info.ID)

	if !m.deliver(ctx, "connected", report.FormatConnected(m.cfg.Monitor.IntervalMinutes)) {
		return errors.New("failed to send start-up message")
	}
	return nil
}

// Tick runs the pipeline when the market is open. Overlapping ticks are skipped.
func (m *Monitor) Tick(ctx context.Context) *models.MonitorRun {
	now := m.now()
	if !m.skipHours && !m.hours.Open(now) {
		run := models.NewMonitorRun(m.cfg.Watchlist, now)
		run.Skip(SkipOutsideHours)
		observability.Debug("monitor tick skipped", "reason", SkipOutsideHours, "at", now.In(m.hours.Location).Format(time.DateTime))
		observability.GetMetrics().RecordMonitorRun(string(run.Status), 0, 0)
		return run
	}
	return m.RunOnce(ctx)
}

// RunOnce fetches the watchlist and pushes the summary regardless of the clock
func (m *Monitor) RunOnce(ctx context.Context) *models.MonitorRun {
	now := m.now()
	run := models.NewMonitorRun(m.cfg.Watchlist, now)

	if !m.running.TryLock() {
		run.Skip(SkipBusy)
		observability.Warn("monitor run skipped", "reason", SkipBusy)
		return run
	}
	defer m.running.Unlock()

	runID := run.ID.String()
	ctx = observability.ContextWithRun(ctx, runID)
	log := observability.WithRun(runID)
	metrics := observability.GetMetrics()
	start := time.Now()

	log.Info("monitor run started", "tickers", len(m.cfg.Watchlist))

	records, err := m.records.GetRecords(ctx, m.cfg.Watchlist)
	if err == nil && len(records) == 0 {
		err = ErrNoRecords
	}
	if err != nil {
		run.Fail(err.Error(), time.Since(start).Milliseconds())
		log.Error("monitor run failed", "error", err)
		metrics.RecordMonitorRun(string(run.Status), 0, time.Since(start))
		m.remember(run)
		return run
	}
	run.Records = records
	run.Failed = missingTickers(m.cfg.Watchlist, records)
	if len(run.Failed) > 0 {
		log.Warn("some funds could not be fetched", "failed", run.Failed)
	}

	text := report.FormatSummary(report.SummaryInput{
		Records:           records,
		Now:               now.In(m.hours.Location),
		DiscountThreshold: m.cfg.Alerts.DiscountPVP,
		IntervalMinutes:   m.cfg.Monitor.IntervalMinutes,
		DashboardURL:      m.cfg.Monitor.DashboardURL,
	})
	delivered := m.deliver(ctx, "summary", text)

	if m.cfg.Monitor.FundAlerts {
		run.Alerts = m.sendAlerts(ctx, records, now)
	}

	run.Complete(time.Since(start).Milliseconds(), delivered)
	metrics.RecordMonitorRun(string(run.Status), len(records), time.Since(start))
	log.Info("monitor run completed",
		"records", len(records),
		"failed", len(run.Failed),
		"delivered", delivered,
		"alerts", run.Alerts,
		"duration_ms", run.DurationMs)

	m.remember(run)
	return run
}

// sendAlerts pushes one message per threshold crossing and returns how many were delivered
func (m *Monitor) sendAlerts(ctx context.Context, records []models.NormalizedRecord, now time.Time) int {
	alerts := screener.Alerts(records, screener.AlertThresholds{
		HighPct:     m.cfg.Alerts.HighPct,
		LowPct:      m.cfg.Alerts.LowPct,
		DiscountPVP: m.cfg.Alerts.DiscountPVP,
	})

	sent := 0
	for _, a := range alerts {
		if m.deliver(ctx, "alert_"+string(a.Kind), report.FormatFundAlert(a, now.In(m.hours.Location))) {
			sent++
		}
	}
	return sent
}

func (m *Monitor) deliver(ctx context.Context, kind, text string) bool {
	delivered := report.Deliver(ctx, report.SenderFunc(m.notifier.SendWithRetry), text)
	observability.GetMetrics().RecordNotification(kind, delivered)
	return delivered
}

func (m *Monitor) remember(run *models.MonitorRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRun = run
}

// missingTickers lists the watchlist entries absent from records
func missingTickers(watchlist []string, records []models.NormalizedRecord) []string {
	got := make([]string, len(records))
	for i, r := range records {
		got[i] = r.Ticker
	}
	missing := []string{}
	for _, t := range watchlist {
		if !slices.Contains(got, normalizer.CanonicalTicker(t)) {
			missing = append(missing, t)
		}
	}
	return missing
}
