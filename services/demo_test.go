package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"fii-monitor/models"
)

// Wednesday 2025-10-15 14:30 in Sao Paulo
var demoNow = time.Date(2025, 10, 15, 14, 30, 0, 0, models.MarketLocation())

func newTestDemo() *DemoMarketData {
	return NewDemoMarketData(func() time.Time { return demoNow })
}

func TestDemoFetchChart_DailyEndsAtFundPrice(t *testing.T) {
	quote, err := newTestDemo().FetchChart(context.Background(), "HGLG11.SA",
		models.ChartQuery{Range: models.Period5D, Interval: models.Interval1d})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quote.Bars) != 5 {
		t.Fatalf("expected 5 daily bars, got %d", len(quote.Bars))
	}

	last, _ := quote.LastBar()
	if last.Close.InexactFloat64() != 153.50 {
		t.Errorf("expected last close 153.50, got %s", last.Close)
	}
	prev := quote.Bars[len(quote.Bars)-2].Close.InexactFloat64()
	change := (153.50 - prev) / prev
	if math.Abs(change-0.0195) > 0.0005 {
		t.Errorf("expected day change near 1.95%%, got %.4f", change)
	}
	if last.Volume != 1523400 {
		t.Errorf("expected last volume 1523400, got %d", last.Volume)
	}
	for _, b := range quote.Bars {
		if wd := b.Time.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("unexpected weekend bar %s", b.Time)
		}
	}
	if !sameDay(last.Time, demoNow) {
		t.Errorf("expected the series to end today, got %s", last.Time)
	}
}

func TestDemoFetchChart_Intraday(t *testing.T) {
	quote, err := newTestDemo().FetchChart(context.Background(), "MXRF11.SA",
		models.ChartQuery{Range: models.Period1D, Interval: models.Interval5m})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10:00 through 14:30 every five minutes
	if len(quote.Bars) != 55 {
		t.Errorf("expected 55 intraday bars, got %d", len(quote.Bars))
	}
	for _, b := range quote.Bars {
		if b.Time.After(demoNow) {
			t.Errorf("bar %s is in the future", b.Time)
		}
	}
}

func TestDemoFetchChart_Hourly(t *testing.T) {
	quote, err := newTestDemo().FetchChart(context.Background(), "VISC11.SA",
		models.ChartQuery{Range: models.Period1Mo, Interval: models.Interval1h})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quote.Bars) != 21*7 {
		t.Errorf("expected %d hourly bars, got %d", 21*7, len(quote.Bars))
	}
}

func TestDemoFetchChart_UnknownTicker(t *testing.T) {
	_, err := newTestDemo().FetchChart(context.Background(), "ZZZZ11.SA",
		models.ChartQuery{Range: models.Period5D, Interval: models.Interval1d})
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestDemoFetchQuote_Fundamentals(t *testing.T) {
	quote, err := newTestDemo().FetchQuote(context.Background(), "KNRI11.SA",
		models.ChartQuery{Range: models.Period5D, Interval: models.Interval1d})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.DividendYield.Float64 != 0.0923 || quote.PriceToBook.Float64 != 0.91 {
		t.Errorf("unexpected fundamentals %v %v", quote.DividendYield, quote.PriceToBook)
	}
	if quote.CurrentPrice.Float64 != 98.75 {
		t.Errorf("unexpected current price %v", quote.CurrentPrice)
	}
}

func TestDemoDividends_MonthlyAndPast(t *testing.T) {
	quote, err := newTestDemo().FetchChart(context.Background(), "HGLG11.SA",
		models.ChartQuery{Range: models.PeriodMax, Interval: models.Interval1mo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quote.Dividends) != 24 {
		t.Fatalf("expected 24 distributions, got %d", len(quote.Dividends))
	}
	for i, d := range quote.Dividends {
		if d.Date.After(demoNow) {
			t.Errorf("distribution %s is in the future", d.Date)
		}
		if i > 0 && !quote.Dividends[i-1].Date.Before(d.Date) {
			t.Error("expected distributions in ascending order")
		}
	}
	if got := quote.Dividends[len(quote.Dividends)-1].Amount.InexactFloat64(); got != 1.26 {
		t.Errorf("expected latest distribution 1.26, got %v", got)
	}
}

func TestDemoTickers(t *testing.T) {
	tickers := DemoTickers()
	if len(tickers) != 5 || tickers[0] != "HGLG11.SA" {
		t.Errorf("unexpected demo tickers %v", tickers)
	}
}
