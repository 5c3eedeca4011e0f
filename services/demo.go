package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"fii-monitor/models"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

type demoFund struct {
	ticker string
	name   string
	price  float64
	change float64 // day change as a fraction
	dy     float64 // trailing yield as a fraction
	pvp    float64
	volume int64
	low52  float64
	high52 float64
}

var demoFunds = []demoFund{
	{"HGLG11.SA", "CSHG Logistica FII", 153.50, 0.0195, 0.0856, 0.98, 1523400, 142.30, 167.80},
	{"KNRI11.SA", "Kinea Renda Imobiliaria FII", 98.75, -0.0051, 0.0923, 0.91, 2145800, 90.10, 108.40},
	{"VISC11.SA", "Vinci Shopping Centers FII", 87.30, 0.0123, 0.0789, 0.88, 987600, 80.20, 96.70},
	{"MXRF11.SA", "Maxi Renda FII", 9.85, 0.0076, 0.1045, 1.02, 3421500, 9.12, 10.64},
	{"BTLG11.SA", "BTG Pactual Logistica FII", 102.45, -0.0034, 0.0812, 0.96, 1876300, 94.80, 110.90},
}

// demoDistributions are the monthly payouts of the reference fund, oldest first
var demoDistributions = []float64{1.25, 1.18, 1.32, 1.28, 1.35, 1.22, 1.30, 1.27, 1.33, 1.29, 1.31, 1.26}

const demoReferencePrice = 153.50

// DemoMarketData serves deterministic sample data in place of Yahoo Finance
type DemoMarketData struct {
	now   func() time.Time
	loc   *time.Location
	funds map[string]demoFund
}

// NewDemoMarketData creates a demo source whose series end at now()
func NewDemoMarketData(now func() time.Time) *DemoMarketData {
	if now == nil {
		now = time.Now
	}
	funds := make(map[string]demoFund, len(demoFunds))
	for _, f := range demoFunds {
		funds[f.ticker] = f
	}
	return &DemoMarketData{now: now, loc: models.MarketLocation(), funds: funds}
}

// DemoTickers lists the funds the demo source knows about
func DemoTickers() []string {
	out := make([]string, len(demoFunds))
	for i, f := range demoFunds {
		out[i] = f.ticker
	}
	return out
}

// FetchChart synthesizes bars and distributions for a known demo fund
func (d *DemoMarketData) FetchChart(ctx context.Context, ticker string, q models.ChartQuery) (*models.RawQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := d.funds[strings.ToUpper(ticker)]
	if !ok {
		return nil, models.NewUpstreamError(models.ErrUpstreamUnavailable, ticker,
			fmt.Sprintf("%s/%s", q.Range, q.Interval), fmt.Errorf("not a demo fund"))
	}

	now := d.now().In(d.loc)
	times := demoBarTimes(now, q)
	quote := &models.RawQuote{
		Ticker:             f.ticker,
		LongName:           null.StringFrom(f.name),
		RegularMarketPrice: null.FloatFrom(f.price),
		PreviousClose:      null.FloatFrom(round2(f.price / (1 + f.change))),
		FiftyTwoWeekHigh:   null.FloatFrom(f.high52),
		FiftyTwoWeekLow:    null.FloatFrom(f.low52),
		Bars:               demoBars(f, times),
		Dividends:          demoDividends(f, now, d.loc),
		Location:           d.loc,
	}
	return quote, nil
}

// FetchQuote adds the demo fundamentals to FetchChart
func (d *DemoMarketData) FetchQuote(ctx context.Context, ticker string, q models.ChartQuery) (*models.RawQuote, error) {
	quote, err := d.FetchChart(ctx, ticker, q)
	if err != nil {
		return nil, err
	}
	f := d.funds[quote.Ticker]
	quote.CurrentPrice = null.FloatFrom(f.price)
	quote.DividendYield = null.FloatFrom(f.dy)
	quote.PriceToBook = null.FloatFrom(f.pvp)
	quote.BookValue = null.FloatFrom(round2(f.price / f.pvp))
	return quote, nil
}

// demoBars walks a smooth path that ends at the fund's price, with the
// previous bar placed so the last two closes give the fund's day change.
func demoBars(f demoFund, times []time.Time) []models.Bar {
	n := len(times)
	bars := make([]models.Bar, n)
	prev := f.price / (1 + f.change)
	seed := float64(len(f.ticker)) + f.price

	for i, t := range times {
		var c float64
		switch {
		case i == n-1:
			c = f.price
		case i == n-2:
			c = prev
		default:
			c = prev * (1 + 0.03*math.Sin(float64(i)*0.37+seed) - 0.02*float64(n-2-i)/float64(n))
		}
		c = round2(c)
		spread := c * 0.006
		vol := float64(f.volume) * (0.75 + 0.5*math.Abs(math.Sin(float64(i)+seed)))
		if i == n-1 {
			vol = float64(f.volume)
		}
		bars[i] = models.Bar{
			Time:   t,
			Open:   decimal.NewFromFloat(round2(c - spread/2)),
			High:   decimal.NewFromFloat(round2(c + spread)),
			Low:    decimal.NewFromFloat(round2(c - spread)),
			Close:  decimal.NewFromFloat(c),
			Volume: int64(vol),
		}
	}
	return bars
}

// demoDividends pays on the 15th of each of the last 24 months, scaled to the fund's price
func demoDividends(f demoFund, now time.Time, loc *time.Location) []models.Dividend {
	scale := f.price / demoReferencePrice
	var out []models.Dividend
	first := time.Date(now.Year(), now.Month(), 15, 0, 0, 0, 0, loc)
	if first.After(now) {
		first = first.AddDate(0, -1, 0)
	}
	for m := 0; m < 24; m++ {
		date := first.AddDate(0, -m, 0)
		amount := demoDistributions[len(demoDistributions)-1-m%len(demoDistributions)] * scale
		out = append(out, models.Dividend{
			Date:   date,
			Amount: decimal.NewFromFloat(math.Round(amount*10000) / 10000),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// demoBarTimes lays out trading-session timestamps for the query, oldest first
func demoBarTimes(now time.Time, q models.ChartQuery) []time.Time {
	last := lastSession(now)
	var times []time.Time

	switch q.Interval {
	case models.Interval1m, models.Interval5m:
		step := 5 * time.Minute
		if q.Interval == models.Interval1m {
			step = time.Minute
		}
		open := time.Date(last.Year(), last.Month(), last.Day(), 10, 0, 0, 0, now.Location())
		end := open.Add(7 * time.Hour)
		if now.Before(end) && sameDay(now, last) {
			end = now
		}
		for t := open; !t.After(end); t = t.Add(step) {
			times = append(times, t)
		}
	case models.Interval1h:
		for _, day := range sessions(last, demoSessionCount(q.Range, now)) {
			for h := 10; h < 17; h++ {
				times = append(times, time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, now.Location()))
			}
		}
	case models.Interval1mo:
		months := max(demoSessionCount(q.Range, now)/21, 1)
		for m := months - 1; m >= 0; m-- {
			times = append(times, time.Date(last.Year(), last.Month(), 1, 10, 0, 0, 0, now.Location()).AddDate(0, -m, 0))
		}
	default:
		for _, day := range sessions(last, demoSessionCount(q.Range, now)) {
			times = append(times, time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, now.Location()))
		}
	}

	if len(times) < 2 {
		prev := lastSession(last.AddDate(0, 0, -1))
		times = append([]time.Time{time.Date(prev.Year(), prev.Month(), prev.Day(), 16, 55, 0, 0, now.Location())}, times...)
	}
	return times
}

// demoSessionCount approximates the number of trading sessions in a range
func demoSessionCount(p models.Period, now time.Time) int {
	switch p {
	case models.Period1D:
		return 1
	case models.Period5D:
		return 5
	case models.Period1Mo:
		return 21
	case models.Period3Mo:
		return 63
	case models.Period6Mo:
		return 126
	case models.Period1Y:
		return 252
	case models.Period2Y:
		return 504
	case models.Period5Y:
		return 1260
	case models.PeriodYTD:
		return max(now.YearDay()*5/7, 1)
	default:
		return 2520
	}
}

// lastSession returns the most recent weekday at or before t whose session has opened
func lastSession(t time.Time) time.Time {
	if t.Hour() < 10 {
		t = t.AddDate(0, 0, -1)
	}
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// sessions returns n weekdays ending at last, oldest first
func sessions(last time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := last; len(out) < n; d = d.AddDate(0, 0, -1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
