package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"fii-monitor/config"
	"fii-monitor/models"
	"fii-monitor/observability"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const yahooUserAgent = "Mozilla/5.0 (X11; Linux x86_64) fii-monitor"

// YahooService fetches fund charts and fundamentals from Yahoo Finance
type YahooService struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	defaultTimeout time.Duration
}

// YahooOption customizes a YahooService
type YahooOption func(*YahooService)

// WithYahooHTTPClient replaces the HTTP client (for testing)
func WithYahooHTTPClient(c *http.Client) YahooOption {
	return func(s *YahooService) { s.httpClient = c }
}

// WithYahooBaseURL points the service at another host (for testing)
func WithYahooBaseURL(u string) YahooOption {
	return func(s *YahooService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithYahooRateLimit sets the minimum spacing between provider calls
func WithYahooRateLimit(every time.Duration) YahooOption {
	return func(s *YahooService) {
		if every <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(every), 1)
	}
}

// NewYahooService creates a new YahooService instance
func NewYahooService(cfg config.YahooConfig, opts ...YahooOption) *YahooService {
	s := &YahooService{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{},
		defaultTimeout: cfg.Timeout,
	}
	WithYahooRateLimit(cfg.MinInterval)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// yahooChart is the response structure of the v8 chart endpoint
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string   `json:"symbol"`
				LongName             string   `json:"longName"`
				ShortName            string   `json:"shortName"`
				RegularMarketPrice   *float64 `json:"regularMarketPrice"`
				ChartPreviousClose   *float64 `json:"chartPreviousClose"`
				PreviousClose        *float64 `json:"previousClose"`
				FiftyTwoWeekHigh     *float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow      *float64 `json:"fiftyTwoWeekLow"`
				ExchangeTimezoneName string   `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp []int64 `json:"timestamp"`
			Events    struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
			} `json:"events"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooRaw struct {
	Raw *float64 `json:"raw"`
}

// yahooSummary is the subset of the v10 quoteSummary modules the monitor reads
type yahooSummary struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				DividendYield yahooRaw `json:"dividendYield"`
				PreviousClose yahooRaw `json:"previousClose"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				PriceToBook yahooRaw `json:"priceToBook"`
				BookValue   yahooRaw `json:"bookValue"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				CurrentPrice yahooRaw `json:"currentPrice"`
			} `json:"financialData"`
			Price struct {
				LongName                   string   `json:"longName"`
				RegularMarketChangePercent yahooRaw `json:"regularMarketChangePercent"`
			} `json:"price"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteSummary"`
}

// FetchChart returns bars, dividends and chart metadata for one ticker
func (s *YahooService) FetchChart(ctx context.Context, ticker string, q models.ChartQuery) (*models.RawQuote, error) {
	params := fmt.Sprintf("%s/%s", q.Range, q.Interval)
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "chart")
	timer := metrics.NewTimer()

	ctx, cancel := s.withTimeout(ctx, q.Timeout)
	defer cancel()

	quote, err := WithCircuitBreaker(ctx, BreakerYahoo, func() (*models.RawQuote, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.fetchChart(ctx, ticker, q)
	})

	timer.ObserveExternalAPI(BreakerYahoo, "chart")
	if err != nil {
		err = classifyYahooError(err, ticker, params)
		metrics.RecordExternalAPIError(BreakerYahoo, "chart", categorizeAPIError(err))
		observability.WithTicker(ticker).Warn("chart fetch failed", "params", params, "error", err)
		return nil, err
	}
	return quote, nil
}

// FetchQuote is FetchChart plus the quoteSummary fundamentals. A failed
// fundamentals call is logged and leaves those fields null.
func (s *YahooService) FetchQuote(ctx context.Context, ticker string, q models.ChartQuery) (*models.RawQuote, error) {
	quote, err := s.FetchChart(ctx, ticker, q)
	if err != nil {
		return nil, err
	}

	// fundamentals have their own breaker; it never rejects chart calls
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahooFundamentals, "quote_summary")
	timer := metrics.NewTimer()

	sctx, cancel := s.withTimeout(ctx, q.Timeout)
	defer cancel()

	summary, err := WithCircuitBreaker(sctx, BreakerYahooFundamentals, func() (*yahooSummary, error) {
		if err := s.limiter.Wait(sctx); err != nil {
			return nil, err
		}
		return s.fetchSummary(sctx, ticker)
	})
	timer.ObserveExternalAPI(BreakerYahooFundamentals, "quote_summary")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahooFundamentals, "quote_summary", categorizeAPIError(err))
		observability.WithTicker(ticker).Warn("fundamentals unavailable",
			"params", fmt.Sprintf("quoteSummary %s/%s", q.Range, q.Interval),
			"error", err)
		return quote, nil
	}

	applySummary(quote, summary)
	return quote, nil
}

func (s *YahooService) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = s.defaultTimeout
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (s *YahooService) fetchChart(ctx context.Context, ticker string, q models.ChartQuery) (*models.RawQuote, error) {
	params := url.Values{}
	params.Set("range", string(q.Range))
	params.Set("interval", string(q.Interval))
	params.Set("events", "div")
	params.Set("includePrePost", "false")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(ticker), params.Encode())

	body, status, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var chart yahooChart
	if jsonErr := json.Unmarshal(body, &chart); jsonErr != nil {
		if status != http.StatusOK {
			return nil, httpStatusError(status, body)
		}
		return nil, fmt.Errorf("yahoo decode: %w", jsonErr)
	}
	if chart.Chart.Error != nil {
		if status == http.StatusNotFound || strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
			return nil, fmt.Errorf("yahoo: %s: %w", chart.Chart.Error.Description, models.ErrUpstreamUnavailable)
		}
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if status != http.StatusOK {
		return nil, httpStatusError(status, body)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: empty result: %w", models.ErrUpstreamUnavailable)
	}

	result := chart.Chart.Result[0]
	meta := result.Meta

	quote := &models.RawQuote{
		Ticker:             ticker,
		RegularMarketPrice: null.FloatFromPtr(meta.RegularMarketPrice),
		PreviousClose:      null.FloatFromPtr(firstNonNil(meta.ChartPreviousClose, meta.PreviousClose)),
		FiftyTwoWeekHigh:   null.FloatFromPtr(meta.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:    null.FloatFromPtr(meta.FiftyTwoWeekLow),
	}
	switch {
	case meta.LongName != "":
		quote.LongName = null.StringFrom(meta.LongName)
	case meta.ShortName != "":
		quote.LongName = null.StringFrom(meta.ShortName)
	}
	if meta.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(meta.ExchangeTimezoneName); err == nil {
			quote.Location = loc
		}
	}

	if len(result.Indicators.Quote) > 0 {
		quote.Bars = parseBars(result.Timestamp, result.Indicators.Quote[0].Open,
			result.Indicators.Quote[0].High, result.Indicators.Quote[0].Low,
			result.Indicators.Quote[0].Close, result.Indicators.Quote[0].Volume)
	}

	for _, d := range result.Events.Dividends {
		quote.Dividends = append(quote.Dividends, models.Dividend{
			Date:   time.Unix(d.Date, 0).In(quote.Loc()),
			Amount: decimal.NewFromFloat(d.Amount),
		})
	}
	sort.Slice(quote.Dividends, func(i, j int) bool {
		return quote.Dividends[i].Date.Before(quote.Dividends[j].Date)
	})

	if len(quote.Bars) == 0 {
		return nil, fmt.Errorf("yahoo: no bars returned: %w", models.ErrUpstreamUnavailable)
	}
	for i := range quote.Bars {
		quote.Bars[i].Time = quote.Bars[i].Time.In(quote.Loc())
	}
	return quote, nil
}

func (s *YahooService) fetchSummary(ctx context.Context, ticker string) (*yahooSummary, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=summaryDetail,defaultKeyStatistics,financialData,price",
		s.baseURL, url.PathEscape(ticker))

	body, status, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, httpStatusError(status, body)
	}

	var summary yahooSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if summary.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", summary.QuoteSummary.Error.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, errors.New("yahoo: empty quote summary")
	}
	return &summary, nil
}

func (s *YahooService) get(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("yahoo read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func applySummary(quote *models.RawQuote, summary *yahooSummary) {
	r := summary.QuoteSummary.Result[0]
	quote.CurrentPrice = null.FloatFromPtr(r.FinancialData.CurrentPrice.Raw)
	quote.DividendYield = null.FloatFromPtr(r.SummaryDetail.DividendYield.Raw)
	quote.PriceToBook = null.FloatFromPtr(r.DefaultKeyStatistics.PriceToBook.Raw)
	quote.BookValue = null.FloatFromPtr(r.DefaultKeyStatistics.BookValue.Raw)
	quote.ChangePercent = null.FloatFromPtr(r.Price.RegularMarketChangePercent.Raw)
	if !quote.PreviousClose.Valid {
		quote.PreviousClose = null.FloatFromPtr(r.SummaryDetail.PreviousClose.Raw)
	}
	if r.Price.LongName != "" {
		quote.LongName = null.StringFrom(r.Price.LongName)
	}
}

// parseBars zips the indicator columns into bars, skipping slots without a close
func parseBars(ts []int64, open, high, low, closes, volume []*float64) []models.Bar {
	bars := make([]models.Bar, 0, len(ts))
	for i, t := range ts {
		c := at(closes, i)
		if c == nil {
			continue
		}
		bar := models.Bar{
			Time:  time.Unix(t, 0),
			Close: decimal.NewFromFloat(*c),
		}
		bar.Open = decimalOr(at(open, i), bar.Close)
		bar.High = decimalOr(at(high, i), bar.Close)
		bar.Low = decimalOr(at(low, i), bar.Close)
		if v := at(volume, i); v != nil {
			bar.Volume = int64(*v)
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars
}

func at(col []*float64, i int) *float64 {
	if i < len(col) {
		return col[i]
	}
	return nil
}

func decimalOr(v *float64, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return decimal.NewFromFloat(*v)
}

func firstNonNil(vs ...*float64) *float64 {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func httpStatusError(status int, body []byte) error {
	if status == http.StatusNotFound {
		return fmt.Errorf("yahoo: status %d: %w", status, models.ErrUpstreamUnavailable)
	}
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Errorf("yahoo: status %d, body: %s", status, snippet)
}

// classifyYahooError attaches the ticker and parameters to a provider failure
func classifyYahooError(err error, ticker, params string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewUpstreamError(models.ErrUpstreamTimeout, ticker, params, err)
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return models.NewUpstreamError(models.ErrUpstreamUnavailable, ticker, params, err)
	default:
		return fmt.Errorf("yahoo %s [%s]: %w", ticker, params, err)
	}
}
