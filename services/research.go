package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fii-monitor/config"
	"fii-monitor/models"
	"fii-monitor/observability"

	"github.com/PuerkitoBio/goquery"
)

// ResearchSourceName labels notes scraped from Funds Explorer
const ResearchSourceName = "Funds Explorer"

var (
	sectorSelectors  = []string{"[class*='sector']", "[class*='setor']"}
	managerSelectors = []string{"[class*='manager']", "[class*='gestora']"}
)

// ResearchService scrapes public fund pages for sector and manager context
type ResearchService struct {
	baseURL string
	client  *http.Client
}

// NewResearchService creates a new ResearchService instance
func NewResearchService(cfg config.ResearchConfig) *ResearchService {
	return &ResearchService{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup fetches the fund page for ticker. Any failure yields an empty note.
func (s *ResearchService) Lookup(ctx context.Context, ticker string) models.ResearchNote {
	ticker = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(ticker)), models.TickerSuffix)
	note := models.ResearchNote{Ticker: ticker}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerResearch, "fund_page")
	timer := metrics.NewTimer()

	doc, err := WithCircuitBreaker(ctx, BreakerResearch, func() (*goquery.Document, error) {
		return s.fetch(ctx, ticker)
	})
	timer.ObserveExternalAPI(BreakerResearch, "fund_page")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerResearch, "fund_page", categorizeAPIError(err))
		observability.WithTicker(ticker).Debug("fund research unavailable", "error", err)
		return note
	}

	note.Sector = firstText(doc, sectorSelectors)
	note.Manager = firstText(doc, managerSelectors)
	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		note.Summary = strings.TrimSpace(desc)
	}
	if note.Sector != "" || note.Manager != "" || note.Summary != "" {
		note.Sources = []string{ResearchSourceName}
	}
	return note
}

func (s *ResearchService) fetch(ctx context.Context, ticker string) (*goquery.Document, error) {
	u := fmt.Sprintf("%s/funds/%s", s.baseURL, url.PathEscape(strings.ToLower(ticker)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("research fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("research: %s: %w", ticker, models.ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("research: status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// firstText returns the collapsed text of the first selector that matches
func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		text := strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
		if text != "" {
			return text
		}
	}
	return ""
}
