package services

import (
	"context"

	"fii-monitor/models"
)

// MarketDataSource fetches raw fund data from the market-data provider
type MarketDataSource interface {
	// FetchChart returns the bars, dividends and chart metadata for one query
	FetchChart(ctx context.Context, ticker string, q models.ChartQuery) (*models.RawQuote, error)
	// FetchQuote is FetchChart enriched with fundamentals; a missing
	// fundamentals answer leaves the optional fields null.
	FetchQuote(ctx context.Context, ticker string, q models.ChartQuery) (*models.RawQuote, error)
}

// Notifier delivers messages to the configured chat
type Notifier interface {
	Send(ctx context.Context, text string) error
	// SendWithRetry is Send with backoff on transient failures
	SendWithRetry(ctx context.Context, text string) error
	GetMe(ctx context.Context) (*BotInfo, error)
}

// Narrator turns a prompt into a written market commentary
type Narrator interface {
	Narrate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// Researcher looks up public information about a fund
type Researcher interface {
	Lookup(ctx context.Context, ticker string) models.ResearchNote
}

// Compile-time interface verification
var (
	_ MarketDataSource = (*YahooService)(nil)
	_ MarketDataSource = (*DemoMarketData)(nil)
	_ Notifier         = (*TelegramService)(nil)
	_ Narrator         = (*OpenAIService)(nil)
	_ Narrator         = (*BedrockService)(nil)
	_ Researcher       = (*ResearchService)(nil)
)
