package main

import (
	"context"

	"fii-monitor/config"
	"fii-monitor/internal/app"
	"fii-monitor/observability"
	"fii-monitor/services"
)

// newMarketData picks the demo source or the live Yahoo client
func newMarketData(cfg *config.Config) services.MarketDataSource {
	if cfg.DemoMode {
		observability.Warn("demo mode enabled, serving sample data")
		return services.NewDemoMarketData(nil)
	}
	return services.NewYahooService(cfg.Yahoo)
}

// newNarrator builds the configured language-model client, or nil when none is configured
func newNarrator(ctx context.Context, cfg *config.Config) services.Narrator {
	if !cfg.HasNarrator() {
		observability.Warn("no AI credentials configured, /analysis-ai disabled")
		return nil
	}

	if cfg.UseBedrock() {
		svc, err := services.NewBedrockService(ctx, cfg)
		if err != nil {
			observability.Warn("failed to initialize Bedrock narrator", "error", err)
			return nil
		}
		return svc
	}

	svc, err := services.NewOpenAIService(cfg)
	if err != nil {
		observability.Warn("failed to initialize OpenAI narrator", "error", err)
		return nil
	}
	return svc
}

// newApp wires the application with every configured collaborator
func newApp(ctx context.Context, cfg *config.Config) *app.App {
	opts := []app.Option{}
	if n := newNarrator(ctx, cfg); n != nil {
		opts = append(opts, app.WithNarrator(n))
	}
	if cfg.Research.Enabled {
		opts = append(opts, app.WithResearcher(services.NewResearchService(cfg.Research)))
	}
	return app.New(cfg, newMarketData(cfg), opts...)
}
