package app

import (
	"context"
	"fmt"

	"fii-monitor/models"
	"fii-monitor/observability"
	"fii-monitor/report"

	"golang.org/x/sync/errgroup"
)

// Analyze asks the narrator to explain the day's rankings. Sector context is
// always added; public research is added when a researcher is configured.
func (a *App) Analyze(ctx context.Context, req report.AnalysisRequest) (report.AnalysisView, error) {
	if a.narrator == nil {
		return report.AnalysisView{}, ErrNarratorUnavailable
	}

	// Try to acquire semaphore (non-blocking)
	select {
	case a.analysisSem <- struct{}{}:
		defer func() { <-a.analysisSem }()
	default:
		return report.AnalysisView{}, ErrAnalysisBusy
	}

	notes := a.research(ctx, req)
	prompt := report.BuildAnalysisPrompt(req, a.cfg.Sectors.Lookup, notes)

	text, err := a.narrator.Narrate(ctx, report.AnalysisSystemPrompt, prompt)
	if err != nil {
		observability.Error("narration failed", "model", a.narrator.Model(), "error", err)
		return report.AnalysisView{}, fmt.Errorf("narration failed: %w", err)
	}

	observability.Info("narration complete", "model", a.narrator.Model(), "research_notes", len(notes))
	return report.AnalysisView{
		Analysis:  text,
		Timestamp: a.Now(),
		Model:     a.narrator.Model(),
	}, nil
}

// research looks up the featured funds concurrently, keeping only non-empty notes
func (a *App) research(ctx context.Context, req report.AnalysisRequest) []models.ResearchNote {
	if a.researcher == nil || !a.cfg.Research.Enabled {
		return nil
	}
	tickers := req.ResearchTickers(a.cfg.Research.MaxTickers)
	if len(tickers) == 0 {
		return nil
	}

	found := make([]models.ResearchNote, len(tickers))
	var g errgroup.Group
	for i, t := range tickers {
		g.Go(func() error {
			found[i] = a.researcher.Lookup(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	notes := make([]models.ResearchNote, 0, len(found))
	for _, n := range found {
		if !n.IsEmpty() {
			notes = append(notes, n)
		}
	}
	return notes
}
