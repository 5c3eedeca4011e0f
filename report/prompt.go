package report

import (
	"fmt"
	"slices"
	"strings"

	"fii-monitor/models"
)

// AnalysisSystemPrompt frames the narrator's role
const AnalysisSystemPrompt = "You are an experienced analyst of Brazilian real-estate funds (FIIs). " +
	"You interpret daily market movements by sector using only the data provided. " +
	"You never invent numbers and you never recommend individual funds."

// AnalysisItem is one fund as shown on the dashboard
type AnalysisItem struct {
	Ticker      string   `json:"ticker" validate:"required"`
	Price       float64  `json:"price" validate:"gte=0"`
	ChangePct   float64  `json:"change_pct"`
	PriceToBook *float64 `json:"pvp,omitempty"`
	DividendPct float64  `json:"dy"`
	DiscountPct float64  `json:"discount_pct"`
	Falling     bool     `json:"falling"`
}

// AnalysisStats are the headline counts the dashboard computed
type AnalysisStats struct {
	Total         int     `json:"total" validate:"gte=0"`
	Up            int     `json:"up" validate:"gte=0"`
	Down          int     `json:"down" validate:"gte=0"`
	MeanChangePct float64 `json:"mean_change_pct"`
}

// AnalysisRequest is the body of the narrative endpoint
type AnalysisRequest struct {
	Gainers   []AnalysisItem `json:"gainers" validate:"dive"`
	Losers    []AnalysisItem `json:"losers" validate:"dive"`
	Discounts []AnalysisItem `json:"discounts" validate:"dive"`
	Stats     AnalysisStats  `json:"stats"`
}

// ResearchTickers picks the funds worth looking up: top 3 gainers, top 3 losers
// and top 2 discounts, deduplicated, at most limit.
func (r AnalysisRequest) ResearchTickers(limit int) []string {
	var out []string
	add := func(items []AnalysisItem, n int) {
		for _, it := range items[:min(n, len(items))] {
			t := strings.TrimSuffix(strings.ToUpper(it.Ticker), models.TickerSuffix)
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	add(r.Gainers, 3)
	add(r.Losers, 3)
	add(r.Discounts, 2)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SectorLookup resolves a ticker to its sector classification
type SectorLookup func(ticker string) models.Sector

const rule = "═══════════════════════════════════════════════"

// BuildAnalysisPrompt renders the narrator prompt for a day's rankings
func BuildAnalysisPrompt(req AnalysisRequest, sectors SectorLookup, notes []models.ResearchNote) string {
	var b strings.Builder
	s := req.Stats
	total := max(s.Total, 1)

	b.WriteString("GOAL: explain WHAT IS HAPPENING in the FII market TODAY.\n\n")
	b.WriteString(rule + "\nMARKET DATA TODAY:\n" + rule + "\n")
	fmt.Fprintf(&b, "• Analyzed: %d FIIs\n", s.Total)
	fmt.Fprintf(&b, "• Up: %d (%.1f%%)\n", s.Up, float64(s.Up)/float64(total)*100)
	fmt.Fprintf(&b, "• Down: %d (%.1f%%)\n", s.Down, float64(s.Down)/float64(total)*100)
	fmt.Fprintf(&b, "• Mean change: %+.2f%%\n\n", s.MeanChangePct)

	names := writeSectorDistribution(&b, req, sectors)

	b.WriteString("\n" + rule + "\nTOP GAINERS:\n" + rule + "\n")
	writeItems(&b, req.Gainers, sectors)
	b.WriteString("\n" + rule + "\nTOP LOSERS:\n" + rule + "\n")
	writeItems(&b, req.Losers, sectors)

	var deepening, stable []AnalysisItem
	for _, it := range req.Discounts {
		if it.Falling {
			deepening = append(deepening, it)
		} else {
			stable = append(stable, it)
		}
	}
	if len(req.Discounts) > 0 {
		b.WriteString("\n" + rule + "\nP/VP DISCOUNTS (below book value):\n" + rule + "\n")
		if len(deepening) > 0 {
			b.WriteString("Discount deepening (down today, tactical entry):\n")
			writeDiscounts(&b, deepening, sectors, true)
		}
		if len(stable) > 0 {
			b.WriteString("Other discounts (flat or rising):\n")
			writeDiscounts(&b, stable, sectors, false)
		}
		if len(deepening) > 0 {
			fmt.Fprintf(&b, "ATTENTION: %d funds with a deepening discount today.\n", len(deepening))
		}
	}

	b.WriteString("\n" + rule + "\nSECTOR DRIVERS:\n" + rule + "\n")
	for _, name := range names {
		sec := sectorByName(req, sectors, name)
		if len(sec.RisesWith) == 0 && len(sec.FallsWith) == 0 {
			continue
		}
		fmt.Fprintf(&b, "**%s**:\n", name)
		fmt.Fprintf(&b, "• Rises with: %s\n", strings.Join(sec.RisesWith[:min(3, len(sec.RisesWith))], ", "))
		fmt.Fprintf(&b, "• Falls with: %s\n", strings.Join(sec.FallsWith[:min(3, len(sec.FallsWith))], ", "))
		fmt.Fprintf(&b, "• Correlated indices: %s\n\n", strings.Join(sec.Indices, ", "))
	}

	if len(notes) > 0 {
		b.WriteString(rule + "\nPUBLIC RESEARCH:\n" + rule + "\n")
		for _, n := range notes {
			if n.IsEmpty() {
				continue
			}
			fmt.Fprintf(&b, "**%s** (sources: %s)\n", n.Ticker, strings.Join(n.Sources, ", "))
			if n.Summary != "" {
				fmt.Fprintf(&b, "• %s\n", truncate(n.Summary, 200))
			}
			if n.Sector != "" {
				fmt.Fprintf(&b, "• Segment: %s\n", n.Sector)
			}
			if n.Manager != "" {
				fmt.Fprintf(&b, "• Manager: %s\n", n.Manager)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\nTASK, FOUR PARAGRAPHS:\n" + rule + "\n")
	b.WriteString("1. Read of the day: overall direction and share of funds up versus down.\n")
	b.WriteString("2. Sector analysis of the gainers, citing every sector and its macro driver.\n")
	b.WriteString("3. Sector analysis of the losers, citing every sector and its macro risk.\n")
	b.WriteString("4. Synthesis and tactical opportunities. Always mention deepening discounts with ticker, P/VP and reason.\n\n")
	b.WriteString("Rules: use only the data above; cite research sources by name; at most 400 words; analytical tone.\n")

	return b.String()
}

func writeItems(b *strings.Builder, items []AnalysisItem, sectors SectorLookup) {
	if len(items) == 0 {
		b.WriteString(NoDataLine + "\n")
		return
	}
	for _, it := range items {
		sec := sectors(it.Ticker)
		fmt.Fprintf(b, "- %s (%s - %s): price R$ %.2f, change %+.2f%%, P/VP %s, DY %.2f%%\n",
			it.Ticker, sec.Name, sec.Type, it.Price, it.ChangePct, formatPVP(it.PriceToBook), it.DividendPct)
	}
}

func writeDiscounts(b *strings.Builder, items []AnalysisItem, sectors SectorLookup, withChange bool) {
	for _, it := range items {
		fmt.Fprintf(b, "- %s (%s): P/VP %s (discount %.1f%%)", it.Ticker, sectors(it.Ticker).Name, formatPVP(it.PriceToBook), it.DiscountPct)
		if withChange {
			fmt.Fprintf(b, ", change %+.2f%%", it.ChangePct)
		}
		fmt.Fprintf(b, ", DY %.2f%%\n", it.DividendPct)
	}
}

// writeSectorDistribution counts gainers and losers per sector and returns the
// sector names in first-seen order.
func writeSectorDistribution(b *strings.Builder, req AnalysisRequest, sectors SectorLookup) []string {
	var names []string
	up := map[string]int{}
	down := map[string]int{}

	for _, it := range req.Gainers {
		name := sectors(it.Ticker).Name
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
		up[name]++
	}
	for _, it := range req.Losers {
		name := sectors(it.Ticker).Name
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
		down[name]++
	}

	b.WriteString("SECTOR DISTRIBUTION:\n")
	for _, name := range names {
		fmt.Fprintf(b, "• %s: %d up, %d down\n", name, up[name], down[name])
	}
	return names
}

func sectorByName(req AnalysisRequest, sectors SectorLookup, name string) models.Sector {
	for _, it := range slices.Concat(req.Gainers, req.Losers) {
		if sec := sectors(it.Ticker); sec.Name == name {
			return sec
		}
	}
	return models.Sector{}
}

func formatPVP(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
