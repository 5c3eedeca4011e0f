package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fii-monitor/models"
	"fii-monitor/observability"
	"fii-monitor/screener"

	"github.com/dustin/go-humanize"
)

// NoDataLine is emitted under a section whose source collection is empty
const NoDataLine = "• no data"

const (
	divider         = "━━━━━━━━━━━━━━━━━━━━━━━━"
	topN            = 5
	timestampFormat = "02/01/2006 15:04"
)

// SummaryInput is everything the periodic summary renders
type SummaryInput struct {
	Records           []models.NormalizedRecord
	Now               time.Time
	DiscountThreshold float64
	IntervalMinutes   int
	DashboardURL      string
}

// Sender delivers a rendered message to the messaging collaborator
type Sender interface {
	Send(ctx context.Context, text string) error
}

// SenderFunc adapts a plain function to Sender
type SenderFunc func(ctx context.Context, text string) error

// Send calls f(ctx, text)
func (f SenderFunc) Send(ctx context.Context, text string) error {
	return f(ctx, text)
}

// FormatChange renders a percent change with its direction marker
func FormatChange(pct float64) string {
	switch {
	case pct > 0:
		return fmt.Sprintf("📈 +%.2f%%", pct)
	case pct < 0:
		return fmt.Sprintf("📉 %.2f%%", pct)
	default:
		return fmt.Sprintf("➖ %.2f%%", pct)
	}
}

// FormatSummary renders the market summary. Sections always appear in the same
// order: headline stats, top gainers, top losers, discount opportunities, footer.
func FormatSummary(in SummaryInput) string {
	var b strings.Builder

	ranking := screener.Rank(in.Records)
	discounts := screener.ClassifyDiscounts(in.Records, in.DiscountThreshold)
	stats := screener.Breadth(in.Records)

	b.WriteString("🔔 <b>FII MONITOR</b> 🔔\n")
	fmt.Fprintf(&b, "📅 %s\n\n", in.Now.Format(timestampFormat))

	b.WriteString("📊 <b>MARKET SUMMARY:</b>\n")
	fmt.Fprintf(&b, "• Analyzed: %d FIIs\n", stats.Total)
	fmt.Fprintf(&b, "• 📈 Up: %d (%.1f%%)\n", stats.Up, stats.Share(stats.Up))
	fmt.Fprintf(&b, "• 📉 Down: %d (%.1f%%)\n", stats.Down, stats.Share(stats.Down))
	fmt.Fprintf(&b, "• ➖ Flat: %d (%.1f%%)\n", stats.Flat, stats.Share(stats.Flat))
	fmt.Fprintf(&b, "• Mean change: %+.2f%%\n\n", stats.MeanChangePct)

	fmt.Fprintf(&b, "🔥 <b>TOP %d GAINERS:</b>\n", topN)
	writeMovers(&b, screener.Top(ranking.Gainers, topN))

	fmt.Fprintf(&b, "❄️ <b>TOP %d LOSERS:</b>\n", topN)
	writeMovers(&b, screener.Top(ranking.Losers, topN))

	fmt.Fprintf(&b, "💎 <b>P/VP DISCOUNTS (below %.2f):</b>\n", in.DiscountThreshold)
	if discounts.Len() == 0 {
		b.WriteString(NoDataLine + "\n")
	}
	for i, r := range discounts.All() {
		marker := ""
		if r.IsDown() {
			marker = " 🔥 deepening"
		}
		fmt.Fprintf(&b, "%d. <b>%s</b>: P/VP %.2f (discount %.1f%%)%s\n",
			i+1, r.Symbol(), r.PriceToBook.Float64, r.DiscountPct(), marker)
		fmt.Fprintf(&b, "   %s | DY: %.2f%% | R$ %s\n",
			FormatChange(r.DayChangePct()), r.DividendYieldPct, r.CurrentPrice.StringFixed(2))
	}
	b.WriteString("\n")

	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "💡 Next update in %d minutes\n", in.IntervalMinutes)
	fmt.Fprintf(&b, "🌐 Full dashboard at %s", in.DashboardURL)

	return b.String()
}

func writeMovers(b *strings.Builder, records []models.NormalizedRecord) {
	if len(records) == 0 {
		b.WriteString(NoDataLine + "\n\n")
		return
	}
	for i, r := range records {
		fmt.Fprintf(b, "%d. <b>%s</b>: R$ %s %s\n",
			i+1, r.Symbol(), r.CurrentPrice.StringFixed(2), FormatChange(r.DayChangePct()))
		if r.DividendYieldPct > 0 {
			fmt.Fprintf(b, "   DY: %.2f%%", r.DividendYieldPct)
			if r.PriceToBook.Valid {
				fmt.Fprintf(b, " | P/VP: %.2f", r.PriceToBook.Float64)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
}

// FormatFundAlert renders a single-fund alert
func FormatFundAlert(alert screener.Alert, now time.Time) string {
	var b strings.Builder
	r := alert.Record

	var icon, title string
	switch alert.Kind {
	case screener.AlertHigh:
		icon, title = "🚀", "SIGNIFICANT RISE"
	case screener.AlertLow:
		icon, title = "⚠️", "SIGNIFICANT DROP"
	default:
		icon, title = "💎", "DISCOUNT OPPORTUNITY"
	}

	fmt.Fprintf(&b, "%s <b>%s</b> %s\n", icon, title, icon)
	fmt.Fprintf(&b, "📅 %s\n\n", now.Format(timestampFormat))
	fmt.Fprintf(&b, "<b>%s</b>\n%s\n\n", r.Symbol(), divider)
	fmt.Fprintf(&b, "💰 Price: R$ %s\n", r.CurrentPrice.StringFixed(2))
	b.WriteString(FormatChange(r.DayChangePct()) + "\n")

	if r.DividendYieldPct > 0 {
		fmt.Fprintf(&b, "📊 Dividend yield: %.2f%%\n", r.DividendYieldPct)
	}
	if r.PriceToBook.Valid {
		fmt.Fprintf(&b, "📈 P/VP: %.2f", r.PriceToBook.Float64)
		if d := r.DiscountPct(); d > 0 {
			fmt.Fprintf(&b, " (discount %.1f%%)", d)
		}
		b.WriteString("\n")
	}
	if r.Volume > 0 {
		fmt.Fprintf(&b, "📦 Volume: %s (%s)\n", humanize.Comma(r.Volume), r.VolumeLabel())
	}
	return b.String()
}

// FormatConnected renders the greeting sent when the monitor starts
func FormatConnected(intervalMinutes int) string {
	return fmt.Sprintf("✅ <b>FII bot connected!</b>\n\n"+
		"🤖 Notifications are active.\n"+
		"⏰ You will receive updates every %d minutes during trading hours.\n\n"+
		"📊 Monitoring FIIs...", intervalMinutes)
}

// Deliver hands text to the sender and reports whether it accepted it
func Deliver(ctx context.Context, s Sender, text string) bool {
	if err := s.Send(ctx, text); err != nil {
		observability.Warn("notification not delivered", "error", err)
		return false
	}
	return true
}
