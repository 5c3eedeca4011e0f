package screener

import "fii-monitor/models"

// AlertKind identifies why a single fund deserves its own message
type AlertKind string

const (
	AlertHigh     AlertKind = "high"
	AlertLow      AlertKind = "low"
	AlertDiscount AlertKind = "discount"
)

// AlertThresholds configures per-fund alerts. HighPct and LowPct are day changes
// in percent; DiscountPVP is the P/VP ceiling.
type AlertThresholds struct {
	HighPct     float64
	LowPct      float64
	DiscountPVP float64
}

// Alert is a single fund crossing a threshold
type Alert struct {
	Kind   AlertKind
	Record models.NormalizedRecord
}

// Alerts lists high movers (largest first), then low movers (most negative
// first), then discounts in input order. A fund can appear under more than one kind.
func Alerts(records []models.NormalizedRecord, th AlertThresholds) []Alert {
	ranking := Rank(records)
	alerts := []Alert{}

	for _, r := range ranking.Gainers {
		if r.DayChangePct() >= th.HighPct {
			alerts = append(alerts, Alert{Kind: AlertHigh, Record: r})
		}
	}
	for _, r := range ranking.Losers {
		if r.DayChangePct() <= th.LowPct {
			alerts = append(alerts, Alert{Kind: AlertLow, Record: r})
		}
	}
	for _, r := range records {
		if r.PriceToBook.Valid && r.PriceToBook.Float64 < th.DiscountPVP {
			alerts = append(alerts, Alert{Kind: AlertDiscount, Record: r})
		}
	}
	return alerts
}
