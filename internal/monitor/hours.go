package monitor

import (
	"time"

	"fii-monitor/config"
)

// TradingHours is the B3 session window in which summaries are pushed
type TradingHours struct {
	Location  *time.Location
	StartHour int
	EndHour   int
}

// NewTradingHours builds the window from the market configuration
func NewTradingHours(cfg config.MarketConfig) TradingHours {
	return TradingHours{
		Location:  cfg.Location(),
		StartHour: cfg.StartHour,
		EndHour:   cfg.EndHour,
	}
}

// Open reports whether t falls on a weekday with StartHour <= hour < EndHour,
// both taken in the exchange timezone.
func (h TradingHours) Open(t time.Time) bool {
	local := t.In(h.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return local.Hour() >= h.StartHour && local.Hour() < h.EndHour
}
