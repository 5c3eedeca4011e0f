package screener

import "fii-monitor/models"

// Discounts partitions funds trading below the P/VP threshold
type Discounts struct {
	// Deepening funds are also down on the day
	Deepening []models.NormalizedRecord `json:"deepening"`
	// Stable funds are flat or up on the day
	Stable []models.NormalizedRecord `json:"stable"`
}

// ClassifyDiscounts selects records with a P/VP below threshold. Caller order is
// preserved within each partition.
func ClassifyDiscounts(records []models.NormalizedRecord, threshold float64) Discounts {
	d := Discounts{
		Deepening: []models.NormalizedRecord{},
		Stable:    []models.NormalizedRecord{},
	}

	for _, r := range records {
		if !r.PriceToBook.Valid || r.PriceToBook.Float64 >= threshold {
			continue
		}
		if r.IsDown() {
			d.Deepening = append(d.Deepening, r)
		} else {
			d.Stable = append(d.Stable, r)
		}
	}
	return d
}

// All returns deepening discounts followed by stable ones
func (d Discounts) All() []models.NormalizedRecord {
	all := make([]models.NormalizedRecord, 0, d.Len())
	all = append(all, d.Deepening...)
	return append(all, d.Stable...)
}

// Len returns the number of discounted records
func (d Discounts) Len() int {
	return len(d.Deepening) + len(d.Stable)
}
