package models

// Sector classifies a fund and describes the macro drivers of its segment
type Sector struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	RisesWith   []string `json:"rises_with"`
	FallsWith   []string `json:"falls_with"`
	Indices     []string `json:"indices"`
	Resilient   bool     `json:"resilient"`
	Description string   `json:"description"`
}

// UnknownSector is returned for funds missing from the sector map
var UnknownSector = Sector{Name: "Other", Type: "Unclassified"}

// ResearchNote is public information gathered about a fund outside the market-data provider
type ResearchNote struct {
	Ticker  string   `json:"ticker"`
	Sources []string `json:"sources"`
	Summary string   `json:"summary"`
	Sector  string   `json:"sector"`
	Manager string   `json:"manager"`
}

// IsEmpty reports whether the lookup found nothing usable
func (n ResearchNote) IsEmpty() bool {
	return len(n.Sources) == 0
}
