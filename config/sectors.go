package config

import (
	_ "embed"
	"fmt"
	"strings"

	"fii-monitor/models"

	"gopkg.in/yaml.v3"
)

//go:embed sectors.yaml
var sectorsYAML []byte

type fundEntry struct {
	Sector string `yaml:"sector"`
	Type   string `yaml:"type"`
}

type segmentEntry struct {
	RisesWith   []string `yaml:"rises_with"`
	FallsWith   []string `yaml:"falls_with"`
	Indices     []string `yaml:"indices"`
	Resilient   bool     `yaml:"resilient"`
	Description string   `yaml:"description"`
}

// SectorMap classifies funds by sector and carries each sector's macro drivers
type SectorMap struct {
	Funds    map[string]fundEntry    `yaml:"funds"`
	Segments map[string]segmentEntry `yaml:"segments"`
}

// LoadSectors parses the embedded sector map
func LoadSectors() (*SectorMap, error) {
	return ParseSectors(sectorsYAML)
}

// ParseSectors parses a sector map document
func ParseSectors(data []byte) (*SectorMap, error) {
	var m SectorMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse sector map: %w", err)
	}
	for ticker, f := range m.Funds {
		if f.Sector == "" {
			return nil, fmt.Errorf("sector map: fund %s has no sector", ticker)
		}
	}
	return &m, nil
}

// Lookup resolves a ticker, with or without the market suffix. Unknown funds
// get models.UnknownSector.
func (m *SectorMap) Lookup(ticker string) models.Sector {
	if m == nil {
		return models.UnknownSector
	}
	key := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(ticker)), models.TickerSuffix)
	f, ok := m.Funds[key]
	if !ok {
		return models.UnknownSector
	}

	sec := models.Sector{Name: f.Sector, Type: f.Type}
	if seg, ok := m.Segments[f.Sector]; ok {
		sec.RisesWith = seg.RisesWith
		sec.FallsWith = seg.FallsWith
		sec.Indices = seg.Indices
		sec.Resilient = seg.Resilient
		sec.Description = seg.Description
	}
	return sec
}
