package models

import (
	"time"

	"github.com/google/uuid"
)

// MonitorRunStatus represents the status of a monitor run
type MonitorRunStatus string

const (
	MonitorRunStatusRunning   MonitorRunStatus = "running"
	MonitorRunStatusCompleted MonitorRunStatus = "completed"
	MonitorRunStatusSkipped   MonitorRunStatus = "skipped"
	MonitorRunStatusFailed    MonitorRunStatus = "failed"
)

// MonitorRun represents a single execution of the watchlist monitor
type MonitorRun struct {
	ID         uuid.UUID          `json:"id"`
	RunAt      time.Time          `json:"run_at"`
	Tickers    []string           `json:"tickers"`
	Records    []NormalizedRecord `json:"records"`
	Failed     []string           `json:"failed"`
	Delivered  bool               `json:"delivered"`
	Alerts     int                `json:"alerts"`
	DurationMs int64              `json:"duration_ms"`
	Status     MonitorRunStatus   `json:"status"`
	Error      string             `json:"error,omitempty"`
}

// NewMonitorRun creates a new MonitorRun with default values
func NewMonitorRun(tickers []string, now time.Time) *MonitorRun {
	return &MonitorRun{
		ID:      uuid.New(),
		RunAt:   now,
		Tickers: tickers,
		Records: []NormalizedRecord{},
		Failed:  []string{},
		Status:  MonitorRunStatusRunning,
	}
}

// Complete marks the run as completed
func (m *MonitorRun) Complete(durationMs int64, delivered bool) {
	m.Status = MonitorRunStatusCompleted
	m.DurationMs = durationMs
	m.Delivered = delivered
}

// Skip marks the run as skipped with the reason
func (m *MonitorRun) Skip(reason string) {
	m.Status = MonitorRunStatusSkipped
	m.Error = reason
}

// Fail marks the run as failed with an error message
func (m *MonitorRun) Fail(err string, durationMs int64) {
	m.Status = MonitorRunStatusFailed
	m.Error = err
	m.DurationMs = durationMs
}

// IsCompleted returns true if the run completed successfully
func (m *MonitorRun) IsCompleted() bool {
	return m.Status == MonitorRunStatusCompleted
}
