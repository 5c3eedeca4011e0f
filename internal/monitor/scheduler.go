package monitor

import (
	"context"
	"fmt"
	"time"

	"fii-monitor/observability"

	"github.com/robfig/cron/v3"
)

// Scheduler ticks the monitor on a fixed interval
type Scheduler struct {
	cron    *cron.Cron
	monitor *Monitor
	ctx     context.Context
}

// NewScheduler registers the monitor tick every interval, evaluated in loc
func NewScheduler(ctx context.Context, m *Monitor, interval time.Duration, loc *time.Location) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("monitor interval must be positive, got %s", interval)
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		monitor: m,
		ctx:     ctx,
	}
	schedule := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("register monitor task: %w", err)
	}
	observability.Info("monitor scheduled", "schedule", schedule, "timezone", loc.String())
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	observability.Info("scheduler started")
}

// Stop stops the scheduler and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	observability.Info("scheduler stopped")
}

// Next returns when the next tick fires
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	if s.ctx.Err() != nil {
		return
	}
	s.monitor.Tick(s.ctx)
}
