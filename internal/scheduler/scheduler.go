// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/user/aide/internal/delivery"
)

// Briefer builds the briefing text pushed on schedule.
type Briefer func(ctx context.Context) (string, error)

// Scheduler fires the morning briefing on a cron schedule and pushes it
// through the delivery registry.
type Scheduler struct {
	registry   *delivery.Registry
	briefer    Briefer
	cron       *cron.Cron
	sessionKey string
	schedule   string
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler pushing briefings to sessionKey on the given
// cron schedule.
func New(registry *delivery.Registry, briefer Briefer, sessionKey, schedule string) *Scheduler {
	return &Scheduler{
		registry:   registry,
		briefer:    briefer,
		cron:       cron.New(cron.WithParser(cronParser)),
		sessionKey: sessionKey,
		schedule:   schedule,
	}
}

// Start registers the briefing entry and starts the cron ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		slog.Info("cron firing briefing", "session_key", s.sessionKey)
		s.Fire(ctx)
	})
	if err != nil {
		return err
	}
	slog.Info("scheduled briefing", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// Fire builds and delivers one briefing immediately.
func (s *Scheduler) Fire(ctx context.Context) {
	text, err := s.briefer(ctx)
	if err != nil {
		slog.Error("briefing build failed", "error", err)
		return
	}
	if err := s.registry.Deliver(s.sessionKey, text); err != nil {
		slog.Error("briefing delivery failed", "error", err)
	}
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
