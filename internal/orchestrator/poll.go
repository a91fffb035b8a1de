// internal/orchestrator/poll.go
package orchestrator

import (
	"context"
	"time"
)

// PollPolicy bounds the run-status poll loop: a fixed interval between
// checks and a hard attempt ceiling. Exceeding the ceiling forces a
// synthetic timeout regardless of what the provider later reports.
type PollPolicy struct {
	MaxAttempts int
	Interval    time.Duration

	// sleep is replaceable in tests so poll loops run without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPollPolicy returns the production policy: 20 attempts, 2 seconds
// apart, bounding a run at roughly 40 seconds.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{MaxAttempts: 20, Interval: 2 * time.Second}
}

// Wait blocks for one poll interval or until the context is cancelled.
func (p PollPolicy) Wait(ctx context.Context) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, p.Interval)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
