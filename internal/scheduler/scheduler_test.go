// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/user/aide/internal/delivery"
)

func TestFireDeliversBriefing(t *testing.T) {
	reg := delivery.NewRegistry()
	var gotKey, gotMsg string
	reg.Register("telegram:", func(sessionKey, message string) error {
		gotKey = sessionKey
		gotMsg = message
		return nil
	})

	s := New(reg, func(ctx context.Context) (string, error) {
		return "Morning briefing", nil
	}, "telegram:42", "30 7 * * *")

	s.Fire(context.Background())

	if gotKey != "telegram:42" {
		t.Errorf("expected delivery to telegram:42, got %q", gotKey)
	}
	if gotMsg != "Morning briefing" {
		t.Errorf("unexpected message %q", gotMsg)
	}
}

func TestFireSwallowsBrieferError(t *testing.T) {
	reg := delivery.NewRegistry()
	delivered := false
	reg.Register("telegram:", func(sessionKey, message string) error {
		delivered = true
		return nil
	})

	s := New(reg, func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("calendar down")
	}, "telegram:42", "30 7 * * *")

	s.Fire(context.Background())
	if delivered {
		t.Error("failed briefing must not be delivered")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(delivery.NewRegistry(), func(ctx context.Context) (string, error) {
		return "", nil
	}, "telegram:42", "not a cron expression")

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	s.Stop()
}
