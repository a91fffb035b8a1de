// internal/calendar/freetime_test.go
package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/user/aide/internal/types"
)

func TestFindFreeTimeSkipsBusyHours(t *testing.T) {
	loc := testLocation(t)
	// Monday 2026-03-02, meeting 10:00-12:00.
	api := &fakeCalendarAPI{events: map[string][]types.RawEvent{
		"a": {{ID: "m1", Title: "Standup", Start: "2026-03-02T10:00:00-05:00", End: "2026-03-02T12:00:00-05:00"}},
	}}
	engine := NewEngine(api, loc)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, loc)
	slots, err := engine.FindFreeTime(context.Background(), testSources("a"), now, time.Hour, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, slot := range slots {
		h := slot.Start.Hour()
		if h == 10 || h == 11 {
			t.Errorf("slot at %02d:00 overlaps the meeting", h)
		}
	}
	if len(slots) == 0 {
		t.Fatal("expected open slots around the meeting")
	}
	if slots[0].Start.Hour() != 9 {
		t.Errorf("expected first slot at 09:00, got %02d:00", slots[0].Start.Hour())
	}
}

func TestFindFreeTimeIgnoresAllDayEvents(t *testing.T) {
	loc := testLocation(t)
	api := &fakeCalendarAPI{events: map[string][]types.RawEvent{
		"a": {{ID: "d1", Title: "Holiday", Start: "2026-03-02", End: "2026-03-03"}},
	}}
	engine := NewEngine(api, loc)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, loc)
	slots, err := engine.FindFreeTime(context.Background(), testSources("a"), now, time.Hour, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("all-day events must not block working-hour slots")
	}
}

func TestFindFreeTimeSkipsWeekends(t *testing.T) {
	loc := testLocation(t)
	api := &fakeCalendarAPI{events: map[string][]types.RawEvent{}}
	engine := NewEngine(api, loc)

	// Saturday 2026-03-07.
	now := time.Date(2026, 3, 7, 8, 0, 0, 0, loc)
	slots, err := engine.FindFreeTime(context.Background(), testSources("a"), now, time.Hour, 2, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, slot := range slots {
		switch slot.Start.Weekday() {
		case time.Saturday, time.Sunday:
			t.Errorf("slot on %s", slot.Start.Weekday())
		}
	}
}

func TestFindFreeTimeSkipsPastHours(t *testing.T) {
	loc := testLocation(t)
	api := &fakeCalendarAPI{events: map[string][]types.RawEvent{}}
	engine := NewEngine(api, loc)

	// Monday mid-afternoon: morning slots are gone.
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, loc)
	slots, err := engine.FindFreeTime(context.Background(), testSources("a"), now, time.Hour, 1, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, slot := range slots {
		if !slot.Start.After(now) {
			t.Errorf("slot %v is in the past", slot.Start)
		}
	}
}

func TestFindFreeTimeRejectsNonPositiveDuration(t *testing.T) {
	engine := NewEngine(&fakeCalendarAPI{}, testLocation(t))
	if _, err := engine.FindFreeTime(context.Background(), testSources("a"), time.Now(), 0, 7, 5); err == nil {
		t.Fatal("expected error for zero duration")
	}
}
