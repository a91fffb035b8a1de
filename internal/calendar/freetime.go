// internal/calendar/freetime.go
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/user/aide/internal/types"
)

// Slot is one open interval found by FindFreeTime.
type Slot struct {
	Start time.Time
	End   time.Time
}

const freeTimeMaxPerSource = 200

// FindFreeTime scans working hours (weekdays, 09:00-17:00 local) over the
// next daysAhead days and returns up to maxSlots openings of the requested
// duration that do not overlap any timed event from any source. All-day
// events do not block slots.
func (e *Engine) FindFreeTime(ctx context.Context, sources []types.CalendarSource, now time.Time, duration time.Duration, daysAhead, maxSlots int) ([]Slot, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}

	events, err := e.ListUnified(ctx, sources, now, now.AddDate(0, 0, daysAhead), freeTimeMaxPerSource)
	if err != nil {
		return nil, err
	}

	var busy []Slot
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		busy = append(busy, Slot{Start: ev.Start, End: ev.End})
	}

	local := now.In(e.loc)
	var slots []Slot

	for day := 0; day < daysAhead && len(slots) < maxSlots; day++ {
		date := local.AddDate(0, 0, day)
		switch date.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}

		y, m, d := date.Date()
		for hour := 9; hour < 17 && len(slots) < maxSlots; hour++ {
			start := time.Date(y, m, d, hour, 0, 0, 0, e.loc)
			end := start.Add(duration)
			if !start.After(local) {
				continue
			}
			if overlapsAny(start, end, busy) {
				continue
			}
			slots = append(slots, Slot{Start: start, End: end})
		}
	}
	return slots, nil
}

func overlapsAny(start, end time.Time, busy []Slot) bool {
	for _, b := range busy {
		if start.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	return false
}
