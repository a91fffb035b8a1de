// internal/calendar/search.go
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/aide/internal/types"
)

// FindEvent locates the first event whose title contains term
// (case-insensitive), searching from a week back through daysAhead days
// forward across sources in registration order. It also returns the
// source the event lives on so callers can mutate it in place.
func (e *Engine) FindEvent(ctx context.Context, sources []types.CalendarSource, now time.Time, term string, daysAhead int) (types.CalendarEvent, types.CalendarSource, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return types.CalendarEvent{}, types.CalendarSource{}, fmt.Errorf("empty search term")
	}

	start := now.AddDate(0, 0, -7)
	end := now.AddDate(0, 0, daysAhead)

	for _, res := range e.querySources(ctx, sources, start, end, freeTimeMaxPerSource) {
		if res.Err != nil {
			continue
		}
		for _, ev := range res.Events {
			if strings.Contains(strings.ToLower(ev.Title), needle) {
				return ev, res.Source, nil
			}
		}
	}
	return types.CalendarEvent{}, types.CalendarSource{}, fmt.Errorf("no event matching %q: %w", term, types.ErrNotFound)
}
