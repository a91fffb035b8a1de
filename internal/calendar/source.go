// internal/calendar/source.go
package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/aide/internal/types"
)

// Registry holds the calendar sources that passed the startup probe, in
// registration order. It is populated once and read-only afterward, so it
// is shared without locking.
type Registry struct {
	sources []types.CalendarSource
}

// Sources returns the probed sources in registration order.
func (r *Registry) Sources() []types.CalendarSource {
	return r.sources
}

// Names returns the display names of the probed sources.
func (r *Registry) Names() []string {
	names := make([]string, len(r.sources))
	for i, src := range r.sources {
		names[i] = src.Name
	}
	return names
}

// Empty reports whether no source passed the probe.
func (r *Registry) Empty() bool {
	return len(r.sources) == 0
}

// Probe issues a minimal read against each candidate and admits the ones
// that respond. An unreachable candidate is logged and excluded; it never
// fails the probe as a whole.
func Probe(ctx context.Context, api types.CalendarAPI, candidates []types.Candidate) *Registry {
	reg := &Registry{}
	now := time.Now()

	for _, cand := range candidates {
		if cand.SourceID == "" {
			continue
		}
		_, err := api.ListEvents(ctx, cand.SourceID, now, now.Add(24*time.Hour), 1)
		if err != nil {
			slog.Warn("calendar source unreachable", "name", cand.Name, "source_id", cand.SourceID, "error", err)
			continue
		}
		slog.Info("calendar source reachable", "name", cand.Name, "source_id", cand.SourceID)
		reg.sources = append(reg.sources, types.CalendarSource{
			Name:     cand.Name,
			SourceID: cand.SourceID,
			Kind:     cand.Kind,
		})
	}
	return reg
}
