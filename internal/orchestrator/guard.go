// internal/orchestrator/guard.go
package orchestrator

import (
	"sync"
	"time"

	"github.com/user/aide/internal/types"
)

// Guard enforces the per-user concurrency and rate rules: at most one
// active run per user, and a minimum interval between accepted turns.
// State is in-memory and resets on restart; it is an ordering safeguard,
// not a durability guarantee.
type Guard struct {
	mu          sync.Mutex
	inFlight    map[types.UserID]bool
	lastAccept  map[types.UserID]time.Time
	minInterval time.Duration
}

// NewGuard creates a guard with the given minimum interval between turns.
func NewGuard(minInterval time.Duration) *Guard {
	return &Guard{
		inFlight:    make(map[types.UserID]bool),
		lastAccept:  make(map[types.UserID]time.Time),
		minInterval: minInterval,
	}
}

// Admit accepts or rejects a turn in one step. The throttle window keys
// off the last accepted turn only: a rejection, throttled or busy, never
// advances the timestamp, so the user's next retry is judged against the
// turn that actually ran.
func (g *Guard) Admit(userID types.UserID, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.lastAccept[userID]; ok && now.Sub(last) < g.minInterval {
		return types.ErrThrottled
	}
	if g.inFlight[userID] {
		return types.ErrBusy
	}
	g.inFlight[userID] = true
	g.lastAccept[userID] = now
	return nil
}

// TryAcquire marks the user as having an active run without touching the
// throttle state. It returns false when a run is already active.
func (g *Guard) TryAcquire(userID types.UserID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[userID] {
		return false
	}
	g.inFlight[userID] = true
	return true
}

// Release clears the user's active-run marker.
func (g *Guard) Release(userID types.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, userID)
}
