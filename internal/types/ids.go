// internal/types/ids.go
package types

import "github.com/google/uuid"

type UserID string
type ThreadID string
type RunID string
type CallID string
type TurnID string

// NewTurnID returns a fresh identifier used to correlate log lines
// belonging to one user turn.
func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}
