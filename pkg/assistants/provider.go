// Package assistants defines the provider-agnostic contract for driving a
// hosted assistant: durable threads, per-turn runs, and tool-output
// submission. Implementations live in subpackages.
package assistants

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the provider no longer knows a thread or
// run id. Callers treat a stale thread id as a signal to create a fresh one.
var ErrNotFound = errors.New("assistants: not found")

// Provider is implemented by hosted-assistant backends.
type Provider interface {
	CreateThread(ctx context.Context) (threadID string, err error)
	AddMessage(ctx context.Context, threadID, text string) error
	CreateRun(ctx context.Context, threadID string) (runID string, err error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error
	LatestAssistantMessage(ctx context.Context, threadID string) (string, error)
}
