// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/aide/internal/assemble"
	"github.com/user/aide/internal/dispatch"
	"github.com/user/aide/internal/types"
	"github.com/user/aide/pkg/assistants"
)

// Orchestrator owns the per-user conversation state machine. For each turn
// it resolves the user's thread, appends the message, drives a run through
// its lifecycle (dispatching requested tool calls back into the registry),
// and returns the assistant's reply assembled into transport chunks.
//
// All mutable shared state (thread mapping, guard markers) lives here and
// in the guard; capability handlers never touch it.
type Orchestrator struct {
	provider  assistants.Provider
	registry  *dispatch.Registry
	threads   types.ThreadStore
	guard     *Guard
	poll      PollPolicy
	assembler *assemble.Assembler
	loc       *time.Location
	sources   []string

	now func() time.Time
}

// New creates an orchestrator. sources are the probed calendar names,
// surfaced in the context preamble so the assistant knows what it can
// reach.
func New(
	provider assistants.Provider,
	registry *dispatch.Registry,
	threads types.ThreadStore,
	guard *Guard,
	poll PollPolicy,
	assembler *assemble.Assembler,
	loc *time.Location,
	sources []string,
) *Orchestrator {
	return &Orchestrator{
		provider:  provider,
		registry:  registry,
		threads:   threads,
		guard:     guard,
		poll:      poll,
		assembler: assembler,
		loc:       loc,
		sources:   sources,
		now:       time.Now,
	}
}

// HandleUserTurn processes one inbound message and returns the outbound
// chunks. Rejections and failures come back as sentinel-classified errors
// (types.ErrBusy, types.ErrThrottled, types.ErrTimeout); the transport maps
// them to stable user notices and never sees raw provider detail.
func (o *Orchestrator) HandleUserTurn(ctx context.Context, userID types.UserID, text string) ([]string, error) {
	turnID := types.NewTurnID()
	now := o.now()

	if err := o.guard.Admit(userID, now); err != nil {
		return nil, fmt.Errorf("turn rejected for %s: %w", userID, err)
	}
	defer o.guard.Release(userID)

	threadID, err := o.ensureThread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve thread: %w", err)
	}

	message := o.buildPreamble(now) + strings.TrimSpace(text)
	if err := o.provider.AddMessage(ctx, string(threadID), message); err != nil {
		if !errors.Is(err, assistants.ErrNotFound) {
			return nil, fmt.Errorf("append message: %w", err)
		}
		// Stored thread id is stale. Replace it immediately and retry once
		// on the fresh thread.
		slog.Warn("stored thread invalid, replacing", "user_id", userID, "thread_id", threadID)
		threadID, err = o.replaceThread(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("replace thread: %w", err)
		}
		if err := o.provider.AddMessage(ctx, string(threadID), message); err != nil {
			return nil, fmt.Errorf("append message to fresh thread: %w", err)
		}
	}

	runID, err := o.provider.CreateRun(ctx, string(threadID))
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	slog.Info("run created", "turn_id", turnID, "user_id", userID, "run_id", runID)

	if err := o.driveRun(ctx, turnID, threadID, types.RunID(runID)); err != nil {
		return nil, err
	}

	reply, err := o.provider.LatestAssistantMessage(ctx, string(threadID))
	if err != nil {
		return nil, fmt.Errorf("fetch reply: %w", err)
	}
	return o.assembler.Assemble(reply), nil
}

// driveRun polls the run until it completes, servicing requires_action
// batches as they appear. The attempt bound imposes a synthetic timeout;
// a timed-out run id is abandoned, never resumed.
func (o *Orchestrator) driveRun(ctx context.Context, turnID types.TurnID, threadID types.ThreadID, runID types.RunID) error {
	for attempt := 1; attempt <= o.poll.MaxAttempts; attempt++ {
		run, err := o.provider.GetRun(ctx, string(threadID), string(runID))
		if err != nil {
			slog.Warn("run status fetch failed", "turn_id", turnID, "attempt", attempt, "error", err)
			if err := o.poll.Wait(ctx); err != nil {
				return err
			}
			continue
		}

		slog.Debug("run status", "turn_id", turnID, "attempt", attempt, "status", run.Status)

		switch run.Status {
		case assistants.StatusCompleted:
			return nil
		case assistants.StatusRequiresAction:
			outputs := o.registry.DispatchBatch(ctx, run.ToolCalls)
			if err := o.provider.SubmitToolOutputs(ctx, string(threadID), string(runID), outputs); err != nil {
				return fmt.Errorf("submit tool outputs: %w", err)
			}
			slog.Info("tool outputs submitted", "turn_id", turnID, "count", len(outputs))
			continue
		case assistants.StatusFailed, assistants.StatusCancelled, assistants.StatusExpired:
			return fmt.Errorf("run %s ended %s", runID, run.Status)
		}

		if err := o.poll.Wait(ctx); err != nil {
			return err
		}
	}
	slog.Warn("run poll bound exceeded", "turn_id", turnID, "run_id", runID, "attempts", o.poll.MaxAttempts)
	return fmt.Errorf("run %s: %w", runID, types.ErrTimeout)
}

// ensureThread returns the user's thread id, creating and persisting one
// on first contact.
func (o *Orchestrator) ensureThread(ctx context.Context, userID types.UserID) (types.ThreadID, error) {
	if id, ok, err := o.threads.Get(userID); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}
	return o.replaceThread(ctx, userID)
}

// replaceThread creates a fresh provider thread and stores it as the
// user's mapping, displacing any previous id.
func (o *Orchestrator) replaceThread(ctx context.Context, userID types.UserID) (types.ThreadID, error) {
	id, err := o.provider.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	threadID := types.ThreadID(id)
	if err := o.threads.Put(userID, threadID); err != nil {
		return "", fmt.Errorf("store thread: %w", err)
	}
	slog.Info("thread created", "user_id", userID, "thread_id", threadID)
	return threadID, nil
}

// buildPreamble gives the assistant today's date context so relative terms
// like "tomorrow" resolve against the configured zone, plus the reachable
// calendar names.
func (o *Orchestrator) buildPreamble(now time.Time) string {
	local := now.In(o.loc)
	tomorrow := local.AddDate(0, 0, 1)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Context: today is %s (%s), tomorrow is %s (%s), timezone %s.",
		local.Format("Monday, January 2, 2006"), local.Format("2006-01-02"),
		tomorrow.Format("Monday, January 2, 2006"), tomorrow.Format("2006-01-02"),
		o.loc.String())
	if len(o.sources) > 0 {
		fmt.Fprintf(&sb, " Available calendars: %s.", strings.Join(o.sources, ", "))
	}
	sb.WriteString("\n\n")
	return sb.String()
}
