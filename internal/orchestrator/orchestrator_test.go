// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/user/aide/internal/assemble"
	"github.com/user/aide/internal/dispatch"
	"github.com/user/aide/internal/types"
	"github.com/user/aide/pkg/assistants"
)

// fakeProvider scripts a run's status sequence and records calls.
type fakeProvider struct {
	statuses  []assistants.RunStatus
	toolCalls []assistants.ToolCall

	threadSeq    int
	staleThreads map[string]bool
	messages     map[string][]string
	submitted    [][]assistants.ToolOutput
	getRunCalls  int
	reply        string
}

func newFakeProvider(statuses ...assistants.RunStatus) *fakeProvider {
	return &fakeProvider{
		statuses:     statuses,
		staleThreads: map[string]bool{},
		messages:     map[string][]string{},
		reply:        "hello there",
	}
}

func (f *fakeProvider) CreateThread(ctx context.Context) (string, error) {
	f.threadSeq++
	return fmt.Sprintf("thread-%d", f.threadSeq), nil
}

func (f *fakeProvider) AddMessage(ctx context.Context, threadID, text string) error {
	if f.staleThreads[threadID] {
		return fmt.Errorf("thread %s: %w", threadID, assistants.ErrNotFound)
	}
	f.messages[threadID] = append(f.messages[threadID], text)
	return nil
}

func (f *fakeProvider) CreateRun(ctx context.Context, threadID string) (string, error) {
	return "run-1", nil
}

func (f *fakeProvider) GetRun(ctx context.Context, threadID, runID string) (*assistants.Run, error) {
	status := assistants.StatusInProgress
	if f.getRunCalls < len(f.statuses) {
		status = f.statuses[f.getRunCalls]
	}
	f.getRunCalls++

	run := &assistants.Run{ID: runID, ThreadID: threadID, Status: status}
	if status == assistants.StatusRequiresAction {
		run.ToolCalls = f.toolCalls
	}
	return run, nil
}

func (f *fakeProvider) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []assistants.ToolOutput) error {
	f.submitted = append(f.submitted, outputs)
	return nil
}

func (f *fakeProvider) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	return f.reply, nil
}

// memThreads is an in-memory ThreadStore for tests.
type memThreads struct {
	m map[types.UserID]types.ThreadID
}

func newMemThreads() *memThreads { return &memThreads{m: map[types.UserID]types.ThreadID{}} }

func (s *memThreads) Get(userID types.UserID) (types.ThreadID, bool, error) {
	id, ok := s.m[userID]
	return id, ok, nil
}

func (s *memThreads) Put(userID types.UserID, threadID types.ThreadID) error {
	s.m[userID] = threadID
	return nil
}

func testOrchestrator(t *testing.T, provider assistants.Provider, threads types.ThreadStore) *Orchestrator {
	t.Helper()
	reg := dispatch.NewRegistry(4, nil)
	reg.Register(dispatch.Capability{
		Name:   "echo",
		Params: json.RawMessage(`{"type": "object", "properties": {}}`),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "echoed", nil
		},
	})

	poll := PollPolicy{
		MaxAttempts: 5,
		Interval:    time.Second,
		sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	}
	guard := NewGuard(5 * time.Second)
	return New(provider, reg, threads, guard, poll, assemble.New(2000), time.UTC, []string{"Personal"})
}

func TestHandleUserTurnCompletes(t *testing.T) {
	provider := newFakeProvider(assistants.StatusQueued, assistants.StatusInProgress, assistants.StatusCompleted)
	threads := newMemThreads()
	o := testOrchestrator(t, provider, threads)

	chunks, err := o.HandleUserTurn(context.Background(), "u1", "what's on today?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "hello there" {
		t.Errorf("unexpected chunks: %v", chunks)
	}

	// Thread created and persisted for reuse.
	if id, ok, _ := threads.Get("u1"); !ok || id == "" {
		t.Error("thread mapping not persisted")
	}

	// The message carries the date preamble ahead of the user text.
	msgs := provider.messages["thread-1"]
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Context: today is") || !strings.HasSuffix(msgs[0], "what's on today?") {
		t.Errorf("preamble missing or malformed: %q", msgs)
	}
}

func TestHandleUserTurnServicesToolCalls(t *testing.T) {
	provider := newFakeProvider(assistants.StatusRequiresAction, assistants.StatusCompleted)
	provider.toolCalls = []assistants.ToolCall{
		{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{}`)},
		{ID: "c2", Name: "unknown_tool", Arguments: json.RawMessage(`{}`)},
	}
	o := testOrchestrator(t, provider, newMemThreads())

	if _, err := o.HandleUserTurn(context.Background(), "u1", "do things"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(provider.submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(provider.submitted))
	}
	outputs := provider.submitted[0]
	if len(outputs) != 2 {
		t.Fatalf("expected one output per call, got %d", len(outputs))
	}
	if outputs[0].CallID != "c1" || outputs[0].Output != "echoed" {
		t.Errorf("unexpected first output: %+v", outputs[0])
	}
	if outputs[1].CallID != "c2" || !strings.Contains(outputs[1].Output, "unknown capability") {
		t.Errorf("unknown tool must still produce an output: %+v", outputs[1])
	}
}

func TestHandleUserTurnTimesOut(t *testing.T) {
	// Never leaves in_progress: the attempt bound forces a timeout.
	provider := newFakeProvider()
	o := testOrchestrator(t, provider, newMemThreads())

	_, err := o.HandleUserTurn(context.Background(), "u1", "slow question")
	if !errors.Is(err, types.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if provider.getRunCalls != 5 {
		t.Errorf("expected exactly MaxAttempts polls, got %d", provider.getRunCalls)
	}
}

func TestHandleUserTurnFailedRun(t *testing.T) {
	provider := newFakeProvider(assistants.StatusFailed)
	o := testOrchestrator(t, provider, newMemThreads())

	_, err := o.HandleUserTurn(context.Background(), "u1", "hi")
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Fatalf("expected failed-run error, got %v", err)
	}
}

func TestHandleUserTurnThrottled(t *testing.T) {
	provider := newFakeProvider(assistants.StatusCompleted)
	o := testOrchestrator(t, provider, newMemThreads())

	if _, err := o.HandleUserTurn(context.Background(), "u1", "first"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	_, err := o.HandleUserTurn(context.Background(), "u1", "second")
	if !errors.Is(err, types.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

func TestHandleUserTurnBusy(t *testing.T) {
	provider := newFakeProvider(assistants.StatusCompleted)
	o := testOrchestrator(t, provider, newMemThreads())

	// Hold the user's run slot as if a turn were mid-flight.
	o.guard.TryAcquire("u1")
	defer o.guard.Release("u1")

	// Different base time so the throttle does not mask the busy check.
	o.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err := o.HandleUserTurn(context.Background(), "u1", "while busy")
	if !errors.Is(err, types.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestHandleUserTurnReplacesStaleThread(t *testing.T) {
	provider := newFakeProvider(assistants.StatusCompleted)
	threads := newMemThreads()
	threads.Put("u1", "thread-dead")
	provider.staleThreads["thread-dead"] = true

	o := testOrchestrator(t, provider, threads)

	chunks, err := o.HandleUserTurn(context.Background(), "u1", "are you there?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected a reply on the fresh thread")
	}

	id, ok, _ := threads.Get("u1")
	if !ok || id == "thread-dead" {
		t.Errorf("stale thread mapping not replaced, still %q", id)
	}
	if len(provider.messages[string(id)]) != 1 {
		t.Errorf("message not delivered to the fresh thread")
	}
}
