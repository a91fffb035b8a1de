// internal/dispatch/registry_test.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/aide/pkg/assistants"
)

func emptySchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func TestDispatchBatchOneOutputPerCall(t *testing.T) {
	reg := NewRegistry(4, nil)
	reg.Register(Capability{
		Name:   "ok",
		Params: emptySchema(),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "fine", nil
		},
	})
	reg.Register(Capability{
		Name:   "fails",
		Params: emptySchema(),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "", fmt.Errorf("boom")
		},
	})
	reg.Register(Capability{
		Name:   "panics",
		Params: emptySchema(),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			panic("handler bug")
		},
	})

	calls := []assistants.ToolCall{
		{ID: "c1", Name: "ok"},
		{ID: "c2", Name: "fails"},
		{ID: "c3", Name: "panics"},
		{ID: "c4", Name: "never_registered"},
	}
	outputs := reg.DispatchBatch(context.Background(), calls)

	if len(outputs) != len(calls) {
		t.Fatalf("expected %d outputs, got %d", len(calls), len(outputs))
	}
	for i, call := range calls {
		if outputs[i].CallID != call.ID {
			t.Errorf("output %d: expected call id %s, got %s", i, call.ID, outputs[i].CallID)
		}
		if outputs[i].Output == "" {
			t.Errorf("output %d is empty", i)
		}
	}

	if outputs[0].Output != "fine" {
		t.Errorf("expected handler output, got %q", outputs[0].Output)
	}
	if !strings.HasPrefix(outputs[1].Output, "error:") {
		t.Errorf("handler error not shaped as error text: %q", outputs[1].Output)
	}
	if !strings.Contains(outputs[2].Output, "failed unexpectedly") {
		t.Errorf("panic not shaped as error text: %q", outputs[2].Output)
	}
	if !strings.Contains(outputs[3].Output, "unknown capability") {
		t.Errorf("unknown capability not reported: %q", outputs[3].Output)
	}
}

func TestDispatchBatchValidatesArguments(t *testing.T) {
	reg := NewRegistry(4, nil)
	var invoked atomic.Bool
	reg.Register(Capability{
		Name: "strict",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {"query": {"type": "string"}},
			"required": ["query"]
		}`),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			invoked.Store(true)
			return "ran", nil
		},
	})

	outputs := reg.DispatchBatch(context.Background(), []assistants.ToolCall{
		{ID: "c1", Name: "strict", Arguments: json.RawMessage(`{}`)},
	})
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if !strings.Contains(outputs[0].Output, "invalid arguments") {
		t.Errorf("validation failure not reported: %q", outputs[0].Output)
	}
	if invoked.Load() {
		t.Error("handler ran despite failed validation")
	}
}

func TestDispatchBatchRunsConcurrently(t *testing.T) {
	reg := NewRegistry(4, nil)

	release := make(chan struct{})
	var running atomic.Int32
	reg.Register(Capability{
		Name:   "slow",
		Params: emptySchema(),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			running.Add(1)
			<-release
			return "done", nil
		},
	})

	done := make(chan []assistants.ToolOutput)
	go func() {
		done <- reg.DispatchBatch(context.Background(), []assistants.ToolCall{
			{ID: "c1", Name: "slow"},
			{ID: "c2", Name: "slow"},
		})
	}()

	// Both handlers must be in flight before either is released.
	deadline := time.Now().Add(2 * time.Second)
	for running.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("handlers did not run concurrently")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)

	outputs := <-done
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	for _, out := range outputs {
		if out.Output != "done" {
			t.Errorf("unexpected output %q", out.Output)
		}
	}
}

func TestRegisterKeepsRegistrationOrder(t *testing.T) {
	reg := NewRegistry(1, nil)
	for _, name := range []string{"c", "a", "b"} {
		reg.Register(Capability{Name: name, Params: emptySchema(), Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "", nil
		}})
	}
	names := reg.Names()
	if len(names) != 3 || names[0] != "c" || names[1] != "a" || names[2] != "b" {
		t.Errorf("registration order not preserved: %v", names)
	}
}
