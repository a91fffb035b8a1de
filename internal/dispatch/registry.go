// internal/dispatch/registry.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/aide/pkg/assistants"
)

// Handler executes one capability invocation and returns renderable text.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Capability is one named action the assistant can request, with the JSON
// schema its arguments are validated against.
type Capability struct {
	Name        string
	Description string
	Params      json.RawMessage
	Handler     Handler
}

// Registry maps capability names to handlers and dispatches requested
// tool-call batches. A run stalls if any requested call goes unanswered,
// so dispatch always yields exactly one output per call: validation
// failures, handler errors, and handler panics all become error text.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
	order        []string
	sem          *semaphore.Weighted
	truncator    *Truncator
}

// NewRegistry creates a registry that runs at most maxConcurrent handlers
// of one batch simultaneously.
func NewRegistry(maxConcurrent int64, truncator *Truncator) *Registry {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Registry{
		capabilities: make(map[string]Capability),
		sem:          semaphore.NewWeighted(maxConcurrent),
		truncator:    truncator,
	}
}

// Register adds a capability, replacing any previous entry with the name.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.capabilities[c.Name]; !exists {
		r.order = append(r.order, c.Name)
	}
	r.capabilities[c.Name] = c
}

// Names returns registered capability names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DispatchBatch executes every call in the batch, concurrently up to the
// registry's limit, and returns outputs in call order. The caller submits
// them together as one atomic submission.
func (r *Registry) DispatchBatch(ctx context.Context, calls []assistants.ToolCall) []assistants.ToolOutput {
	outputs := make([]assistants.ToolOutput, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call assistants.ToolCall) {
			defer wg.Done()
			if err := r.sem.Acquire(ctx, 1); err != nil {
				outputs[i] = assistants.ToolOutput{CallID: call.ID, Output: fmt.Sprintf("error: dispatch cancelled: %v", err)}
				return
			}
			defer r.sem.Release(1)
			outputs[i] = assistants.ToolOutput{CallID: call.ID, Output: r.dispatchOne(ctx, call)}
		}(i, call)
	}
	wg.Wait()
	return outputs
}

// dispatchOne resolves, validates, and executes a single call, shaping any
// failure into error text.
func (r *Registry) dispatchOne(ctx context.Context, call assistants.ToolCall) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("capability panicked", "capability", call.Name, "panic", rec)
			result = fmt.Sprintf("error: %s failed unexpectedly", call.Name)
		}
	}()

	r.mu.RLock()
	cap, ok := r.capabilities[call.Name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("error: unknown capability %q", call.Name)
	}

	if err := ValidateArgs(cap.Params, call.Arguments); err != nil {
		return fmt.Sprintf("error: invalid arguments for %s: %v", call.Name, err)
	}

	out, err := cap.Handler(ctx, call.Arguments)
	if err != nil {
		slog.Warn("capability failed", "capability", call.Name, "error", err)
		return fmt.Sprintf("error: %v", err)
	}
	if r.truncator != nil {
		out = r.truncator.Truncate(out)
	}
	return out
}
