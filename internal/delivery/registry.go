// internal/delivery/registry.go

// Package delivery routes pushed messages, scheduled briefings and
// webhook-triggered ones, to the transport owning the destination. A
// destination is a session key like "telegram:12345": the prefix names
// the transport, the rest is transport-private addressing.
package delivery

import (
	"fmt"
	"strings"
	"sync"

	"github.com/user/aide/internal/types"
)

// Handler delivers one message to the destination named by sessionKey.
type Handler func(sessionKey, message string) error

// Registry maps session-key prefixes to transport handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for session keys starting with prefix. A later
// registration for the same prefix replaces the earlier one.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver routes the message to the handler with the longest matching
// prefix, so a narrower registration ("telegram:group:") wins over a
// broader one ("telegram:"). An unmatched key wraps types.ErrNotFound.
func (r *Registry) Deliver(sessionKey, message string) error {
	r.mu.RLock()
	var handler Handler
	best := -1
	for prefix, h := range r.handlers {
		if strings.HasPrefix(sessionKey, prefix) && len(prefix) > best {
			handler, best = h, len(prefix)
		}
	}
	r.mu.RUnlock()

	if handler == nil {
		return fmt.Errorf("no delivery handler for session key %q: %w", sessionKey, types.ErrNotFound)
	}
	return handler(sessionKey, message)
}
