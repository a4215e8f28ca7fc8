package alert

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jonwraymond/healthops/health"
)

// ErrDuplicateHandler indicates an alert handler name is already registered.
var ErrDuplicateHandler = errors.New("alert: handler already registered")

// Handler is the capability an alert consumer registers with the engine.
// Handlers must not block for long; the engine dispatches to them off the
// scheduling path but shares a dispatch goroutine per alert.
type Handler interface {
	HandleAlert(ctx context.Context, a Alert)
}

// HandlerFunc is an adapter to allow ordinary functions to be used as
// Handlers.
type HandlerFunc func(ctx context.Context, a Alert)

// HandleAlert invokes the function.
func (f HandlerFunc) HandleAlert(ctx context.Context, a Alert) {
	f(ctx, a)
}

// Criteria filters which alerts a handler receives.
type Criteria struct {
	// MinSeverity is the minimum severity the handler accepts.
	MinSeverity health.Status

	// Categories restricts the handler to checks in the named categories.
	// Empty means all categories.
	Categories []string

	// EscalationsOnly restricts the handler to escalation alerts.
	EscalationsOnly bool
}

// Matches reports whether the alert satisfies the criteria.
func (c Criteria) Matches(a Alert) bool {
	if !a.Severity.AtLeast(c.MinSeverity) {
		return false
	}
	if c.EscalationsOnly && !a.Escalated {
		return false
	}
	if len(c.Categories) > 0 && !slices.Contains(c.Categories, a.Category) {
		return false
	}
	return true
}

type registeredHandler struct {
	handler  Handler
	criteria Criteria
}

// HandlerRegistry holds named alert handlers and their criteria. Register
// and unregister use the same reader-writer discipline as the check
// registry so dispatch can race safely with mutation.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]registeredHandler
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]registeredHandler)}
}

// Register adds a handler under a unique name.
func (r *HandlerRegistry) Register(name string, h Handler, criteria Criteria) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
	}
	r.handlers[name] = registeredHandler{handler: h, criteria: criteria}
	return nil
}

// Unregister removes the named handler. Returns false when unknown.
func (r *HandlerRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; !exists {
		return false
	}
	delete(r.handlers, name)
	return true
}

// Dispatch invokes every handler whose criteria match the alert and returns
// the number of handlers invoked.
func (r *HandlerRegistry) Dispatch(ctx context.Context, a Alert) int {
	r.mu.RLock()
	matched := make([]Handler, 0, len(r.handlers))
	for _, rh := range r.handlers {
		if rh.criteria.Matches(a) {
			matched = append(matched, rh.handler)
		}
	}
	r.mu.RUnlock()

	for _, h := range matched {
		h.HandleAlert(ctx, a)
	}
	return len(matched)
}
