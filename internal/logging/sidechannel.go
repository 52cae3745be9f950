package logging

import (
	"context"
	"sync"
	"time"
)

// Event is one swallowed Logging Pipeline step failure, routed through the
// side channel rather than returned to the HTTP Executor's caller. The
// pipeline dispatches an Event only for a step that failed.
type Event struct {
	Step      string
	RequestID string
	Err       error
	At        time.Time
}

// Hook receives every pipeline Event. Implementations must not block
// significantly; Dispatch calls hooks synchronously in registration order.
type Hook interface {
	OnEvent(ctx context.Context, ev Event)
}

// Dispatcher fans a pipeline Event out to every registered Hook. Safe for
// concurrent use.
type Dispatcher struct {
	mu    sync.RWMutex
	hooks []Hook
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a Hook. Not safe to call concurrently with Dispatch against
// the same Dispatcher in a hot loop, but fine at startup wiring time.
func (d *Dispatcher) Register(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Dispatch sends ev to every registered hook. A panicking hook is
// recovered and otherwise ignored — the side channel must never bring down
// the pipeline it is reporting on.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	d.mu.RLock()
	hooks := make([]Hook, len(d.hooks))
	copy(hooks, d.hooks)
	d.mu.RUnlock()

	for _, h := range hooks {
		func(h Hook) {
			defer func() { _ = recover() }()
			h.OnEvent(ctx, ev)
		}(h)
	}
}
