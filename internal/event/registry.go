package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Handler receives a published envelope.
type Handler func(ctx context.Context, env Envelope) error

// Registry maps event types to their in-process subscribers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Type][]Handler)}
}

func (r *Registry) Subscribe(t Type, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = append(r.handlers[t], h)
}

// On registers fn for event type t and decodes the payload into P before
// calling it.
func On[P any](r *Registry, t Type, fn func(ctx context.Context, env Envelope, p P) error) {
	r.Subscribe(t, func(ctx context.Context, env Envelope) error {
		var p P
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return fn(ctx, env, p)
	})
}

// Types lists the event types that have at least one subscriber.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// Dispatch runs every handler subscribed to env.Type. All handlers run even
// if one fails; their errors are joined.
func (r *Registry) Dispatch(ctx context.Context, env Envelope) error {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[env.Type]...)
	r.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
