// Package handles resolves points into live endpoint handles.
//
// A Factory is polymorphic over the handle's capability set: a configurator
// asks for the capability interface it needs (interfaces.Ownable,
// interfaces.OApp, ...) and Narrow adapts a factory of composite handles into
// a factory of that capability.
//
// Resolution establishes provider and signer bindings, which is comparatively
// expensive, so factories used during a reconciliation run are wrapped with
// Memoize: every configurator and loader touching the same point within the
// run shares one handle. A memoized factory belongs to exactly one run and is
// discarded with it.
package handles

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ruteri/omnichain-configurator/interfaces"
)

// Factory resolves a point into a connected handle.
type Factory[H any] interface {
	Resolve(ctx context.Context, point interfaces.Point) (H, error)
}

// ResolverFunc adapts a function to the Factory interface.
type ResolverFunc[H any] func(ctx context.Context, point interfaces.Point) (H, error)

// Resolve calls f(ctx, point).
func (f ResolverFunc[H]) Resolve(ctx context.Context, point interfaces.Point) (H, error) {
	return f(ctx, point)
}

type entry[H any] struct {
	done   chan struct{}
	handle H
	err    error
}

// Memoized is a Factory that resolves each point at most once. Concurrent
// callers for the same point wait for the same in-flight resolution.
type Memoized[H any] struct {
	mu      sync.Mutex
	factory Factory[H]
	entries map[string]*entry[H]
}

// Memoize wraps factory so that each point is resolved once per Memoized value.
func Memoize[H any](factory Factory[H]) *Memoized[H] {
	return &Memoized[H]{
		factory: factory,
		entries: make(map[string]*entry[H]),
	}
}

// Resolve returns the handle for point, resolving it on first use. Resolution
// failures are remembered for the lifetime of the memo, except cancellations,
// and reported as *interfaces.EndpointUnavailableError. Callers waiting on a
// resolution whose context was cancelled resolve again with their own.
func (m *Memoized[H]) Resolve(ctx context.Context, point interfaces.Point) (H, error) {
	key := point.Key()

	for {
		m.mu.Lock()
		e, ok := m.entries[key]
		if !ok {
			e = &entry[H]{done: make(chan struct{})}
			m.entries[key] = e
		}
		m.mu.Unlock()

		if !ok {
			return m.resolve(ctx, key, point, e)
		}

		select {
		case <-e.done:
			if isContextErr(e.err) && ctx.Err() == nil {
				continue
			}
			return e.handle, e.err
		case <-ctx.Done():
			var zero H
			return zero, ctx.Err()
		}
	}
}

func (m *Memoized[H]) resolve(ctx context.Context, key string, point interfaces.Point, e *entry[H]) (H, error) {
	e.handle, e.err = m.factory.Resolve(ctx, point)
	if e.err != nil {
		if isContextErr(e.err) {
			m.mu.Lock()
			if m.entries[key] == e {
				delete(m.entries, key)
			}
			m.mu.Unlock()
		}
		var unavailable *interfaces.EndpointUnavailableError
		if !errors.As(e.err, &unavailable) {
			e.err = &interfaces.EndpointUnavailableError{Point: point, Err: e.err}
		}
	}
	close(e.done)
	return e.handle, e.err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Len returns the number of points resolved or being resolved.
func (m *Memoized[H]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Narrow adapts a factory of H handles into a factory of the capability G.
// Resolution fails with interfaces.ErrCapabilityUnsupported if the resolved
// handle does not implement G.
func Narrow[H, G any](factory Factory[H]) Factory[G] {
	return ResolverFunc[G](func(ctx context.Context, point interfaces.Point) (G, error) {
		var zero G
		h, err := factory.Resolve(ctx, point)
		if err != nil {
			return zero, err
		}
		g, ok := any(h).(G)
		if !ok {
			return zero, fmt.Errorf("%w: %T at %s", interfaces.ErrCapabilityUnsupported, h, point)
		}
		return g, nil
	})
}
