// Package configurator turns desired graphs into the actions that bring live
// endpoints in line with them.
//
// A Configurator is handed a desired graph that has already been pruned to
// the entries needing change, and a factory resolving their handles. Node and
// edge configurators fan out over their entries; ConfigureMultiple sequences
// configurators whose relative order matters, such as transferring ownership
// only after everything the current owner must set.
package configurator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/handles"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/parallel"
)

// Configurator produces the actions needed to apply desired.
type Configurator[N, E, H any] func(ctx context.Context, desired *graph.Graph[N, E], factory handles.Factory[H]) ([]interfaces.Action, error)

// NodeFunc produces the actions for one node. A nil or empty result means the
// node needs no change.
type NodeFunc[N, E, H any] func(ctx context.Context, node graph.Node[N], desired *graph.Graph[N, E], handle H) ([]interfaces.Action, error)

// EdgeFunc produces the actions for one edge, using the handle of the edge's
// source point.
type EdgeFunc[N, E, H any] func(ctx context.Context, edge graph.Edge[E], desired *graph.Graph[N, E], handle H) ([]interfaces.Action, error)

type options struct {
	fanout parallel.Options
	name   string
	log    *slog.Logger
}

// Option customizes a node or edge configurator.
type Option func(*options)

// WithLimit caps the number of entries configured concurrently.
func WithLimit(limit int) Option {
	return func(o *options) { o.fanout.Limit = limit }
}

// WithPolicy selects what happens when one entry fails.
func WithPolicy(policy parallel.Policy) Option {
	return func(o *options) { o.fanout.Policy = policy }
}

// WithName labels the configurator in logs and errors.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger used to report failed entries.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

func newOptions(opts []Option) *options {
	o := &options{name: "configurator", log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func flatten(results []parallel.Result[[]interfaces.Action]) []interfaces.Action {
	var actions []interfaces.Action
	for _, r := range results {
		if r.Err == nil {
			actions = append(actions, r.Value...)
		}
	}
	return actions
}

// ConfigureNodes builds a Configurator running fn for every node of the
// desired graph. Actions are concatenated in node order.
//
// Under parallel.Collect the actions of successful nodes are returned together
// with a *parallel.PartialFailure.
func ConfigureNodes[N, E, H any](fn NodeFunc[N, E, H], opts ...Option) Configurator[N, E, H] {
	o := newOptions(opts)
	return func(ctx context.Context, desired *graph.Graph[N, E], factory handles.Factory[H]) ([]interfaces.Action, error) {
		results, err := parallel.Map(ctx, desired.Nodes(), o.fanout, func(ctx context.Context, node graph.Node[N]) ([]interfaces.Action, error) {
			handle, err := factory.Resolve(ctx, node.Point)
			if err != nil {
				o.log.Error("Failed to resolve handle", slog.String("configurator", o.name), slog.String("point", node.Point.String()), "err", err)
				return nil, err
			}
			actions, err := fn(ctx, node, desired, handle)
			if err != nil {
				o.log.Error("Failed to configure node", slog.String("configurator", o.name), slog.String("point", node.Point.String()), "err", err)
				return nil, fmt.Errorf("%s: node %s: %w", o.name, node.Point, err)
			}
			return actions, nil
		})
		return flatten(results), err
	}
}

// ConfigureEdges builds a Configurator running fn for every edge of the
// desired graph. Actions are concatenated in edge order.
func ConfigureEdges[N, E, H any](fn EdgeFunc[N, E, H], opts ...Option) Configurator[N, E, H] {
	o := newOptions(opts)
	return func(ctx context.Context, desired *graph.Graph[N, E], factory handles.Factory[H]) ([]interfaces.Action, error) {
		results, err := parallel.Map(ctx, desired.Edges(), o.fanout, func(ctx context.Context, edge graph.Edge[E]) ([]interfaces.Action, error) {
			handle, err := factory.Resolve(ctx, edge.Vector.From)
			if err != nil {
				o.log.Error("Failed to resolve handle", slog.String("configurator", o.name), slog.String("vector", edge.Vector.String()), "err", err)
				return nil, err
			}
			actions, err := fn(ctx, edge, desired, handle)
			if err != nil {
				o.log.Error("Failed to configure edge", slog.String("configurator", o.name), slog.String("vector", edge.Vector.String()), "err", err)
				return nil, fmt.Errorf("%s: edge %s: %w", o.name, edge.Vector, err)
			}
			return actions, nil
		})
		return flatten(results), err
	}
}

// ConfigureMultiple runs configurators one after another in the given order
// and concatenates their actions. The first error stops the sequence; actions
// produced so far are returned with it.
func ConfigureMultiple[N, E, H any](configurators ...Configurator[N, E, H]) Configurator[N, E, H] {
	return func(ctx context.Context, desired *graph.Graph[N, E], factory handles.Factory[H]) ([]interfaces.Action, error) {
		var actions []interfaces.Action
		for _, c := range configurators {
			produced, err := c(ctx, desired, factory)
			actions = append(actions, produced...)
			if err != nil {
				return actions, err
			}
		}
		return actions, nil
	}
}
