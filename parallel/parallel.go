// Package parallel fans work out over a fixed set of independent items with an
// optional concurrency limit and a configurable failure policy.
package parallel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Policy selects what happens when one item fails.
type Policy int

const (
	// FailFast cancels the remaining items and returns the first error.
	FailFast Policy = iota
	// Collect runs every item and reports failures alongside the successful results.
	Collect
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Collect:
		return "collect"
	default:
		return "unknown"
	}
}

// Options controls a fan-out. The zero value is unbounded and fail-fast.
type Options struct {
	// Limit caps the number of items in flight. Zero or negative means no limit.
	Limit  int
	Policy Policy
}

// Result holds the outcome of one item.
type Result[R any] struct {
	Value R
	Err   error
}

// Failure identifies one failed item.
type Failure struct {
	Index int
	Err   error
}

// PartialFailure is returned under the Collect policy when at least one item failed.
type PartialFailure struct {
	Total    int
	Failures []Failure
}

func (e *PartialFailure) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Err.Error())
	}
	return fmt.Sprintf("%d of %d operations failed: %s", len(e.Failures), e.Total, strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Map runs fn for every item concurrently and returns the results in input order.
//
// Under FailFast the first error cancels the context passed to the remaining
// items and is returned as is. Under Collect every item runs to completion;
// if any failed the results are returned together with a *PartialFailure.
func Map[T, R any](ctx context.Context, items []T, opts Options, fn func(ctx context.Context, item T) (R, error)) ([]Result[R], error) {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results, nil
	}

	switch opts.Policy {
	case Collect:
		var wg sync.WaitGroup
		var sem chan struct{}
		if opts.Limit > 0 {
			sem = make(chan struct{}, opts.Limit)
		}
		for i, item := range items {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if sem != nil {
					sem <- struct{}{}
					defer func() { <-sem }()
				}
				v, err := fn(ctx, item)
				results[i] = Result[R]{Value: v, Err: err}
			}()
		}
		wg.Wait()

		var failures []Failure
		for i, r := range results {
			if r.Err != nil {
				failures = append(failures, Failure{Index: i, Err: r.Err})
			}
		}
		if len(failures) > 0 {
			return results, &PartialFailure{Total: len(items), Failures: failures}
		}
		return results, nil

	default:
		g, gctx := errgroup.WithContext(ctx)
		if opts.Limit > 0 {
			g.SetLimit(opts.Limit)
		}
		for i, item := range items {
			g.Go(func() error {
				v, err := fn(gctx, item)
				results[i] = Result[R]{Value: v, Err: err}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	}
}
