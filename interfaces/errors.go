package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrCapabilityUnsupported is returned when a handle does not implement the
	// capability requested by a configurator.
	ErrCapabilityUnsupported = errors.New("endpoint handle does not support capability")

	// ErrMissingLiveState is reported when a desired node or edge has no
	// counterpart in the live state graph.
	ErrMissingLiveState = errors.New("no live state for desired configuration")
)

// DuplicateIdentityError is returned when a graph would contain two nodes with
// the same point or two edges with the same vector.
type DuplicateIdentityError struct {
	Kind string // "node" or "edge"
	Key  string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("duplicate %s identity %s", e.Kind, e.Key)
}

// EndpointUnavailableError is returned when a handle for a point cannot be
// resolved because the endpoint transport is unreachable.
type EndpointUnavailableError struct {
	Point Point
	Err   error
}

func (e *EndpointUnavailableError) Error() string {
	return fmt.Sprintf("endpoint %s unavailable: %v", e.Point, e.Err)
}

func (e *EndpointUnavailableError) Unwrap() error {
	return e.Err
}
