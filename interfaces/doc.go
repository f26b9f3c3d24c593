// Package interfaces defines the core types shared by every package of the
// configurator, separating them from their implementations.
//
// # Identity
//
// EndpointID names a network. Point locates one contract instance on an
// endpoint and Vector is a directed pair of points. Points and vectors are
// the identity keys of graph nodes and edges.
//
// # Capabilities
//
// Endpoint handles expose narrow capability interfaces: Ownable, Delegatable,
// Peerable, ERC20 and Rewarder. OApp combines the messaging capabilities.
// Domain code depends only on the capabilities it needs, which keeps it
// testable against in-memory and mocked handles.
//
// # Actions
//
// Action is an opaque state-changing call produced by configurators. The core
// never executes actions; an Executor is the external collaborator that signs
// and submits them.
//
// # Storage
//
// StorageBackend archives plans and reports content-addressed by the SHA-256
// hash of their bytes.
package interfaces
