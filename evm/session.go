package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/omnichain-configurator/interfaces"
)

// Provider is a Caller bound to one endpoint. Close releases its connection.
type Provider interface {
	Caller
	Close()
}

// DialFunc connects to the chain identified by eid.
type DialFunc func(ctx context.Context, eid interfaces.EndpointID) (Provider, error)

type ethProvider struct {
	*ethclient.Client
}

// DialRPC returns a DialFunc connecting to the JSON-RPC URL configured for each
// endpoint. The connection is probed with eth_chainId so that an unreachable
// endpoint fails at resolution time rather than on the first read.
func DialRPC(rpcs map[interfaces.EndpointID]string, log *slog.Logger) DialFunc {
	return func(ctx context.Context, eid interfaces.EndpointID) (Provider, error) {
		url, ok := rpcs[eid]
		if !ok {
			return nil, fmt.Errorf("no RPC configured for eid %d", eid)
		}

		log.Debug("Connecting to RPC", slog.String("eid", eid.String()), slog.String("url", url))
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to dial RPC for eid %d: %w", eid, err)
		}

		chainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to query chain id for eid %d: %w", eid, err)
		}
		log.Info("Connected to RPC", slog.String("eid", eid.String()), slog.String("chainID", chainID.String()))

		return ethProvider{client}, nil
	}
}

type providerEntry struct {
	done     chan struct{}
	provider Provider
	err      error
}

// Session binds handles to providers for the duration of one reconciliation
// run. Each endpoint is dialed at most once per session.
type Session struct {
	dial DialFunc
	log  *slog.Logger

	mu        sync.Mutex
	providers map[interfaces.EndpointID]*providerEntry
}

// NewSession creates a session dialing providers with dial.
func NewSession(dial DialFunc, log *slog.Logger) *Session {
	return &Session{
		dial:      dial,
		log:       log,
		providers: make(map[interfaces.EndpointID]*providerEntry),
	}
}

// provider returns the endpoint's provider, dialing it on first use. A dial
// that failed on a cancelled or expired context is forgotten, and callers
// waiting on it dial again with their own context.
func (s *Session) provider(ctx context.Context, eid interfaces.EndpointID) (Provider, error) {
	for {
		s.mu.Lock()
		e, ok := s.providers[eid]
		if !ok {
			e = &providerEntry{done: make(chan struct{})}
			s.providers[eid] = e
		}
		s.mu.Unlock()

		if !ok {
			e.provider, e.err = s.dial(ctx, eid)
			if isContextErr(e.err) {
				s.mu.Lock()
				if s.providers[eid] == e {
					delete(s.providers, eid)
				}
				s.mu.Unlock()
			}
			close(e.done)
			return e.provider, e.err
		}

		select {
		case <-e.done:
			if isContextErr(e.err) && ctx.Err() == nil {
				continue
			}
			return e.provider, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Resolve returns a handle for the contract at point.
func (s *Session) Resolve(ctx context.Context, point interfaces.Point) (interfaces.Endpoint, error) {
	provider, err := s.provider(ctx, point.EID)
	if err != nil {
		return nil, &interfaces.EndpointUnavailableError{Point: point, Err: err}
	}
	return NewHandle(point, provider), nil
}

// Close releases every provider dialed by the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for eid, e := range s.providers {
		select {
		case <-e.done:
			if e.provider != nil {
				e.provider.Close()
			}
		default:
			s.log.Warn("Closing session with a dial in flight", slog.String("eid", eid.String()))
		}
	}
	s.providers = make(map[interfaces.EndpointID]*providerEntry)
}
