package solana

import (
	"sync"
)

// EndpointRotator owns the ordered list of candidate RPC endpoints and
// tracks which one is currently in use. The index is sticky: once the
// client advances past a dead endpoint, later calls keep starting from
// the endpoint that last worked instead of re-probing dead ones.
//
// The rotator is shared by every goroutine issuing RPC calls, so the
// index is guarded by a mutex. Advance takes the index the caller
// observed; if another goroutine already moved on, the advance is a
// no-op so two callers cannot skip an endpoint that was never tried.
type EndpointRotator struct {
	mu      sync.Mutex
	clients []RPCClient
	urls    []string
	current int
}

// NewEndpointRotator builds a rotator with one RPC client per endpoint URL.
func NewEndpointRotator(urls []string) *EndpointRotator {
	clients := make([]RPCClient, len(urls))
	for i, u := range urls {
		clients[i] = NewRPCClient(u)
	}
	return &EndpointRotator{clients: clients, urls: urls}
}

// NewEndpointRotatorWithClients builds a rotator over pre-built clients.
// Used by tests to inject mocks, one per fake endpoint.
func NewEndpointRotatorWithClients(clients []RPCClient, urls []string) *EndpointRotator {
	return &EndpointRotator{clients: clients, urls: urls}
}

// Current returns the active client, its URL, and its index.
func (r *EndpointRotator) Current() (RPCClient, string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[r.current], r.urls[r.current], r.current
}

// Advance moves to the next endpoint, wrapping around, but only if the
// caller's observed index is still current.
func (r *EndpointRotator) Advance(from int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == from {
		r.current = (r.current + 1) % len(r.clients)
	}
}

// Index returns the current endpoint index.
func (r *EndpointRotator) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Len returns the number of endpoints.
func (r *EndpointRotator) Len() int {
	return len(r.clients)
}
