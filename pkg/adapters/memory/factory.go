package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
)

// Handle is the agent handle produced by Factory.
type Handle struct {
	Node   domain.AgentNode
	closed atomic.Bool
}

// NodeID returns the node the handle was built from.
func (h *Handle) NodeID() string { return h.Node.ID }

// Close marks the handle closed.
func (h *Handle) Close(context.Context) error {
	h.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool { return h.closed.Load() }

// Factory is an in-process ports.AgentFactory that records every materialization.
// It is used by local sessions (the chat command) and by tests.
type Factory struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]error
	handles  []*Handle
}

// NewFactory creates a factory that always succeeds.
func NewFactory() *Factory {
	return &Factory{failures: make(map[string]error)}
}

// FailOn makes materialization of nodeID fail with err. A nil err clears the failure.
func (f *Factory) FailOn(nodeID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, nodeID)
		return
	}
	f.failures[nodeID] = err
}

// Materialize records the call and returns a Handle unless a failure was configured.
func (f *Factory) Materialize(_ context.Context, node domain.AgentNode) (ports.AgentHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, node.ID)
	if err, ok := f.failures[node.ID]; ok {
		return nil, err
	}
	h := &Handle{Node: node}
	f.handles = append(f.handles, h)
	return h, nil
}

// Calls returns the node IDs passed to Materialize, in call order.
func (f *Factory) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Handles returns the successfully built handles, in call order.
func (f *Factory) Handles() []*Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Handle(nil), f.handles...)
}
