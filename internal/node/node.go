package node

import (
	"context"

	"github.com/vk/framegridgo/internal/clock"
	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/pool"
)

// Definition declares one node type: its ports and how to build instances.
type Definition struct {
	// Type is the name used in node IDs and patch files, e.g. "mix".
	Type string

	// Inputs and Outputs declare the ports every instance of this type
	// has. The graph validates wires against them.
	Inputs  []graph.PortSpec
	Outputs []graph.PortSpec

	// New builds an instance. It runs once per node instance, on the
	// first pass that includes it, and may fail on bad params.
	New func(ctx context.Context, id graph.NodeID, params Params) (Instance, error)
}

// Instance is one live node doing per-tick work.
//
// Execute reads its wired inputs from ec, does the tick's work, and
// returns one published-ready lease per declared output port. The
// scheduler publishes missing publishes and releases what it handed in;
// the instance owns only what it acquires and deliberately retains.
//
// An instance that keeps leases across ticks should implement io.Closer.
type Instance interface {
	Execute(ctx context.Context, ec *ExecContext) (Outputs, error)
}

// Outputs maps declared output port names to the leases produced this
// tick.
type Outputs map[string]*pool.Lease

// ExecContext carries everything one Execute call may touch.
type ExecContext struct {
	// Tick is the frame trigger being serviced.
	Tick clock.Tick
	// Node is the instance's current graph record (params and flags).
	Node *graph.Node
	// Pool acquires output buffers.
	Pool *pool.Pool

	inputs map[string]*pool.Lease
}

// NewExecContext assembles a context for one Execute call. Input leases
// stay owned by the caller; the instance must not release them.
func NewExecContext(tick clock.Tick, n *graph.Node, p *pool.Pool, inputs map[string]*pool.Lease) *ExecContext {
	return &ExecContext{Tick: tick, Node: n, Pool: p, inputs: inputs}
}

// Input returns the lease wired into the named input port this tick.
// Unwired optional inputs return false.
func (ec *ExecContext) Input(name string) (*pool.Lease, bool) {
	l, ok := ec.inputs[name]
	return l, ok
}

// Params returns the node's current parameters.
func (ec *ExecContext) Params() Params {
	return Params(ec.Node.Params)
}
