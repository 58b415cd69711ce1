// Package constant emits a fixed control sample every tick. Edits to the
// value param land at frame boundaries, which makes it the simplest
// remote fader: a control surface maps straight onto set_param edits.
package constant

import (
	"context"

	"github.com/vk/framegridgo/internal/frame"
	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/node"
)

// Module implements node.Module for this package.
type Module struct{}

// Register adds the constant node type. Params: value (number).
func (m *Module) Register(r *node.Registry) {
	r.Register(&node.Definition{
		Type:    "constant",
		Outputs: []graph.PortSpec{{Name: "out", Type: graph.PortScalar}},
		New: func(ctx context.Context, id graph.NodeID, p node.Params) (node.Instance, error) {
			if _, err := p.Float64Or("value", 0); err != nil {
				return nil, err
			}
			return &constantNode{}, nil
		},
	})
}

type constantNode struct{}

// Execute reads the value param fresh every tick, so live edits take
// effect without a rebuild.
func (n *constantNode) Execute(ctx context.Context, ec *node.ExecContext) (node.Outputs, error) {
	v, err := ec.Params().Float64Or("value", 0)
	if err != nil {
		return nil, err
	}

	l, err := ec.Pool.Acquire(ctx, frame.ScalarClass())
	if err != nil {
		return nil, err
	}
	data, err := l.Writable()
	if err != nil {
		l.Release()
		return nil, err
	}
	frame.PutScalar(data, v)
	l.Publish()
	return node.Outputs{"out": l}, nil
}
