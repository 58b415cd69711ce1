// Package mix crossfades two video inputs. The blend position comes from
// the optional scalar input when wired, and from the mix param otherwise,
// so the same node works hard-set or driven by an lfo.
package mix

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/vk/framegridgo/internal/frame"
	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/node"
)

// Module implements node.Module for this package.
type Module struct{}

// Register adds the mix node type. Params: mix (0..1, default 0.5).
func (m *Module) Register(r *node.Registry) {
	r.Register(&node.Definition{
		Type: "mix",
		Inputs: []graph.PortSpec{
			{Name: "a", Type: graph.PortVideo},
			{Name: "b", Type: graph.PortVideo},
			{Name: "mix", Type: graph.PortScalar, Optional: true},
		},
		Outputs: []graph.PortSpec{{Name: "out", Type: graph.PortVideo}},
		New: func(ctx context.Context, id graph.NodeID, p node.Params) (node.Instance, error) {
			if _, err := p.Float64Or("mix", 0.5); err != nil {
				return nil, err
			}
			return &mixNode{}, nil
		},
	})
}

type mixNode struct{}

func (n *mixNode) Execute(ctx context.Context, ec *node.ExecContext) (node.Outputs, error) {
	a, ok := ec.Input("a")
	if !ok {
		return nil, errors.New("mix: input a not wired")
	}
	b, ok := ec.Input("b")
	if !ok {
		return nil, errors.New("mix: input b not wired")
	}
	if a.Class() != b.Class() {
		return nil, fmt.Errorf("mix: input classes differ: %s vs %s", a.Class(), b.Class())
	}

	pos, err := ec.Params().Float64Or("mix", 0.5)
	if err != nil {
		return nil, err
	}
	if ctl, ok := ec.Input("mix"); ok {
		pos = frame.Scalar(ctl.Bytes())
	}
	pos = math.Min(1, math.Max(0, pos))

	l, err := ec.Pool.Acquire(ctx, a.Class())
	if err != nil {
		return nil, err
	}
	data, err := l.Writable()
	if err != nil {
		l.Release()
		return nil, err
	}

	// Fixed-point blend: k=0 is all A, k=255 all B.
	k := int(math.Round(pos * 255))
	av, bv := a.Bytes(), b.Bytes()
	for i := range data {
		data[i] = byte((int(av[i])*(255-k) + int(bv[i])*k + 127) / 255)
	}

	l.Publish()
	return node.Outputs{"out": l}, nil
}
