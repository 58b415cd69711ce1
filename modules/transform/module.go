// Package transform applies a per-pixel gain, offset, and optional
// inversion to a video input. All three read live from params, so it
// doubles as the simplest target for set_param edits on pixels.
package transform

import (
	"context"
	"errors"
	"math"

	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/node"
)

// Module implements node.Module for this package.
type Module struct{}

// Register adds the transform node type.
//
// Params: gain (default 1.0), offset (-255..255, default 0), invert.
func (m *Module) Register(r *node.Registry) {
	r.Register(&node.Definition{
		Type:    "transform",
		Inputs:  []graph.PortSpec{{Name: "in", Type: graph.PortVideo}},
		Outputs: []graph.PortSpec{{Name: "out", Type: graph.PortVideo}},
		New: func(ctx context.Context, id graph.NodeID, p node.Params) (node.Instance, error) {
			if _, err := p.Float64Or("gain", 1); err != nil {
				return nil, err
			}
			if _, err := p.IntOr("offset", 0); err != nil {
				return nil, err
			}
			return &transformNode{}, nil
		},
	})
}

type transformNode struct{}

func (n *transformNode) Execute(ctx context.Context, ec *node.ExecContext) (node.Outputs, error) {
	in, ok := ec.Input("in")
	if !ok {
		return nil, errors.New("transform: input not wired")
	}

	p := ec.Params()
	gain, err := p.Float64Or("gain", 1)
	if err != nil {
		return nil, err
	}
	offset, err := p.IntOr("offset", 0)
	if err != nil {
		return nil, err
	}
	invert, err := p.BoolOr("invert", false)
	if err != nil {
		return nil, err
	}

	// One lookup table per tick keeps the per-byte loop branch-free.
	var lut [256]byte
	for i := range lut {
		v := math.Round(float64(i)*gain) + float64(offset)
		v = math.Min(255, math.Max(0, v))
		b := byte(v)
		if invert {
			b = 255 - b
		}
		lut[i] = b
	}

	l, err := ec.Pool.Acquire(ctx, in.Class())
	if err != nil {
		return nil, err
	}
	data, err := l.Writable()
	if err != nil {
		l.Release()
		return nil, err
	}
	for i, v := range in.Bytes() {
		data[i] = lut[v]
	}

	l.Publish()
	return node.Outputs{"out": l}, nil
}
