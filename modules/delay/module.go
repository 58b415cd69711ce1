// Package delay outputs its input from N ticks ago by retaining cloned
// leases across passes. Mixing the delayed copy against the live signal
// gives echo and trail effects with both branches feeding forward; the
// wiring stays acyclic, the history lives in the node.
//
// Until the line has N frames queued it passes the current input
// through, so a fresh delay never blacks out the chain.
package delay

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/node"
	"github.com/vk/framegridgo/internal/pool"
)

// MaxFrames bounds the line length; each queued frame pins a pool
// buffer for the whole interval.
const MaxFrames = 30

// Module implements node.Module for this package.
type Module struct{}

// Register adds the delay node type. Params: frames (1..MaxFrames).
func (m *Module) Register(r *node.Registry) {
	r.Register(&node.Definition{
		Type:    "delay",
		Inputs:  []graph.PortSpec{{Name: "in", Type: graph.PortVideo}},
		Outputs: []graph.PortSpec{{Name: "out", Type: graph.PortVideo}},
		New: func(ctx context.Context, id graph.NodeID, p node.Params) (node.Instance, error) {
			n, err := p.IntOr("frames", 1)
			if err != nil {
				return nil, err
			}
			if n < 1 || n > MaxFrames {
				return nil, fmt.Errorf("delay: frames %d out of range 1..%d", n, MaxFrames)
			}
			return &delayNode{}, nil
		},
	})
}

type delayNode struct {
	// line holds clones of past inputs, oldest first.
	line []*pool.Lease
}

func (n *delayNode) Execute(ctx context.Context, ec *node.ExecContext) (node.Outputs, error) {
	in, ok := ec.Input("in")
	if !ok {
		return nil, errors.New("delay: input not wired")
	}

	want, err := ec.Params().IntOr("frames", 1)
	if err != nil {
		return nil, err
	}
	if want < 1 {
		want = 1
	}
	if want > MaxFrames {
		want = MaxFrames
	}

	n.line = append(n.line, in.Clone())

	// A shortened line drops its oldest frames; the output jumps, which
	// is what a shorter delay means.
	for len(n.line) > want+1 {
		n.line[0].Release()
		n.line = n.line[1:]
	}

	if len(n.line) > want {
		out := n.line[0]
		n.line = n.line[1:]
		return node.Outputs{"out": out}, nil
	}
	return node.Outputs{"out": in.Clone()}, nil
}

// Close releases the retained line.
func (n *delayNode) Close() error {
	for _, l := range n.line {
		l.Release()
	}
	n.line = nil
	return nil
}
