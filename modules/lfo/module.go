// Package lfo is a low-frequency oscillator producing one control sample
// per tick. Phase is carried across passes and advanced by wall-clock
// tick spacing, so a rate change bends the wave instead of restarting it.
package lfo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vk/framegridgo/internal/frame"
	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/node"
)

// Module implements node.Module for this package.
type Module struct{}

// Register adds the lfo node type.
//
// Params: shape ("sine", "triangle", "saw", "square"), freq_hz, min, max.
func (m *Module) Register(r *node.Registry) {
	r.Register(&node.Definition{
		Type:    "lfo",
		Outputs: []graph.PortSpec{{Name: "out", Type: graph.PortScalar}},
		New: func(ctx context.Context, id graph.NodeID, p node.Params) (node.Instance, error) {
			if _, err := readShape(p); err != nil {
				return nil, err
			}
			if _, err := p.Float64Or("freq_hz", 1); err != nil {
				return nil, err
			}
			return &lfoNode{}, nil
		},
	})
}

func readShape(p node.Params) (string, error) {
	shape, err := p.StringOr("shape", "sine")
	if err != nil {
		return "", err
	}
	switch shape {
	case "sine", "triangle", "saw", "square":
		return shape, nil
	default:
		return "", fmt.Errorf("lfo: unknown shape %q", shape)
	}
}

type lfoNode struct {
	// phase is the position within the cycle, in [0,1).
	phase  float64
	lastTS time.Time
}

func (n *lfoNode) Execute(ctx context.Context, ec *node.ExecContext) (node.Outputs, error) {
	p := ec.Params()
	shape, err := readShape(p)
	if err != nil {
		return nil, err
	}
	freq, err := p.Float64Or("freq_hz", 1)
	if err != nil {
		return nil, err
	}
	lo, err := p.Float64Or("min", 0)
	if err != nil {
		return nil, err
	}
	hi, err := p.Float64Or("max", 1)
	if err != nil {
		return nil, err
	}

	if !n.lastTS.IsZero() {
		if dt := ec.Tick.Timestamp.Sub(n.lastTS).Seconds(); dt > 0 {
			n.phase += freq * dt
			n.phase -= math.Floor(n.phase)
		}
	}
	n.lastTS = ec.Tick.Timestamp

	var norm float64
	switch shape {
	case "sine":
		norm = (math.Sin(2*math.Pi*n.phase) + 1) / 2
	case "triangle":
		norm = 1 - math.Abs(2*n.phase-1)
	case "saw":
		norm = n.phase
	case "square":
		if n.phase < 0.5 {
			norm = 1
		}
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
	frame.PutScalar(data, lo+(hi-lo)*norm)
	l.Publish()
	return node.Outputs{"out": l}, nil
}
