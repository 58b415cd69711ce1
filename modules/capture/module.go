// Package capture pulls external frames into the graph through a
// device.Source. A source with nothing new repeats the node's previous
// frame; a source that is gone fails the tick, and downstream consumers
// ride on the scheduler's stale fallback until it recovers.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/framegridgo/internal/device"
	"github.com/vk/framegridgo/internal/frame"
	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/node"
	"github.com/vk/framegridgo/internal/pool"
)

// Module implements node.Module for this package. The source device is
// injected at registration; instances address it by source id.
type Module struct {
	Source device.Source
}

// Register adds the capture node type.
//
// Params: source (device id, defaults to the instance name), format,
// width, height.
func (m *Module) Register(r *node.Registry) {
	src := m.Source
	r.Register(&node.Definition{
		Type:    "capture",
		Outputs: []graph.PortSpec{{Name: "out", Type: graph.PortVideo}},
		New: func(ctx context.Context, id graph.NodeID, p node.Params) (node.Instance, error) {
			if src == nil {
				return nil, errors.New("capture: no source device configured")
			}
			class, err := videoClass(p)
			if err != nil {
				return nil, fmt.Errorf("capture: %w", err)
			}
			srcID, err := p.StringOr("source", instanceName(id))
			if err != nil {
				return nil, err
			}
			return &captureNode{src: src, srcID: srcID, class: class}, nil
		},
	})
}

// instanceName strips the type prefix from "capture.cam1".
func instanceName(id graph.NodeID) string {
	if _, name, ok := strings.Cut(string(id), "."); ok {
		return name
	}
	return string(id)
}

type captureNode struct {
	src   device.Source
	srcID string
	class frame.Class

	// last is the node's own clone of its newest frame, repeated when
	// the device reports nothing fresh.
	last *pool.Lease
}

func (n *captureNode) Execute(ctx context.Context, ec *node.ExecContext) (node.Outputs, error) {
	l, err := ec.Pool.Acquire(ctx, n.class)
	if err != nil {
		return nil, err
	}
	data, err := l.Writable()
	if err != nil {
		l.Release()
		return nil, err
	}

	switch err := n.src.Fill(ctx, n.srcID, n.class, data); {
	case err == nil:
		l.Publish()
		if n.last != nil {
			n.last.Release()
		}
		n.last = l.Clone()
		return node.Outputs{"out": l}, nil

	case errors.Is(err, device.ErrNoNewFrame):
		l.Release()
		if n.last == nil {
			return nil, fmt.Errorf("capture %s: no frame yet: %w", n.srcID, err)
		}
		return node.Outputs{"out": n.last.Clone()}, nil

	default:
		l.Release()
		return nil, fmt.Errorf("capture %s: %w", n.srcID, err)
	}
}

// Close releases the repeated-frame cache.
func (n *captureNode) Close() error {
	if n.last != nil {
		n.last.Release()
		n.last = nil
	}
	return nil
}

// videoClass reads the capture geometry from params. Capture defaults
// lean small; real devices declare their native size explicitly.
func videoClass(p node.Params) (frame.Class, error) {
	name, err := p.StringOr("format", "rgba8")
	if err != nil {
		return frame.Class{}, err
	}
	f, err := frame.ParseFormat(name)
	if err != nil {
		return frame.Class{}, err
	}
	if !f.Video() {
		return frame.Class{}, fmt.Errorf("format %q is not video", name)
	}
	w, err := p.IntOr("width", 640)
	if err != nil {
		return frame.Class{}, err
	}
	h, err := p.IntOr("height", 360)
	if err != nil {
		return frame.Class{}, err
	}
	class := frame.VideoClass(f, w, h)
	if !class.Valid() {
		return frame.Class{}, fmt.Errorf("invalid geometry %dx%d", w, h)
	}
	return class, nil
}
