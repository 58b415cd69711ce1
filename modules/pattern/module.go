// Package pattern generates synthetic test frames: bars, solids, and a
// drifting checkerboard. It is the graph's signal source when no capture
// hardware is wired in. All params read live, so edits to level, kind, or
// geometry land at the next frame boundary.
package pattern

import (
	"context"
	"fmt"

	"github.com/vk/framegridgo/internal/frame"
	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/node"
)

// Module implements node.Module for this package.
type Module struct{}

// Register adds the pattern node type.
//
// Params: kind ("bars", "solid", "checker"), level (0..255), format,
// width, height.
func (m *Module) Register(r *node.Registry) {
	r.Register(&node.Definition{
		Type:    "pattern",
		Outputs: []graph.PortSpec{{Name: "out", Type: graph.PortVideo}},
		New:     newPattern,
	})
}

type patternNode struct{}

// newPattern validates the params up front so a typo fails the node at
// construction; Execute re-reads them every tick.
func newPattern(ctx context.Context, id graph.NodeID, p node.Params) (node.Instance, error) {
	if _, _, _, err := readParams(p); err != nil {
		return nil, err
	}
	return &patternNode{}, nil
}

func readParams(p node.Params) (kind string, level byte, class frame.Class, err error) {
	kind, err = p.StringOr("kind", "bars")
	if err != nil {
		return "", 0, frame.Class{}, err
	}
	switch kind {
	case "bars", "solid", "checker":
	default:
		return "", 0, frame.Class{}, fmt.Errorf("pattern: unknown kind %q", kind)
	}

	lv, err := p.IntOr("level", 255)
	if err != nil {
		return "", 0, frame.Class{}, err
	}
	if lv < 0 || lv > 255 {
		return "", 0, frame.Class{}, fmt.Errorf("pattern: level %d out of range 0..255", lv)
	}

	class, err = videoClass(p)
	if err != nil {
		return "", 0, frame.Class{}, fmt.Errorf("pattern: %w", err)
	}
	return kind, byte(lv), class, nil
}

func (n *patternNode) Execute(ctx context.Context, ec *node.ExecContext) (node.Outputs, error) {
	kind, level, class, err := readParams(ec.Params())
	if err != nil {
		return nil, err
	}

	l, err := ec.Pool.Acquire(ctx, class)
	if err != nil {
		return nil, err
	}
	data, err := l.Writable()
	if err != nil {
		l.Release()
		return nil, err
	}

	switch kind {
	case "solid":
		for i := range data {
			data[i] = level
		}
	case "bars":
		paintBars(class, data, level)
	case "checker":
		paintChecker(class, data, level, ec.Tick.Seq)
	}

	l.Publish()
	return node.Outputs{"out": l}, nil
}

// paintBars draws eight vertical luminance steps, brightest on the left.
func paintBars(class frame.Class, data []byte, level byte) {
	stride := class.Format.PixelStride()
	i := 0
	for y := 0; y < class.Height; y++ {
		for x := 0; x < class.Width; x++ {
			band := x * 8 / class.Width
			v := byte(int(level) * (7 - band) / 7)
			for c := 0; c < stride; c++ {
				data[i] = v
				i++
			}
		}
	}
}

// paintChecker draws an 8px checkerboard whose phase advances with the
// tick, so motion is visible downstream.
func paintChecker(class frame.Class, data []byte, level byte, seq uint64) {
	stride := class.Format.PixelStride()
	phase := int(seq)
	i := 0
	for y := 0; y < class.Height; y++ {
		for x := 0; x < class.Width; x++ {
			var v byte
			if (x/8+y/8+phase)%2 == 0 {
				v = level
			}
			for c := 0; c < stride; c++ {
				data[i] = v
				i++
			}
		}
	}
}

// videoClass reads the output geometry from params, defaulting to a
// modest rgba8 frame.
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
